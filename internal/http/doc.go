// Package http provides HTTP handlers and middleware for the gym reservation API.
//
// The router exposes the following endpoints:
//   - POST /api/admin/login: issues a session token. Body: {"username","password"}.
//     The token is also surfaced via the `X-Session-Token` header and a
//     `session_token` cookie.
//   - POST /api/admin/logout, GET /api/admin/session, GET /api/admin/dashboard:
//     require a session token from the Authorization bearer, the
//     `X-Session-Token` header, or the session cookie.
//   - GET /api/lessons[/{id}[/occurrences|/availability]]: public lesson catalog.
//     POST, PUT and DELETE require an admin session. Deleting a lesson with
//     reservations answers 409 with `reservation_count`.
//   - POST /api/reservations and POST /api/reservations/cancel: public booking.
//     A full occurrence answers 409 `lesson_full`, a repeated email 409
//     `already_registered`.
//   - GET /api/reservations[/stats|/{id}], DELETE /api/reservations/{id}: admin only.
//   - GET /api/offerings[/{id}]: public, admins may pass include_inactive=1.
//     Mutations and POST /api/offerings/reorder require an admin session.
//   - GET /healthz: storage ping.
//
// Errors share one body: {"error_code","message","errors"?,"reservation_count"?}.
// Request/response DTOs live alongside their respective handlers.
package http
