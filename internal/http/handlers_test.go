package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/gym-reservations/internal/application"
)

var testNow = time.Date(2024, time.June, 5, 10, 0, 0, 0, time.UTC)

type stubAuthService struct {
	result    application.AuthenticateResult
	err       error
	revoked   []string
	revokeErr error
}

func (s *stubAuthService) Authenticate(context.Context, application.AuthenticateParams) (application.AuthenticateResult, error) {
	return s.result, s.err
}

func (s *stubAuthService) RevokeSession(_ context.Context, token string) error {
	s.revoked = append(s.revoked, token)
	return s.revokeErr
}

type stubLessonService struct {
	lesson      application.Lesson
	err         error
	deleteErr   error
	occurrences []application.Occurrence
	gotParams   application.ListOccurrencesParams
	principal   application.Principal
}

func (s *stubLessonService) ListLessons(context.Context) ([]application.Lesson, error) {
	return []application.Lesson{s.lesson}, s.err
}

func (s *stubLessonService) GetLesson(context.Context, string) (application.Lesson, error) {
	return s.lesson, s.err
}

func (s *stubLessonService) CreateLesson(_ context.Context, params application.CreateLessonParams) (application.Lesson, error) {
	s.principal = params.Principal
	return s.lesson, s.err
}

func (s *stubLessonService) UpdateLesson(_ context.Context, params application.UpdateLessonParams) (application.Lesson, error) {
	s.principal = params.Principal
	return s.lesson, s.err
}

func (s *stubLessonService) DeleteLesson(_ context.Context, principal application.Principal, _ string) error {
	s.principal = principal
	return s.deleteErr
}

func (s *stubLessonService) ListOccurrences(_ context.Context, params application.ListOccurrencesParams) ([]application.Occurrence, error) {
	s.gotParams = params
	return s.occurrences, s.err
}

type stubReservationService struct {
	reservation application.Reservation
	admitErr    error
	admitted    []application.AdmitReservationParams
	stats       application.ReservationStats
	err         error
}

func (s *stubReservationService) AdmitReservation(_ context.Context, params application.AdmitReservationParams) (application.Reservation, error) {
	s.admitted = append(s.admitted, params)
	return s.reservation, s.admitErr
}

func (s *stubReservationService) CancelReservation(context.Context, application.CancelReservationParams) (application.Reservation, error) {
	return s.reservation, s.err
}

func (s *stubReservationService) GetReservation(context.Context, application.Principal, string) (application.Reservation, error) {
	return s.reservation, s.err
}

func (s *stubReservationService) ListReservations(context.Context, application.Principal, application.ReservationFilter) ([]application.Reservation, error) {
	return []application.Reservation{s.reservation}, s.err
}

func (s *stubReservationService) DeleteReservation(context.Context, application.Principal, string) error {
	return s.err
}

func (s *stubReservationService) Stats(context.Context, application.Principal) (application.ReservationStats, error) {
	return s.stats, s.err
}

func (s *stubReservationService) Availability(context.Context, string, string) (application.Availability, error) {
	return application.Availability{LessonID: "lesson-1", Date: "2024-06-11", Spots: 2, Booked: 2, IsFull: true}, s.err
}

type stubOfferingService struct {
	includeInactive bool
	category        string
	principal       application.Principal
	err             error
}

func (s *stubOfferingService) ListOfferings(_ context.Context, params application.ListOfferingsParams) ([]application.Offering, error) {
	s.principal = params.Principal
	s.includeInactive = params.IncludeInactive
	s.category = params.Category
	if params.IncludeInactive && !params.Principal.IsAdmin {
		return nil, application.ErrUnauthorized
	}
	return []application.Offering{{ID: "o1", Title: "Personal Training", IsActive: true}}, s.err
}

func (s *stubOfferingService) GetOffering(context.Context, application.Principal, string) (application.Offering, error) {
	return application.Offering{ID: "o1"}, s.err
}

func (s *stubOfferingService) CreateOffering(context.Context, application.CreateOfferingParams) (application.Offering, error) {
	return application.Offering{ID: "o1"}, s.err
}

func (s *stubOfferingService) UpdateOffering(context.Context, application.UpdateOfferingParams) (application.Offering, error) {
	return application.Offering{ID: "o1"}, s.err
}

func (s *stubOfferingService) DeleteOffering(context.Context, application.Principal, string) error {
	return s.err
}

func (s *stubOfferingService) ReorderOfferings(context.Context, application.ReorderOfferingsParams) error {
	return s.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testServer struct {
	auth         *stubAuthService
	lessons      *stubLessonService
	reservations *stubReservationService
	offerings    *stubOfferingService
	handler      http.Handler
}

func newTestServer(pingErr error) *testServer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := &testServer{
		auth: &stubAuthService{},
		lessons: &stubLessonService{lesson: application.Lesson{
			ID: "lesson-1", Title: "Morning Yoga", Time: "09:00", Trainer: "Aiko", Spots: 2,
			CreatedAt: testNow, UpdatedAt: testNow,
		}},
		reservations: &stubReservationService{reservation: application.Reservation{
			ID: "res-1", LessonID: "lesson-1", LessonDate: "2024-06-11", Status: application.StatusConfirmed,
			Participant: application.Participant{Name: "Hanako", Email: "hanako@example.com"},
		}},
		offerings: &stubOfferingService{},
	}
	ts.handler = NewRouter(RouterConfig{
		Auth:         NewAuthHandler(ts.auth, logger),
		Lessons:      NewLessonHandler(ts.lessons, ts.reservations, logger),
		Reservations: NewReservationHandler(ts.reservations, logger),
		Offerings:    NewOfferingHandler(ts.offerings, logger),
		Dashboard:    NewDashboardHandler(dashboardFunc(func() (application.Dashboard, error) { return application.Dashboard{TotalLessons: 3}, nil }), logger),
		Health:       NewHealthHandler(stubPinger{err: pingErr}, logger),
		Sessions:     newFakeValidator(),
		Logger:       logger,
	})
	return ts
}

type dashboardFunc func() (application.Dashboard, error)

func (f dashboardFunc) Dashboard(_ context.Context, principal application.Principal) (application.Dashboard, error) {
	if !principal.IsAdmin {
		return application.Dashboard{}, application.ErrUnauthorized
	}
	return f()
}

func (ts *testServer) do(method, path, body, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	ts.handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeErrorBody(t *testing.T, recorder *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body %q: %v", recorder.Body.String(), err)
	}
	return body
}

const bookingBody = `{"lesson_id":"lesson-1","lesson_date":"2024-06-11","participant_name":"Hanako","participant_email":"hanako@example.com"}`

func TestReservationHandlers(t *testing.T) {
	t.Parallel()

	t.Run("admits a reservation", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(nil)
		recorder := ts.do(http.MethodPost, "/api/reservations", bookingBody, "")
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (%s)", recorder.Code, recorder.Body.String())
		}
		var dto reservationDTO
		if err := json.Unmarshal(recorder.Body.Bytes(), &dto); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if dto.ID != "res-1" || dto.Status != "confirmed" {
			t.Fatalf("unexpected reservation: %+v", dto)
		}
		if len(ts.reservations.admitted) != 1 || ts.reservations.admitted[0].Participant.Email != "hanako@example.com" {
			t.Fatalf("expected request fields forwarded, got %+v", ts.reservations.admitted)
		}
	})

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "full", err: application.ErrLessonFull, status: http.StatusConflict, code: "lesson_full"},
		{name: "duplicate", err: application.ErrDuplicateBooking, status: http.StatusConflict, code: "already_registered"},
		{name: "unknown lesson", err: application.ErrLessonNotFound, status: http.StatusNotFound, code: "lesson_not_found"},
		{name: "storage", err: application.ErrStorageUnavailable, status: http.StatusServiceUnavailable, code: "storage_unavailable"},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: "internal_error"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run("maps "+tc.name, func(t *testing.T) {
			t.Parallel()

			ts := newTestServer(nil)
			ts.reservations.admitErr = tc.err
			recorder := ts.do(http.MethodPost, "/api/reservations", bookingBody, "")
			if recorder.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, recorder.Code)
			}
			if body := decodeErrorBody(t, recorder); body.ErrorCode != tc.code {
				t.Fatalf("expected code %q, got %q", tc.code, body.ErrorCode)
			}
		})
	}

	t.Run("returns field errors", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(nil)
		ts.reservations.admitErr = &application.ValidationError{FieldErrors: map[string]string{"participant_email": "must be a valid email address"}}
		recorder := ts.do(http.MethodPost, "/api/reservations", bookingBody, "")
		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", recorder.Code)
		}
		body := decodeErrorBody(t, recorder)
		if body.ErrorCode != "validation_failed" || body.Errors["participant_email"] == "" {
			t.Fatalf("unexpected body: %+v", body)
		}
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(nil)
		recorder := ts.do(http.MethodPost, "/api/reservations", `{"lesson_id":`, "")
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", recorder.Code)
		}
		if len(ts.reservations.admitted) != 0 {
			t.Fatalf("expected service not called")
		}
	})

	t.Run("admin listing requires session", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(nil)
		if recorder := ts.do(http.MethodGet, "/api/reservations", "", ""); recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
		if recorder := ts.do(http.MethodGet, "/api/reservations", "", "good-token"); recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
	})

	t.Run("stats route is not captured by id route", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(nil)
		ts.reservations.stats = application.ReservationStats{Month: "2024-06", TotalThisMonth: 7}
		recorder := ts.do(http.MethodGet, "/api/reservations/stats", "", "good-token")
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		var body statsResponse
		if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body.TotalThisMonth != 7 || body.PopularLessons == nil {
			t.Fatalf("unexpected stats body: %+v", body)
		}
	})
}

func TestLessonHandlers(t *testing.T) {
	t.Parallel()

	t.Run("lists publicly", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(nil)
		recorder := ts.do(http.MethodGet, "/api/lessons", "", "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		var lessons []lessonDTO
		if err := json.Unmarshal(recorder.Body.Bytes(), &lessons); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if len(lessons) != 1 || lessons[0].CreatedAt != "2024-06-05T10:00:00Z" {
			t.Fatalf("unexpected lessons: %+v", lessons)
		}
	})

	t.Run("mutations require session", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(nil)
		body := `{"title":"Yoga","time":"09:00","trainer":"Aiko","spots":5,"day_of_week":2}`
		if recorder := ts.do(http.MethodPost, "/api/lessons", body, ""); recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
		if recorder := ts.do(http.MethodPost, "/api/lessons", body, "good-token"); recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", recorder.Code)
		}
		if !ts.lessons.principal.IsAdmin {
			t.Fatalf("expected admin principal forwarded")
		}
	})

	t.Run("delete with reservations reports count", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(nil)
		ts.lessons.deleteErr = &application.LessonHasReservationsError{Count: 4}
		recorder := ts.do(http.MethodDelete, "/api/lessons/lesson-1", "", "good-token")
		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}
		body := decodeErrorBody(t, recorder)
		if body.ErrorCode != "lesson_has_reservations" || body.ReservationCount == nil || *body.ReservationCount != 4 {
			t.Fatalf("unexpected body: %+v", body)
		}
	})

	t.Run("delete without reservations", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(nil)
		if recorder := ts.do(http.MethodDelete, "/api/lessons/lesson-1", "", "good-token"); recorder.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", recorder.Code)
		}
	})

	t.Run("occurrences forward the window", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(nil)
		ts.lessons.occurrences = []application.Occurrence{{LessonID: "lesson-1", Date: "2024-06-11", Spots: 2, Available: 2}}
		recorder := ts.do(http.MethodGet, "/api/lessons/lesson-1/occurrences?from=2024-06-05&to=2024-06-30", "", "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		want := application.ListOccurrencesParams{LessonID: "lesson-1", From: "2024-06-05", To: "2024-06-30"}
		if ts.lessons.gotParams != want {
			t.Fatalf("expected %+v, got %+v", want, ts.lessons.gotParams)
		}
	})

	t.Run("availability", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(nil)
		recorder := ts.do(http.MethodGet, "/api/lessons/lesson-1/availability?date=2024-06-11", "", "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		var body availabilityDTO
		if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if !body.IsFull || body.Booked != 2 {
			t.Fatalf("unexpected availability: %+v", body)
		}
	})
}

func TestAuthHandlers(t *testing.T) {
	t.Parallel()

	t.Run("login issues session token via cookie and header", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(nil)
		ts.auth.result = application.AuthenticateResult{
			Admin:   application.AdminUser{ID: "admin-1", Username: "admin", Role: "admin"},
			Session: application.Session{Token: "fresh-token", ExpiresAt: testNow.Add(24 * time.Hour)},
		}
		recorder := ts.do(http.MethodPost, "/api/admin/login", `{"username":"admin","password":"secret"}`, "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if got := recorder.Header().Get("X-Session-Token"); got != "fresh-token" {
			t.Fatalf("expected token header, got %q", got)
		}
		cookies := recorder.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != sessionCookieName || cookies[0].Value != "fresh-token" || !cookies[0].HttpOnly {
			t.Fatalf("unexpected cookies: %+v", cookies)
		}
		var body loginResponse
		if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body.Token != "fresh-token" || body.ExpiresAt != "2024-06-06T10:00:00Z" || body.Admin.ID != "admin-1" {
			t.Fatalf("unexpected body: %+v", body)
		}
	})

	t.Run("login failures", func(t *testing.T) {
		t.Parallel()

		cases := map[error]int{
			application.ErrInvalidCredentials: http.StatusUnauthorized,
			application.ErrAccountLocked:      http.StatusLocked,
		}
		for err, status := range cases {
			ts := newTestServer(nil)
			ts.auth.err = err
			recorder := ts.do(http.MethodPost, "/api/admin/login", `{"username":"admin","password":"x"}`, "")
			if recorder.Code != status {
				t.Fatalf("%v: expected %d, got %d", err, status, recorder.Code)
			}
		}
	})

	t.Run("logout revokes the session", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(nil)
		recorder := ts.do(http.MethodPost, "/api/admin/logout", "", "good-token")
		if recorder.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", recorder.Code)
		}
		if len(ts.auth.revoked) != 1 || ts.auth.revoked[0] != "good-token" {
			t.Fatalf("expected token revoked, got %v", ts.auth.revoked)
		}
		cookies := recorder.Result().Cookies()
		if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
			t.Fatalf("expected cookie cleared, got %+v", cookies)
		}
	})

	t.Run("session echoes principal", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(nil)
		recorder := ts.do(http.MethodGet, "/api/admin/session", "", "good-token")
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		var body sessionResponse
		if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body.AdminID != "admin-1" || body.Username != "admin" {
			t.Fatalf("unexpected body: %+v", body)
		}
	})
}

func TestOfferingHandlers(t *testing.T) {
	t.Parallel()

	t.Run("visitors list active offerings", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(nil)
		recorder := ts.do(http.MethodGet, "/api/offerings", "", "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		var offerings []offeringDTO
		if err := json.Unmarshal(recorder.Body.Bytes(), &offerings); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if len(offerings) != 1 || offerings[0].Features == nil {
			t.Fatalf("expected features rendered as an empty list, got %+v", offerings)
		}
	})

	t.Run("include_inactive needs an admin session", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(nil)
		if recorder := ts.do(http.MethodGet, "/api/offerings?include_inactive=1", "", ""); recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for visitors, got %d", recorder.Code)
		}
		if recorder := ts.do(http.MethodGet, "/api/offerings?include_inactive=1", "", "good-token"); recorder.Code != http.StatusOK {
			t.Fatalf("expected 200 for admins, got %d", recorder.Code)
		}
		if !ts.offerings.includeInactive {
			t.Fatalf("expected include_inactive forwarded")
		}
	})

	t.Run("category filter is forwarded", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(nil)
		if recorder := ts.do(http.MethodGet, "/api/offerings?category=training", "", ""); recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if ts.offerings.category != "training" {
			t.Fatalf("expected category forwarded, got %q", ts.offerings.category)
		}
	})

	t.Run("reorder requires session", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(nil)
		body := `{"category":"training","ids":["o2","o1"]}`
		if recorder := ts.do(http.MethodPost, "/api/offerings/reorder", body, ""); recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
		if recorder := ts.do(http.MethodPost, "/api/offerings/reorder", body, "good-token"); recorder.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", recorder.Code)
		}
	})
}

func TestDashboardAndHealth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(nil)
	if recorder := ts.do(http.MethodGet, "/api/admin/dashboard", "", ""); recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", recorder.Code)
	}
	recorder := ts.do(http.MethodGet, "/api/admin/dashboard", "", "good-token")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var body dashboardResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.TotalLessons != 3 || body.RecentReservations == nil {
		t.Fatalf("unexpected dashboard: %+v", body)
	}

	if recorder := ts.do(http.MethodGet, "/healthz", "", ""); recorder.Code != http.StatusOK {
		t.Fatalf("expected healthy, got %d", recorder.Code)
	}
	down := newTestServer(errors.New("connection refused"))
	if recorder := down.do(http.MethodGet, "/healthz", "", ""); recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", recorder.Code)
	}
}
