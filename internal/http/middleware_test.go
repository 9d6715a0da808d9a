package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/gym-reservations/internal/application"
)

type fakeSessionValidator struct {
	tokens map[string]application.Principal
	err    error
	seen   []string
}

func (f *fakeSessionValidator) ValidateSession(_ context.Context, token string) (application.Principal, error) {
	f.seen = append(f.seen, token)
	if f.err != nil {
		return application.Principal{}, f.err
	}
	principal, ok := f.tokens[token]
	if !ok {
		return application.Principal{}, application.ErrUnauthorized
	}
	return principal, nil
}

func newFakeValidator() *fakeSessionValidator {
	return &fakeSessionValidator{tokens: map[string]application.Principal{
		"good-token": {UserID: "admin-1", Username: "admin", IsAdmin: true},
	}}
}

func principalEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("X-Principal", principal.UserID)
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		prepare        func(r *http.Request)
		validatorErr   error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "missing credentials",
			prepare:        func(*http.Request) {},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "unauthorized",
		},
		{
			name:           "unknown bearer token",
			prepare:        func(r *http.Request) { r.Header.Set("Authorization", "Bearer stale") },
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "unauthorized",
		},
		{
			name:           "storage unavailable",
			prepare:        func(r *http.Request) { r.Header.Set("Authorization", "Bearer good-token") },
			validatorErr:   application.ErrStorageUnavailable,
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   "storage_unavailable",
		},
		{
			name:           "bearer header",
			prepare:        func(r *http.Request) { r.Header.Set("Authorization", "bearer good-token") },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "session header",
			prepare:        func(r *http.Request) { r.Header.Set("X-Session-Token", "good-token") },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "cookie",
			prepare:        func(r *http.Request) { r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "good-token"}) },
			expectedStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			validator := newFakeValidator()
			validator.err = tc.validatorErr
			handler := RequireSession(validator, nil)(principalEcho())

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			tc.prepare(req)
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, req)

			if recorder.Code != tc.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tc.expectedStatus, recorder.Code, recorder.Body.String())
			}
			if tc.expectedStatus == http.StatusOK {
				if got := recorder.Header().Get("X-Principal"); got != "admin-1" {
					t.Fatalf("expected principal admin-1 in context, got %q", got)
				}
				return
			}
			body := decodeErrorBody(t, recorder)
			if body.ErrorCode != tc.expectedCode {
				t.Fatalf("expected error code %q, got %q", tc.expectedCode, body.ErrorCode)
			}
		})
	}
}

func TestOptionalSession(t *testing.T) {
	t.Parallel()

	t.Run("anonymous passes through", func(t *testing.T) {
		t.Parallel()

		handler := OptionalSession(newFakeValidator(), nil)(principalEcho())
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
		if recorder.Code != http.StatusNoContent {
			t.Fatalf("expected anonymous request, got %d", recorder.Code)
		}
	})

	t.Run("invalid token is treated as anonymous", func(t *testing.T) {
		t.Parallel()

		handler := OptionalSession(newFakeValidator(), nil)(principalEcho())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Session-Token", "expired")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusNoContent {
			t.Fatalf("expected anonymous request, got %d", recorder.Code)
		}
	})

	t.Run("valid token attaches principal", func(t *testing.T) {
		t.Parallel()

		handler := OptionalSession(newFakeValidator(), nil)(principalEcho())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Session-Token", "good-token")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusOK || recorder.Header().Get("X-Principal") != "admin-1" {
			t.Fatalf("expected principal attached, got %d", recorder.Code)
		}
	})

	t.Run("storage failure is reported", func(t *testing.T) {
		t.Parallel()

		validator := newFakeValidator()
		validator.err = errors.Join(application.ErrStorageUnavailable)
		handler := OptionalSession(validator, nil)(principalEcho())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Session-Token", "good-token")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", recorder.Code)
		}
	})
}

func TestRequestLoggerAttachesLogger(t *testing.T) {
	t.Parallel()

	var sawLogger bool
	handler := RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = LoggerFromContext(r.Context()) != nil
		w.WriteHeader(http.StatusAccepted)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	if !sawLogger {
		t.Fatalf("expected request scoped logger in context")
	}
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected wrapped writer to pass status through, got %d", recorder.Code)
	}
}

func TestCORSCredentialsFollowOriginList(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name            string
		allowed         []string
		wantOrigin      string
		wantCredentials string
	}{
		{name: "empty list means any origin", allowed: nil, wantOrigin: "*", wantCredentials: ""},
		{name: "wildcard", allowed: []string{"*"}, wantOrigin: "*", wantCredentials: ""},
		{name: "explicit origin", allowed: []string{"https://studio.example.com"}, wantOrigin: "https://studio.example.com", wantCredentials: "true"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			handler := CORS(tc.allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/lessons", nil)
			req.Header.Set("Origin", "https://studio.example.com")
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, req)

			if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Fatalf("expected allow-origin %q, got %q", tc.wantOrigin, got)
			}
			if got := recorder.Header().Get("Access-Control-Allow-Credentials"); got != tc.wantCredentials {
				t.Fatalf("expected allow-credentials %q, got %q", tc.wantCredentials, got)
			}
		})
	}
}
