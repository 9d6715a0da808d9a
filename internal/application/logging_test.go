package application

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/gym-reservations/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersRequestLogger(t *testing.T) {
	t.Parallel()

	var base, request bytes.Buffer
	baseLogger := slog.New(slog.NewJSONHandler(&base, nil))
	requestLogger := slog.New(slog.NewJSONHandler(&request, nil)).With("request_id", "req-7")

	ctx := logging.ContextWithLogger(context.Background(), requestLogger)
	serviceLogger(ctx, baseLogger, "ReservationService", "AdmitReservation", "lesson_id", "lesson-1").Info("admitted")

	if base.Len() != 0 {
		t.Fatalf("expected base logger to stay silent, got %s", base.String())
	}
	line := request.String()
	for _, want := range []string{`"request_id":"req-7"`, `"service":"ReservationService"`, `"operation":"AdmitReservation"`, `"lesson_id":"lesson-1"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %s", want, line)
		}
	}

	serviceLogger(context.Background(), baseLogger, "LessonService", "").Info("listed")
	if !strings.Contains(base.String(), `"service":"LessonService"`) || strings.Contains(base.String(), "operation") {
		t.Fatalf("unexpected base output: %s", base.String())
	}
}
