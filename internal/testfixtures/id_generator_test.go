package testfixtures

import (
	"testing"

	"github.com/google/uuid"
)

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("lesson")

	first := gen.Next()
	second := gen.Next()

	if first != "lesson-1" || second != "lesson-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
}

func TestIDGeneratorCanReset(t *testing.T) {
	gen := NewIDGenerator("")
	_ = gen.Next()
	gen.SetCounter(0)

	if next := gen.Next(); next != "id-1" {
		t.Fatalf("expected id-1 after reset, got %q", next)
	}
}

func TestUUIDGeneratorIsDeterministic(t *testing.T) {
	first := NewUUIDGenerator()
	second := NewUUIDGenerator()

	a, b := first.Next(), first.Next()
	if a == b {
		t.Fatalf("expected distinct identifiers, got %q twice", a)
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Fatalf("expected a valid UUID, got %q: %v", a, err)
	}
	if again := second.NextFunc()(); again != a {
		t.Fatalf("expected %q from a fresh generator, got %q", a, again)
	}
}
