package testfixtures

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// fixtureNamespace seeds the deterministic UUIDs returned by UUIDGenerator.
var fixtureNamespace = uuid.MustParse("6f1c9a52-3d0e-4b7a-9d55-0b8e2f1a7c40")

// IDGenerator produces deterministic identifiers for tests.
type IDGenerator struct {
	mu      sync.Mutex
	prefix  string
	counter uint64
}

// NewIDGenerator constructs a generator that yields identifiers with the given
// prefix. When prefix is empty, "id" is used.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier in the sequence.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("%s-%d", g.prefix, g.counter)
}

// NextFunc exposes Next as a function suitable for dependency injection.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// SetCounter overrides the internal counter, enabling deterministic resets.
func (g *IDGenerator) SetCounter(counter uint64) {
	g.mu.Lock()
	g.counter = counter
	g.mu.Unlock()
}

// UUIDGenerator yields UUID-shaped identifiers that repeat across runs, so
// tests can use the same id format as production.
type UUIDGenerator struct {
	mu      sync.Mutex
	counter uint64
}

// NewUUIDGenerator returns a generator starting at the first sequence value.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// Next returns the next deterministic UUID.
func (g *UUIDGenerator) Next() string {
	g.mu.Lock()
	g.counter++
	n := g.counter
	g.mu.Unlock()
	return uuid.NewSHA1(fixtureNamespace, []byte(strconv.FormatUint(n, 10))).String()
}

// NextFunc exposes Next as a function suitable for dependency injection.
func (g *UUIDGenerator) NextFunc() func() string {
	return g.Next
}
