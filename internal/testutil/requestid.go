package testutil

import (
	"fmt"
	"sync"
)

// SequentialRequestIDs generates "<prefix>-1", "<prefix>-2", ...
//
// The same scenario run with a fresh generator produces byte-identical
// event logs, which golden trace comparison relies on.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialRequestIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialRequestIDs creates a generator. An empty prefix defaults to
// "req".
func NewSequentialRequestIDs(prefix string) *SequentialRequestIDs {
	if prefix == "" {
		prefix = "req"
	}
	return &SequentialRequestIDs{prefix: prefix}
}

// Generate returns the next ID. Implements engine.RequestIDGenerator.
func (g *SequentialRequestIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts numbering at 1.
func (g *SequentialRequestIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
