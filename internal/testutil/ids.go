package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs hands out "<prefix>-1", "<prefix>-2", ... for connection
// ids in tests, so log lines and traces are reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewSequentialIDs creates a generator. An empty prefix uses "conn".
//
// The first call to Next() returns "<prefix>-1".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "conn"
	}
	return &SequentialIDs{prefix: prefix}
}

// Next returns the next id.
func (g *SequentialIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Count returns how many ids were handed out.
func (g *SequentialIDs) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset starts the sequence over.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
