package testutil

import (
	"fmt"
	"sync"
)

// CountingTxIDs hands out transaction IDs "<prefix>-0001", "<prefix>-0002"
// and so on. Unlike engine.FixedGenerator it never runs out, which suits
// scenarios whose invocation count is not known up front.
// It satisfies engine.TxIDGenerator.
type CountingTxIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewCountingTxIDs creates a generator. An empty prefix becomes "tx".
func NewCountingTxIDs(prefix string) *CountingTxIDs {
	if prefix == "" {
		prefix = "tx"
	}
	return &CountingTxIDs{prefix: prefix}
}

// Generate returns the next ID.
func (g *CountingTxIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
