// Package replay provides a fixed-capacity dedup window for webhook
// deliveries. It bounds exposure to replayed requests within a recent window;
// it is not a substitute for signature verification.
package replay

import "sync"

// DefaultCapacity is the number of recently seen tokens retained.
const DefaultCapacity = 64

// Guard is a fixed-capacity FIFO set of recently seen tokens. Inserting a
// duplicate reports "already seen" without modifying the window; inserting
// into a full window evicts the oldest token.
type Guard struct {
	mu    sync.Mutex
	slots []string
	seen  map[string]struct{}
	head  int
	tail  int
	full  bool
}

// NewGuard creates a guard retaining up to capacity tokens. A non-positive
// capacity falls back to DefaultCapacity.
func NewGuard(capacity int) *Guard {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Guard{
		slots: make([]string, capacity),
		seen:  make(map[string]struct{}, capacity),
	}
}

// Insert adds token to the window. It returns false if the token was already
// present (a replayed delivery) and true if it was newly recorded.
func (g *Guard) Insert(token string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[token]; ok {
		return false
	}

	if g.full {
		g.evictOldest()
	}

	g.slots[g.tail] = token
	g.seen[token] = struct{}{}
	g.tail = (g.tail + 1) % len(g.slots)
	g.full = g.tail == g.head

	return true
}

// Len reports the number of tokens currently retained.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

func (g *Guard) evictOldest() {
	oldest := g.slots[g.head]
	delete(g.seen, oldest)
	g.head = (g.head + 1) % len(g.slots)
	g.full = false
}
