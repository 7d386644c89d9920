package async

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// Gate is a counting semaphore that bounds concurrent access to a downstream
// service. When a delay is configured, a released slot only becomes available
// again after the delay has elapsed, spacing out bursts of work.
type Gate struct {
	sem   *semaphore.Weighted
	delay time.Duration
}

// NewGate creates a gate admitting up to max concurrent holders. delay is the
// minimum time between one holder finishing and the next acquiring its slot;
// zero disables spacing.
func NewGate(max int64, delay time.Duration) *Gate {
	if max < 1 {
		max = 1
	}
	return &Gate{
		sem:   semaphore.NewWeighted(max),
		delay: delay,
	}
}

// Do runs fn while holding a gate slot. It blocks until a slot is available
// or ctx is done.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.release()

	return fn()
}

// release frees the slot, deferred by the configured delay so the next
// holder cannot start immediately after the previous one.
func (g *Gate) release() {
	if g.delay <= 0 {
		g.sem.Release(1)
		return
	}

	time.AfterFunc(g.delay, func() {
		g.sem.Release(1)
	})
}
