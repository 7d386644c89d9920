package async

import (
	"context"
	"sync"
	"time"

	"github.com/membergate/discourse-on-ghost/pkg/observability"
)

// DefaultJobDelay is the minimum spacing between queued jobs.
const DefaultJobDelay = time.Second

// Queue serializes fire-and-forget jobs through a single-slot gate with
// inter-job spacing, and deduplicates them by key. A key is "pending" from
// the moment it is enqueued until its job begins executing; enqueueing a
// pending key is a no-op. Once a job is running its key is free again, so a
// fresh event for the same key is not silently dropped.
type Queue struct {
	gate   *Gate
	logger *observability.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	jobID   int64

	wg sync.WaitGroup
}

// NewQueue creates a queue with the given inter-job delay. A non-positive
// delay falls back to DefaultJobDelay.
func NewQueue(logger *observability.Logger, delay time.Duration) *Queue {
	if delay <= 0 {
		delay = DefaultJobDelay
	}
	return &Queue{
		gate:    NewGate(1, delay),
		logger:  logger,
		pending: make(map[string]struct{}),
	}
}

// Enqueue schedules job under key. It returns false without scheduling when
// a job for key is already pending. Has reflects the key immediately, before
// the job starts running. Job errors are logged and swallowed.
func (q *Queue) Enqueue(key string, job func(ctx context.Context) error) bool {
	q.mu.Lock()
	if _, exists := q.pending[key]; exists {
		q.mu.Unlock()
		return false
	}
	q.pending[key] = struct{}{}
	q.jobID++
	id := q.jobID
	q.mu.Unlock()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		err := q.gate.Do(context.Background(), func() error {
			// The job is no longer pending once it starts; a new event for
			// the same key must be able to queue behind it.
			q.mu.Lock()
			delete(q.pending, key)
			waiting := len(q.pending)
			q.mu.Unlock()

			q.logger.WithFields(map[string]interface{}{
				"job":     id,
				"key":     key,
				"waiting": waiting,
			}).Info("Running queued job")

			return job(context.Background())
		})
		if err != nil {
			q.logger.WithError(err).WithField("key", key).Error("Queued job failed")
		}
	}()

	return true
}

// Has reports whether a job for key is pending (enqueued but not yet
// started).
func (q *Queue) Has(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[key]
	return ok
}

// PendingCount reports the number of pending jobs.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Wait blocks until every job enqueued so far has finished. Intended for
// shutdown and tests.
func (q *Queue) Wait() {
	q.wg.Wait()
}
