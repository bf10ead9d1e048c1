package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// MemoryQueue is an in-process channel-backed Queue. Used as the default
// single-node backend and as the fallback half of FailoverQueue.
type MemoryQueue struct {
	ch     chan string
	logger zerolog.Logger
}

// NewMemoryQueue constructs a bounded in-memory queue. A push against a
// full channel drops the entry rather than blocking the caller, consistent
// with the queue's best-effort contract.
func NewMemoryQueue(size int, logger zerolog.Logger) *MemoryQueue {
	if size <= 0 {
		size = 1000
	}
	return &MemoryQueue{ch: make(chan string, size), logger: logger}
}

func (q *MemoryQueue) Push(ctx context.Context, taskID string) error {
	select {
	case q.ch <- taskID:
		return nil
	default:
		q.logger.Warn().Str("task_id", taskID).Msg("memory queue full, dropping task")
		return nil
	}
}

func (q *MemoryQueue) PopBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	select {
	case taskID := <-q.ch:
		return taskID, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case taskID := <-q.ch:
		return taskID, nil
	case <-timer.C:
		return "", nil
	case <-ctx.Done():
		return "", nil
	}
}

func (q *MemoryQueue) Size(ctx context.Context) (int, error) {
	return len(q.ch), nil
}
