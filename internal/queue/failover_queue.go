package queue

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const recoveryCheckInterval = time.Minute

// FailoverQueue prefers a primary (durable) Queue and transparently falls
// back to an in-process memory queue when the primary is unavailable,
// without changing the Queue contract observed by callers.
type FailoverQueue struct {
	primary  Queue
	fallback Queue
	logger   zerolog.Logger

	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nanos
}

// NewFailoverQueue wraps primary with fallback.
func NewFailoverQueue(primary, fallback Queue, logger zerolog.Logger) *FailoverQueue {
	return &FailoverQueue{primary: primary, fallback: fallback, logger: logger}
}

func (q *FailoverQueue) Push(ctx context.Context, taskID string) error {
	if !q.isDown.Load() || q.shouldRecheck() {
		if err := q.primary.Push(ctx, taskID); err == nil {
			q.isDown.Store(false)
			return nil
		} else {
			q.markDown(err)
		}
	}
	return q.fallback.Push(ctx, taskID)
}

func (q *FailoverQueue) PopBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	// Drain anything that landed in the fallback queue first so entries
	// pushed during an outage aren't stranded behind a long primary block.
	taskID, err := q.fallback.PopBlocking(ctx, 0)
	if err == nil && taskID != "" {
		return taskID, nil
	}

	if q.isDown.Load() && !q.shouldRecheck() {
		return q.fallback.PopBlocking(ctx, timeout)
	}

	taskID, err = q.primary.PopBlocking(ctx, timeout)
	if err != nil {
		q.markDown(err)
		return q.fallback.PopBlocking(ctx, 0)
	}
	q.isDown.Store(false)
	return taskID, nil
}

func (q *FailoverQueue) Size(ctx context.Context) (int, error) {
	primarySize, err := q.primary.Size(ctx)
	if err != nil {
		primarySize = 0
	}
	fallbackSize, err := q.fallback.Size(ctx)
	if err != nil {
		fallbackSize = 0
	}
	return primarySize + fallbackSize, nil
}

func (q *FailoverQueue) markDown(err error) {
	q.isDown.Store(true)
	q.lastCheck.Store(time.Now().UnixNano())
	q.logger.Warn().Err(err).Msg("primary queue unavailable, falling back to memory queue")
}

func (q *FailoverQueue) shouldRecheck() bool {
	last := q.lastCheck.Load()
	return last == 0 || time.Since(time.Unix(0, last)) >= recoveryCheckInterval
}
