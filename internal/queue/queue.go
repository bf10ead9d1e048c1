package queue

import (
	"context"
	"time"
)

// Queue is a best-effort FIFO of task-ids. It is not the source of truth
// for task state — entries may be lost, which the Retry Scheduler and
// Recovery Sweeper reconcile against the Task Store.
type Queue interface {
	Push(ctx context.Context, taskID string) error
	// PopBlocking waits up to timeout for an entry, returning ("", nil)
	// on timeout rather than an error.
	PopBlocking(ctx context.Context, timeout time.Duration) (string, error)
	Size(ctx context.Context) (int, error)
}
