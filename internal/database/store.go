package database

import (
	"context"
	"errors"
	"time"

	"notification-relay/internal/models"
)

var (
	// ErrNotFound is returned when a task or log lookup finds nothing.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateTaskID is returned when a task insert collides on task_id.
	ErrDuplicateTaskID = errors.New("duplicate task id")
	// ErrStoreUnavailable wraps underlying connection/driver failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// TaskStore is the durable mapping of task-id to task record.
type TaskStore interface {
	Insert(ctx context.Context, task *models.Task) error
	FindByTaskID(ctx context.Context, taskID string) (*models.Task, error)
	// CompareAndSetStatus atomically transitions a task from from->to,
	// returning false without error if the task wasn't in the from state.
	CompareAndSetStatus(ctx context.Context, taskID string, from, to models.TaskStatus) (bool, error)
	Save(ctx context.Context, task *models.Task) error
	FindDispatchable(ctx context.Context, now time.Time, limit int) ([]*models.Task, error)
	FindStuck(ctx context.Context, olderThan time.Time, limit int) ([]*models.Task, error)
	CountByStatus(ctx context.Context) (map[models.TaskStatus]int, error)
	Close() error
}

// LogStore is the append-only per-attempt log for tasks.
type LogStore interface {
	Append(ctx context.Context, entry *models.LogEntry) error
	FindLogsByTaskID(ctx context.Context, taskID string) ([]*models.LogEntry, error)
}

// Store bundles the task and log stores behind the backend driving them.
type Store interface {
	TaskStore
	LogStore
}
