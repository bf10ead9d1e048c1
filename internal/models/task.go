package models

import (
	"math"
	"time"
)

// TaskStatus is the lifecycle state of a notification task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusProcessing TaskStatus = "PROCESSING"
	StatusSuccess    TaskStatus = "SUCCESS"
	StatusFailed     TaskStatus = "FAILED"
)

// IsFinal reports whether the status can no longer transition on its own.
func (s TaskStatus) IsFinal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// CanProcess reports whether a task in this status is eligible for
// dispatch by a worker.
func (s TaskStatus) CanProcess() bool {
	return s == StatusPending
}

const (
	// DefaultMaxRetries is applied to a task that doesn't specify one.
	DefaultMaxRetries = 5
	// DefaultHTTPMethod is applied when a task omits a method.
	DefaultHTTPMethod = "POST"
)

// Task is a durable record of a single notification delivery intent.
type Task struct {
	ID             int64
	TaskID         string
	SourceSystem   string
	TargetURL      string
	HTTPMethod     string
	Headers        map[string]string
	Body           []byte
	Status         TaskStatus
	RetryCount     int
	MaxRetries     int
	NextRetryAt    *time.Time
	LastHTTPStatus *int
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

// CanRetry reports whether the task has retry budget remaining.
func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

// BackoffSeconds computes the delay before the next retry attempt, given
// the retry count has already been incremented for this failure:
// delta = base^retryCount seconds. base defaults to 2 if not positive.
func (t *Task) BackoffSeconds(base int) int {
	if base <= 0 {
		base = 2
	}
	return int(math.Pow(float64(base), float64(t.RetryCount)))
}
