package models

import "time"

const (
	// MaxResponseBodyLogLen truncates the stored response body.
	MaxResponseBodyLogLen = 2000
	// MaxErrorLogLen truncates the stored error message.
	MaxErrorLogLen = 1000
)

// LogEntry records the outcome of a single delivery attempt for a task.
type LogEntry struct {
	ID           int64
	TaskID       string
	AttemptNum   int
	HTTPStatus   *int
	ResponseBody string
	ErrorMessage string
	LatencyMs    int64
	Success      bool
	CreatedAt    time.Time
}

// Truncate clamps the response body and error message to their storage
// limits, mirroring what the log store enforces before INSERT.
func (e *LogEntry) Truncate() {
	if len(e.ResponseBody) > MaxResponseBodyLogLen {
		e.ResponseBody = e.ResponseBody[:MaxResponseBodyLogLen]
	}
	if len(e.ErrorMessage) > MaxErrorLogLen {
		e.ErrorMessage = e.ErrorMessage[:MaxErrorLogLen]
	}
}
