package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"notification-relay/internal/models"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task       models.Task
		status     string
		headersRaw sql.NullString
		body       []byte
	)

	err := row.Scan(
		&task.ID, &task.TaskID, &task.SourceSystem, &task.TargetURL, &task.HTTPMethod,
		&headersRaw, &body, &status, &task.RetryCount, &task.MaxRetries, &task.NextRetryAt,
		&task.LastHTTPStatus, &task.LastError, &task.CreatedAt, &task.UpdatedAt, &task.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	task.Status = models.TaskStatus(status)
	task.Body = body
	if headersRaw.Valid && headersRaw.String != "" {
		if err := json.Unmarshal([]byte(headersRaw.String), &task.Headers); err != nil {
			return nil, fmt.Errorf("unmarshal headers: %w", err)
		}
	}

	return &task, nil
}

func scanTasks(rows *sql.Rows) ([]*models.Task, error) {
	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func appendLog(ctx context.Context, db *sql.DB, entry *models.LogEntry, ph string) error {
	entry.Truncate()

	query := rebind(`
		INSERT INTO notification_logs
			(task_id, attempt_num, http_status, response_body, error_message, latency_ms, success, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, ph)

	res, err := db.ExecContext(ctx, query,
		entry.TaskID, entry.AttemptNum, entry.HTTPStatus, entry.ResponseBody,
		entry.ErrorMessage, entry.LatencyMs, entry.Success, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	id, err := res.LastInsertId()
	if err == nil {
		entry.ID = id
	}
	return nil
}

func findLogsByTaskID(ctx context.Context, db *sql.DB, taskID, ph string) ([]*models.LogEntry, error) {
	query := rebind(`
		SELECT id, task_id, attempt_num, http_status, response_body, error_message,
		       latency_ms, success, created_at
		FROM notification_logs WHERE task_id = ? ORDER BY attempt_num ASC`, ph)

	rows, err := db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var entries []*models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		var success any
		if err := rows.Scan(&e.ID, &e.TaskID, &e.AttemptNum, &e.HTTPStatus, &e.ResponseBody,
			&e.ErrorMessage, &e.LatencyMs, &success, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		e.Success = asBool(success)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// asBool normalizes the driver value behind a boolean-ish column: sqlite3
// returns it as an int64 (0/1), lib/pq returns a real bool.
func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	default:
		return false
	}
}

// rebind rewrites "?" placeholders into "$1, $2, ..." style when ph == "$".
// Used so the shared query text can serve both the sqlite and postgres
// backends without duplicating the SQL strings.
func rebind(query, ph string) string {
	if ph == "?" {
		return query
	}

	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, []byte(fmt.Sprintf("$%d", n))...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}
