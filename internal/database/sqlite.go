package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"notification-relay/internal/models"

	"github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS notification_tasks (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id         TEXT NOT NULL,
	source_system   TEXT NOT NULL,
	target_url      TEXT NOT NULL,
	http_method     TEXT NOT NULL,
	headers         TEXT,
	body            BLOB,
	status          TEXT NOT NULL,
	retry_count     INTEGER NOT NULL DEFAULT 0,
	max_retries     INTEGER NOT NULL DEFAULT 5,
	next_retry_at   DATETIME,
	last_http_status INTEGER,
	last_error      TEXT,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL,
	completed_at    DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_task_id ON notification_tasks(task_id);
CREATE INDEX IF NOT EXISTS idx_status_next_retry ON notification_tasks(status, next_retry_at);
CREATE INDEX IF NOT EXISTS idx_source_system ON notification_tasks(source_system);
CREATE INDEX IF NOT EXISTS idx_created_at ON notification_tasks(created_at);

CREATE TABLE IF NOT EXISTS notification_logs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id       TEXT NOT NULL,
	attempt_num   INTEGER NOT NULL,
	http_status   INTEGER,
	response_body TEXT,
	error_message TEXT,
	latency_ms    INTEGER NOT NULL,
	success       INTEGER NOT NULL,
	created_at    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_task_id ON notification_logs(task_id);
CREATE INDEX IF NOT EXISTS idx_logs_created_at ON notification_logs(created_at);
`

// SQLiteStore is the default single-node Task/Log Store backend.
type SQLiteStore struct {
	*sql.DB
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed store at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	store := &SQLiteStore{DB: db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) createTables() error {
	if _, err := s.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, task *models.Task) error {
	headers, err := json.Marshal(task.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}

	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	res, err := s.ExecContext(ctx, `
		INSERT INTO notification_tasks
			(task_id, source_system, target_url, http_method, headers, body,
			 status, retry_count, max_retries, next_retry_at, last_http_status,
			 last_error, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskID, task.SourceSystem, task.TargetURL, task.HTTPMethod, string(headers), task.Body,
		string(task.Status), task.RetryCount, task.MaxRetries, task.NextRetryAt, task.LastHTTPStatus,
		task.LastError, task.CreatedAt, task.UpdatedAt, task.CompletedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicateTaskID
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	id, err := res.LastInsertId()
	if err == nil {
		task.ID = id
	}
	return nil
}

func (s *SQLiteStore) FindByTaskID(ctx context.Context, taskID string) (*models.Task, error) {
	row := s.QueryRowContext(ctx, `
		SELECT id, task_id, source_system, target_url, http_method, headers, body,
		       status, retry_count, max_retries, next_retry_at, last_http_status,
		       last_error, created_at, updated_at, completed_at
		FROM notification_tasks WHERE task_id = ?`, taskID)

	t, err := scanTask(row)
	fmt.Printf("DEBUG FindByTaskID(%q) -> task=%+v err=%v\n", taskID, t, err)
	return t, err
}

func (s *SQLiteStore) CompareAndSetStatus(ctx context.Context, taskID string, from, to models.TaskStatus) (bool, error) {
	res, err := s.ExecContext(ctx, `
		UPDATE notification_tasks SET status = ?, updated_at = ?
		WHERE task_id = ? AND status = ?`,
		string(to), time.Now(), taskID, string(from))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) Save(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now()

	res, err := s.ExecContext(ctx, `
		UPDATE notification_tasks SET
			status = ?, retry_count = ?, next_retry_at = ?, last_http_status = ?,
			last_error = ?, updated_at = ?, completed_at = ?
		WHERE task_id = ?`,
		string(task.Status), task.RetryCount, task.NextRetryAt, task.LastHTTPStatus,
		task.LastError, task.UpdatedAt, task.CompletedAt, task.TaskID,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) FindDispatchable(ctx context.Context, now time.Time, limit int) ([]*models.Task, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT id, task_id, source_system, target_url, http_method, headers, body,
		       status, retry_count, max_retries, next_retry_at, last_http_status,
		       last_error, created_at, updated_at, completed_at
		FROM notification_tasks
		WHERE status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at ASC LIMIT ?`,
		string(models.StatusPending), now, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (s *SQLiteStore) FindStuck(ctx context.Context, olderThan time.Time, limit int) ([]*models.Task, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT id, task_id, source_system, target_url, http_method, headers, body,
		       status, retry_count, max_retries, next_retry_at, last_http_status,
		       last_error, created_at, updated_at, completed_at
		FROM notification_tasks
		WHERE status = ? AND updated_at < ?
		ORDER BY updated_at ASC LIMIT ?`,
		string(models.StatusProcessing), olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[models.TaskStatus]int, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM notification_tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	counts := make(map[models.TaskStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[models.TaskStatus(status)] = n
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) Append(ctx context.Context, entry *models.LogEntry) error {
	return appendLog(ctx, s.DB, entry, "?")
}

func (s *SQLiteStore) FindLogsByTaskID(ctx context.Context, taskID string) ([]*models.LogEntry, error) {
	return findLogsByTaskID(ctx, s.DB, taskID, "?")
}
