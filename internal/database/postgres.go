package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"notification-relay/internal/config"
	"notification-relay/internal/models"

	"github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS notification_tasks (
	id              BIGSERIAL PRIMARY KEY,
	task_id         TEXT NOT NULL,
	source_system   TEXT NOT NULL,
	target_url      TEXT NOT NULL,
	http_method     TEXT NOT NULL,
	headers         TEXT,
	body            BYTEA,
	status          TEXT NOT NULL,
	retry_count     INTEGER NOT NULL DEFAULT 0,
	max_retries     INTEGER NOT NULL DEFAULT 5,
	next_retry_at   TIMESTAMPTZ,
	last_http_status INTEGER,
	last_error      TEXT,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL,
	completed_at    TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_task_id ON notification_tasks(task_id);
CREATE INDEX IF NOT EXISTS idx_status_next_retry ON notification_tasks(status, next_retry_at);
CREATE INDEX IF NOT EXISTS idx_source_system ON notification_tasks(source_system);
CREATE INDEX IF NOT EXISTS idx_created_at ON notification_tasks(created_at);

CREATE TABLE IF NOT EXISTS notification_logs (
	id            BIGSERIAL PRIMARY KEY,
	task_id       TEXT NOT NULL,
	attempt_num   INTEGER NOT NULL,
	http_status   INTEGER,
	response_body TEXT,
	error_message TEXT,
	latency_ms    BIGINT NOT NULL,
	success       BOOLEAN NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_task_id ON notification_logs(task_id);
CREATE INDEX IF NOT EXISTS idx_logs_created_at ON notification_logs(created_at);
`

// PostgresStore is the multi-node Task/Log Store backend.
type PostgresStore struct {
	*sql.DB
}

// NewPostgresStore opens a pooled connection to PostgreSQL per cfg and
// ensures the schema exists.
func NewPostgresStore(cfg config.PostgresConfig) (*PostgresStore, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslModeOrDefault(cfg.SSLMode))

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 25
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	store := &PostgresStore{DB: db}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return store, nil
}

func sslModeOrDefault(mode string) string {
	if mode == "" {
		return "disable"
	}
	return mode
}

func (s *PostgresStore) Insert(ctx context.Context, task *models.Task) error {
	headers, err := json.Marshal(task.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}

	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	row := s.QueryRowContext(ctx, `
		INSERT INTO notification_tasks
			(task_id, source_system, target_url, http_method, headers, body,
			 status, retry_count, max_retries, next_retry_at, last_http_status,
			 last_error, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`,
		task.TaskID, task.SourceSystem, task.TargetURL, task.HTTPMethod, string(headers), task.Body,
		string(task.Status), task.RetryCount, task.MaxRetries, task.NextRetryAt, task.LastHTTPStatus,
		task.LastError, task.CreatedAt, task.UpdatedAt, task.CompletedAt,
	)

	if err := row.Scan(&task.ID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateTaskID
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) FindByTaskID(ctx context.Context, taskID string) (*models.Task, error) {
	row := s.QueryRowContext(ctx, `
		SELECT id, task_id, source_system, target_url, http_method, headers, body,
		       status, retry_count, max_retries, next_retry_at, last_http_status,
		       last_error, created_at, updated_at, completed_at
		FROM notification_tasks WHERE task_id = $1`, taskID)

	return scanTask(row)
}

func (s *PostgresStore) CompareAndSetStatus(ctx context.Context, taskID string, from, to models.TaskStatus) (bool, error) {
	res, err := s.ExecContext(ctx, `
		UPDATE notification_tasks SET status = $1, updated_at = $2
		WHERE task_id = $3 AND status = $4`,
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

func (s *PostgresStore) Save(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now()

	res, err := s.ExecContext(ctx, `
		UPDATE notification_tasks SET
			status = $1, retry_count = $2, next_retry_at = $3, last_http_status = $4,
			last_error = $5, updated_at = $6, completed_at = $7
		WHERE task_id = $8`,
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

func (s *PostgresStore) FindDispatchable(ctx context.Context, now time.Time, limit int) ([]*models.Task, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT id, task_id, source_system, target_url, http_method, headers, body,
		       status, retry_count, max_retries, next_retry_at, last_http_status,
		       last_error, created_at, updated_at, completed_at
		FROM notification_tasks
		WHERE status = $1 AND (next_retry_at IS NULL OR next_retry_at <= $2)
		ORDER BY created_at ASC LIMIT $3`,
		string(models.StatusPending), now, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (s *PostgresStore) FindStuck(ctx context.Context, olderThan time.Time, limit int) ([]*models.Task, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT id, task_id, source_system, target_url, http_method, headers, body,
		       status, retry_count, max_retries, next_retry_at, last_http_status,
		       last_error, created_at, updated_at, completed_at
		FROM notification_tasks
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC LIMIT $3`,
		string(models.StatusProcessing), olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[models.TaskStatus]int, error) {
	rows, err := s.QueryContext(ctx, `SELECT status, COUNT(*) FROM notification_tasks GROUP BY status`)
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

func (s *PostgresStore) Append(ctx context.Context, entry *models.LogEntry) error {
	return appendLog(ctx, s.DB, entry, "$")
}

func (s *PostgresStore) FindLogsByTaskID(ctx context.Context, taskID string) ([]*models.LogEntry, error) {
	return findLogsByTaskID(ctx, s.DB, taskID, "$")
}
