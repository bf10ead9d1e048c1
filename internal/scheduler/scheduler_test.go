package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"notification-relay/internal/config"
	"notification-relay/internal/database"
	"notification-relay/internal/models"
	"notification-relay/internal/queue"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *database.SQLiteStore {
	t.Helper()
	store, err := database.NewSQLiteStore(filepath.Join(t.TempDir(), "scheduler.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRetrySchedulerScanEnqueuesDueTasks(t *testing.T) {
	store := newTestStore(t)
	q := queue.NewMemoryQueue(10, zerolog.Nop())
	sched := NewRetryScheduler(store, q, config.SchedulerConfig{RetryBatchSize: 10}, zerolog.Nop())

	task := &models.Task{TaskID: "task-sched-1", TargetURL: "https://example.com", HTTPMethod: "POST", Status: models.StatusPending, MaxRetries: 3}
	require.NoError(t, store.Insert(context.Background(), task))

	sched.scan(context.Background())

	popped, err := q.PopBlocking(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "task-sched-1", popped)
}

func TestRecoverySweeperResetsStuckTasks(t *testing.T) {
	store := newTestStore(t)
	q := queue.NewMemoryQueue(10, zerolog.Nop())
	sweeper := NewRecoverySweeper(store, q, config.SchedulerConfig{StuckThreshold: config.Duration(5 * time.Minute)}, zerolog.Nop())

	task := &models.Task{TaskID: "task-stuck-1", TargetURL: "https://example.com", HTTPMethod: "POST", Status: models.StatusProcessing, MaxRetries: 3}
	require.NoError(t, store.Insert(context.Background(), task))

	_, err := store.Exec(`UPDATE notification_tasks SET updated_at = ? WHERE task_id = ?`,
		time.Now().Add(-10*time.Minute), task.TaskID)
	require.NoError(t, err)

	sweeper.sweep(context.Background())

	found, err := store.FindByTaskID(context.Background(), task.TaskID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, found.Status)

	popped, err := q.PopBlocking(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "task-stuck-1", popped)
}

func TestRecoverySweeperIgnoresFreshTasks(t *testing.T) {
	store := newTestStore(t)
	q := queue.NewMemoryQueue(10, zerolog.Nop())
	sweeper := NewRecoverySweeper(store, q, config.SchedulerConfig{StuckThreshold: config.Duration(5 * time.Minute)}, zerolog.Nop())

	task := &models.Task{TaskID: "task-fresh-1", TargetURL: "https://example.com", HTTPMethod: "POST", Status: models.StatusProcessing, MaxRetries: 3}
	require.NoError(t, store.Insert(context.Background(), task))

	sweeper.sweep(context.Background())

	found, err := store.FindByTaskID(context.Background(), task.TaskID)
	require.NoError(t, err)
	require.Equal(t, models.StatusProcessing, found.Status)
}
