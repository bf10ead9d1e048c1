package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"notification-relay/internal/config"
	"notification-relay/internal/database"
	"notification-relay/internal/delivery"
	"notification-relay/internal/models"
	"notification-relay/internal/outcome"
	"notification-relay/internal/queue"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.SQLiteStore {
	t.Helper()
	store, err := database.NewSQLiteStore(filepath.Join(t.TempDir(), "worker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPoolDeliversSuccessfully(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newTestDB(t)
	q := queue.NewMemoryQueue(10, zerolog.Nop())

	task := &models.Task{
		TaskID:     "task-pool-1",
		TargetURL:  server.URL,
		HTTPMethod: "POST",
		Status:     models.StatusPending,
		MaxRetries: 3,
	}
	require.NoError(t, store.Insert(context.Background(), task))
	require.NoError(t, q.Push(context.Background(), task.TaskID))

	executor := delivery.NewExecutor(config.DeliveryConfig{TimeoutSeconds: 5, ConnectTimeoutSeconds: 2})
	handler := outcome.New(store, store, config.DeliveryConfig{}, config.RetryConfig{}, zerolog.Nop())
	pool := New(config.WorkerConfig{Count: 1, PopTimeout: config.Duration(200 * time.Millisecond), ShutdownGrace: config.Duration(time.Second)}, store, q, executor, handler, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	require.Eventually(t, func() bool {
		found, err := store.FindByTaskID(context.Background(), task.TaskID)
		return err == nil && found.Status == models.StatusSuccess
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	pool.Shutdown()
}

func TestPoolReleasesClaimWhenNotDue(t *testing.T) {
	store := newTestDB(t)
	q := queue.NewMemoryQueue(10, zerolog.Nop())

	future := time.Now().Add(time.Hour)
	task := &models.Task{
		TaskID:      "task-pool-2",
		TargetURL:   "https://example.com",
		HTTPMethod:  "POST",
		Status:      models.StatusPending,
		MaxRetries:  3,
		NextRetryAt: &future,
	}
	require.NoError(t, store.Insert(context.Background(), task))
	require.NoError(t, q.Push(context.Background(), task.TaskID))

	executor := delivery.NewExecutor(config.DeliveryConfig{TimeoutSeconds: 1, ConnectTimeoutSeconds: 1})
	handler := outcome.New(store, store, config.DeliveryConfig{}, config.RetryConfig{}, zerolog.Nop())
	pool := New(config.WorkerConfig{Count: 1, PopTimeout: config.Duration(100 * time.Millisecond), ShutdownGrace: config.Duration(time.Second)}, store, q, executor, handler, zerolog.Nop())

	require.NoError(t, pool.processTask(context.Background(), task.TaskID, zerolog.Nop()))

	found, err := store.FindByTaskID(context.Background(), task.TaskID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, found.Status)

	logs, err := store.FindLogsByTaskID(context.Background(), task.TaskID)
	require.NoError(t, err)
	require.Empty(t, logs)
}
