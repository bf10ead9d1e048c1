package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"notification-relay/internal/config"
	"notification-relay/internal/database"
	"notification-relay/internal/intake"
	"notification-relay/internal/models"
	"notification-relay/internal/queue"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, database.Store, queue.Queue) {
	t.Helper()
	store, err := database.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	q := queue.NewMemoryQueue(10, zerolog.Nop())
	intakeSvc := intake.New(store, q, config.RetryConfig{}, zerolog.Nop())

	apiCfg := config.APIConfig{Port: 0, Auth: config.APIAuthConfig{Enabled: false}, RateLimit: config.APIRateLimitConfig{Enabled: false}}
	srv := NewHTTPServer(apiCfg, store, store, q, intakeSvc, zerolog.Nop())

	ts := httptest.NewServer(srv.server.Handler)
	t.Cleanup(ts.Close)
	return ts, store, q
}

func TestCreateNotificationAccepted(t *testing.T) {
	ts, _, _ := newTestServer(t)

	body := bytes.NewBufferString(`{"sourceSystem":"billing","targetUrl":"https://example.com/webhook"}`)
	resp, err := http.Post(ts.URL+"/v1/notifications", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out notificationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.TaskID)
	require.Equal(t, "PENDING", out.Status)
}

func TestCreateNotificationMissingTargetURL(t *testing.T) {
	ts, _, _ := newTestServer(t)

	body := bytes.NewBufferString(`{"sourceSystem":"billing"}`)
	resp, err := http.Post(ts.URL+"/v1/notifications", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetStatusNotFound(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/notifications/" + "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetStatusInvalidTaskID(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/notifications/not-a-uuid")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStats(t *testing.T) {
	ts, _, _ := newTestServer(t)

	body := bytes.NewBufferString(`{"sourceSystem":"billing","targetUrl":"https://example.com/webhook"}`)
	_, err := http.Post(ts.URL+"/v1/notifications", "application/json", body)
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/v1/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out statsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, 1, out.Counts["PENDING"])
}

func TestRetryRejectsNonFailedTask(t *testing.T) {
	ts, _, _ := newTestServer(t)

	body := bytes.NewBufferString(`{"sourceSystem":"billing","targetUrl":"https://example.com/webhook"}`)
	resp, err := http.Post(ts.URL+"/v1/notifications", "application/json", body)
	require.NoError(t, err)
	var created notificationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	retryResp, err := http.Post(ts.URL+"/v1/notifications/"+created.TaskID+"/retry", "application/json", nil)
	require.NoError(t, err)
	defer retryResp.Body.Close()
	require.Equal(t, http.StatusBadRequest, retryResp.StatusCode)
}

func TestRetrySucceedsOnFailedTask(t *testing.T) {
	ts, store, q := newTestServer(t)
	ctx := context.Background()

	body := bytes.NewBufferString(`{"sourceSystem":"billing","targetUrl":"https://example.com/webhook"}`)
	resp, err := http.Post(ts.URL+"/v1/notifications", "application/json", body)
	require.NoError(t, err)
	var created notificationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	// Drain the queue entry intake pushed, then drive the task to FAILED
	// the way the Outcome Handler would after exhausting its retry budget.
	_, err = q.PopBlocking(ctx, time.Millisecond)
	require.NoError(t, err)

	task, err := store.FindByTaskID(ctx, created.TaskID)
	require.NoError(t, err)
	task.Status = models.StatusFailed
	task.RetryCount = 5
	task.LastError = "HTTP 500: boom"
	now := time.Now()
	task.CompletedAt = &now
	require.NoError(t, store.Save(ctx, task))

	retryResp, err := http.Post(ts.URL+"/v1/notifications/"+created.TaskID+"/retry", "application/json", nil)
	require.NoError(t, err)
	defer retryResp.Body.Close()
	require.Equal(t, http.StatusOK, retryResp.StatusCode)

	var retried notificationResponse
	require.NoError(t, json.NewDecoder(retryResp.Body).Decode(&retried))
	require.Equal(t, "PENDING", retried.Status)
	require.Equal(t, 0, retried.RetryCount)
	require.Nil(t, retried.CompletedAt)

	found, err := store.FindByTaskID(ctx, created.TaskID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, found.Status)
	require.Equal(t, 0, found.RetryCount)
	require.Nil(t, found.NextRetryAt)
	require.Nil(t, found.CompletedAt)

	queuedID, err := q.PopBlocking(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, created.TaskID, queuedID)
}
