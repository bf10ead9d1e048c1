package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"notification-relay/internal/config"
	"notification-relay/internal/models"
)

// Result is the raw outcome of a single delivery attempt, before
// classification.
type Result struct {
	HTTPStatus   int
	ResponseBody string
	Err          error
	LatencyMs    int64
	NetworkError bool
}

// Executor performs the outbound HTTP call for a task. It does not mutate
// task state — that's the Outcome Handler's job.
type Executor struct {
	client *http.Client
}

// NewExecutor builds an Executor with connect/read timeouts from cfg.
func NewExecutor(cfg config.DeliveryConfig) *Executor {
	dialer := &net.Dialer{Timeout: time.Duration(cfg.ConnectTimeoutSeconds) * time.Second}
	transport := &http.Transport{DialContext: dialer.DialContext}

	return &Executor{
		client: &http.Client{
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
			Transport: transport,
			// 3xx responses are classified on their own status, not
			// followed to whatever the redirect target returns.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Deliver performs the outbound HTTP request described by task.
func (e *Executor) Deliver(ctx context.Context, task *models.Task) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, task.HTTPMethod, task.TargetURL, bytes.NewReader(task.Body))
	if err != nil {
		return Result{Err: fmt.Errorf("build request: %w", err), LatencyMs: sinceMs(start)}
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range task.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	latency := sinceMs(start)
	if err != nil {
		// Any error from client.Do at this layer is a transport-level
		// failure (timeout, connection refused, DNS, TLS) rather than an
		// HTTP response — the server never returned a status code.
		return Result{Err: err, LatencyMs: latency, NetworkError: true}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	return Result{
		HTTPStatus:   resp.StatusCode,
		ResponseBody: string(body),
		LatencyMs:    latency,
	}
}

func sinceMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
