package outcome

import (
	"context"
	"fmt"
	"time"

	"notification-relay/internal/config"
	"notification-relay/internal/database"
	"notification-relay/internal/delivery"
	"notification-relay/internal/logging"
	"notification-relay/internal/metrics"
	"notification-relay/internal/models"

	"github.com/rs/zerolog"
)

// Handler applies a classified delivery outcome to a task's durable
// record and appends the corresponding log entry.
type Handler struct {
	tasks             database.TaskStore
	logs              database.LogStore
	maxBodyLogBytes   int
	retryBaseDelaySec int
	logger            zerolog.Logger
}

// New constructs an outcome Handler. deliveryCfg controls how much of a
// response body is retained in the log store; retryCfg controls the base
// of the exponential backoff applied between retry attempts.
func New(tasks database.TaskStore, logs database.LogStore, deliveryCfg config.DeliveryConfig, retryCfg config.RetryConfig, logger zerolog.Logger) *Handler {
	maxBody := deliveryCfg.MaxBodyLogBytes
	if maxBody <= 0 {
		maxBody = models.MaxResponseBodyLogLen
	}
	baseDelay := retryCfg.BaseDelaySeconds
	if baseDelay <= 0 {
		baseDelay = 2
	}
	return &Handler{
		tasks:             tasks,
		logs:              logs,
		maxBodyLogBytes:   maxBody,
		retryBaseDelaySec: baseDelay,
		logger:            logging.Component(logger, "outcome"),
	}
}

// Handle applies the outcome of one delivery attempt against task and
// persists both the log entry and the updated task state. Logging the
// attempt before saving task state means a crash between the two leaves
// the log as the record of what was actually tried.
func (h *Handler) Handle(ctx context.Context, task *models.Task, result delivery.Result, outcome delivery.Outcome) error {
	attemptNum := task.RetryCount + 1

	entry := &models.LogEntry{
		TaskID:       task.TaskID,
		AttemptNum:   attemptNum,
		LatencyMs:    result.LatencyMs,
		Success:      outcome.Kind == delivery.OutcomeSuccess,
		CreatedAt:    time.Now(),
		ResponseBody: result.ResponseBody,
		ErrorMessage: outcome.Message,
	}
	if outcome.HTTPStatus != nil {
		entry.HTTPStatus = outcome.HTTPStatus
	}
	if len(entry.ResponseBody) > h.maxBodyLogBytes {
		entry.ResponseBody = entry.ResponseBody[:h.maxBodyLogBytes]
	}
	entry.Truncate()

	if err := h.logs.Append(ctx, entry); err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}

	metrics.ObserveDelivery(observeLabel(outcome), float64(result.LatencyMs)/1000)

	switch outcome.Kind {
	case delivery.OutcomeSuccess:
		return h.markSuccess(ctx, task, outcome)
	case delivery.OutcomeTerminal:
		return h.markTerminal(ctx, task, outcome)
	default:
		return h.markRetryableOrExhausted(ctx, task, outcome)
	}
}

// observeLabel picks the metrics label for a classified outcome, folding
// the retry reason into the label for retryable outcomes the way the
// classifier's own Kind/RetryReason split requires.
func observeLabel(outcome delivery.Outcome) string {
	if outcome.Kind == delivery.OutcomeRetryable {
		return "retryable_" + string(outcome.RetryReason)
	}
	return string(outcome.Kind)
}

func (h *Handler) markSuccess(ctx context.Context, task *models.Task, outcome delivery.Outcome) error {
	now := time.Now()
	task.Status = models.StatusSuccess
	task.LastHTTPStatus = outcome.HTTPStatus
	task.LastError = ""
	task.CompletedAt = &now

	return h.save(ctx, task)
}

func (h *Handler) markTerminal(ctx context.Context, task *models.Task, outcome delivery.Outcome) error {
	now := time.Now()
	task.RetryCount++
	task.Status = models.StatusFailed
	task.LastHTTPStatus = outcome.HTTPStatus
	task.LastError = outcome.Message
	task.CompletedAt = &now

	return h.save(ctx, task)
}

func (h *Handler) markRetryableOrExhausted(ctx context.Context, task *models.Task, outcome delivery.Outcome) error {
	task.RetryCount++
	task.LastHTTPStatus = outcome.HTTPStatus
	task.LastError = outcome.Message

	if task.CanRetry() {
		task.Status = models.StatusPending
		next := time.Now().Add(time.Duration(task.BackoffSeconds(h.retryBaseDelaySec)) * time.Second)
		task.NextRetryAt = &next
	} else {
		now := time.Now()
		task.Status = models.StatusFailed
		task.CompletedAt = &now
		metrics.IncTaskExhausted()
	}

	return h.save(ctx, task)
}

func (h *Handler) save(ctx context.Context, task *models.Task) error {
	if err := h.tasks.Save(ctx, task); err != nil {
		return fmt.Errorf("save task state: %w", err)
	}
	return nil
}
