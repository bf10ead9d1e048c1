package intake

import (
	"context"
	"fmt"
	"time"

	"notification-relay/internal/config"
	"notification-relay/internal/database"
	"notification-relay/internal/logging"
	"notification-relay/internal/metrics"
	"notification-relay/internal/models"
	"notification-relay/internal/queue"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CreateParams is the validated input to CreateTask. Validation of the
// caller-supplied fields (target URL format, method whitelist, and so on)
// happens in the HTTP layer before this point; CreateTask assumes valid
// input.
type CreateParams struct {
	SourceSystem string
	TargetURL    string
	HTTPMethod   string
	Headers      map[string]string
	Body         []byte
	MaxRetries   int
}

// Service is the Intake component: assigns an id, persists the task, and
// enqueues it for dispatch.
type Service struct {
	store      database.TaskStore
	queue      queue.Queue
	maxRetries int
	logger     zerolog.Logger
}

// New constructs an intake Service. cfg.MaxRetries is the retry budget
// applied to a task that doesn't request its own.
func New(store database.TaskStore, q queue.Queue, cfg config.RetryConfig, logger zerolog.Logger) *Service {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = models.DefaultMaxRetries
	}
	return &Service{store: store, queue: q, maxRetries: maxRetries, logger: logging.Component(logger, "intake")}
}

// CreateTask persists a new task and enqueues it. Insert happening before
// enqueue is the commitment point: if the enqueue fails, the task is still
// durable and will be picked up by the Retry Scheduler.
func (s *Service) CreateTask(ctx context.Context, p CreateParams) (*models.Task, error) {
	method := p.HTTPMethod
	if method == "" {
		method = models.DefaultHTTPMethod
	}

	maxRetries := p.MaxRetries
	if maxRetries <= 0 {
		maxRetries = s.maxRetries
	}

	task := &models.Task{
		TaskID:       uuid.NewString(),
		SourceSystem: p.SourceSystem,
		TargetURL:    p.TargetURL,
		HTTPMethod:   method,
		Headers:      p.Headers,
		Body:         p.Body,
		Status:       models.StatusPending,
		MaxRetries:   maxRetries,
	}

	if err := s.store.Insert(ctx, task); err != nil {
		return nil, fmt.Errorf("persist task: %w", err)
	}

	metrics.IncTaskCreated()

	pushCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.queue.Push(pushCtx, task.TaskID); err != nil {
		s.logger.Warn().Err(err).Str("task_id", task.TaskID).
			Msg("enqueue failed after persist, task remains pending for the retry scheduler")
	}

	return task, nil
}
