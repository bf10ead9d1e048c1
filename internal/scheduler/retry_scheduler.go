package scheduler

import (
	"context"
	"time"

	"notification-relay/internal/config"
	"notification-relay/internal/database"
	"notification-relay/internal/logging"
	"notification-relay/internal/metrics"
	"notification-relay/internal/queue"

	"github.com/rs/zerolog"
)

// RetryScheduler periodically finds tasks whose backoff window has
// elapsed and re-enqueues them, reconciling the best-effort queue against
// the durable task store.
type RetryScheduler struct {
	store    database.TaskStore
	queue    queue.Queue
	cfg      config.SchedulerConfig
	logger   zerolog.Logger
}

// NewRetryScheduler constructs a RetryScheduler.
func NewRetryScheduler(store database.TaskStore, q queue.Queue, cfg config.SchedulerConfig, logger zerolog.Logger) *RetryScheduler {
	return &RetryScheduler{store: store, queue: q, cfg: cfg, logger: logging.Component(logger, "retry_scheduler")}
}

// Start runs the scan loop until ctx is cancelled.
func (s *RetryScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RetryScanInterval.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

func (s *RetryScheduler) scan(ctx context.Context) {
	tasks, err := s.store.FindDispatchable(ctx, time.Now(), s.cfg.RetryBatchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("find dispatchable tasks failed")
		return
	}

	for _, task := range tasks {
		if err := s.queue.Push(ctx, task.TaskID); err != nil {
			s.logger.Warn().Err(err).Str("task_id", task.TaskID).Msg("re-enqueue failed")
			continue
		}
	}

	if len(tasks) > 0 {
		s.logger.Debug().Int("count", len(tasks)).Msg("re-enqueued dispatchable tasks")
	}

	if size, err := s.queue.Size(ctx); err == nil {
		metrics.SetQueueSize(size)
	}
}
