package scheduler

import (
	"context"
	"time"

	"notification-relay/internal/config"
	"notification-relay/internal/database"
	"notification-relay/internal/logging"
	"notification-relay/internal/models"
	"notification-relay/internal/queue"

	"github.com/rs/zerolog"
)

// RecoverySweeper periodically finds tasks stuck in PROCESSING because
// their worker crashed or hung, and returns them to PENDING so they get
// picked up again.
type RecoverySweeper struct {
	store  database.TaskStore
	queue  queue.Queue
	cfg    config.SchedulerConfig
	logger zerolog.Logger
}

// NewRecoverySweeper constructs a RecoverySweeper.
func NewRecoverySweeper(store database.TaskStore, q queue.Queue, cfg config.SchedulerConfig, logger zerolog.Logger) *RecoverySweeper {
	return &RecoverySweeper{store: store, queue: q, cfg: cfg, logger: logging.Component(logger, "recovery_sweeper")}
}

// Start runs the sweep loop until ctx is cancelled.
func (s *RecoverySweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RecoveryInterval.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *RecoverySweeper) sweep(ctx context.Context) {
	threshold := time.Now().Add(-s.cfg.StuckThreshold.Duration())

	stuck, err := s.store.FindStuck(ctx, threshold, 100)
	if err != nil {
		s.logger.Error().Err(err).Msg("find stuck tasks failed")
		return
	}

	for _, task := range stuck {
		ok, err := s.store.CompareAndSetStatus(ctx, task.TaskID, models.StatusProcessing, models.StatusPending)
		if err != nil {
			s.logger.Error().Err(err).Str("task_id", task.TaskID).Msg("recovery CAS failed")
			continue
		}
		if !ok {
			continue
		}

		if err := s.queue.Push(ctx, task.TaskID); err != nil {
			s.logger.Warn().Err(err).Str("task_id", task.TaskID).Msg("recovery re-enqueue failed")
		}

		s.logger.Warn().Str("task_id", task.TaskID).Msg("recovered stuck task")
	}
}
