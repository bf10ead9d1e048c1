package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"notification-relay/internal/config"
	"notification-relay/internal/database"
	"notification-relay/internal/delivery"
	"notification-relay/internal/logging"
	"notification-relay/internal/metrics"
	"notification-relay/internal/models"
	"notification-relay/internal/outcome"
	"notification-relay/internal/queue"

	"github.com/rs/zerolog"
)

// Pool is the Worker Pool component: N goroutines popping task-ids from
// the queue, claiming the task via CAS, and running it through delivery
// and the outcome handler.
type Pool struct {
	cfg      config.WorkerConfig
	store    database.TaskStore
	queue    queue.Queue
	executor *delivery.Executor
	outcome  *outcome.Handler
	logger   zerolog.Logger

	wg      sync.WaitGroup
	running atomic.Bool
}

// New constructs a worker Pool.
func New(cfg config.WorkerConfig, store database.TaskStore, q queue.Queue, executor *delivery.Executor, outcomeHandler *outcome.Handler, logger zerolog.Logger) *Pool {
	return &Pool{
		cfg:      cfg,
		store:    store,
		queue:    q,
		executor: executor,
		outcome:  outcomeHandler,
		logger:   logging.Component(logger, "worker_pool"),
	}
}

// Start launches cfg.Count workers. It returns once all worker goroutines
// have been spawned; call Shutdown to stop them.
func (p *Pool) Start(ctx context.Context) {
	p.running.Store(true)

	for i := 0; i < p.cfg.Count; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, i)
	}
}

// Shutdown stops accepting new work and waits up to cfg.ShutdownGrace for
// in-flight deliveries to finish before returning.
func (p *Pool) Shutdown() {
	p.running.Store(false)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.cfg.ShutdownGrace.Duration()):
		p.logger.Warn().Msg("worker pool shutdown grace period elapsed, some workers may still be in flight")
	}
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()

	logger := p.logger.With().Int("worker_id", id).Logger()

	for p.running.Load() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		taskID, err := p.queue.PopBlocking(ctx, p.cfg.PopTimeout.Duration())
		if err != nil {
			logger.Error().Err(err).Msg("queue pop failed, backing off")
			time.Sleep(time.Second)
			continue
		}
		if taskID == "" {
			continue
		}

		if err := p.processTask(ctx, taskID, logger); err != nil {
			logger.Error().Err(err).Str("task_id", taskID).Msg("unexpected error processing task")
			time.Sleep(time.Second)
		}
	}
}

func (p *Pool) processTask(ctx context.Context, taskID string, logger zerolog.Logger) error {
	task, err := p.store.FindByTaskID(ctx, taskID)
	if err != nil {
		if err == database.ErrNotFound {
			logger.Warn().Str("task_id", taskID).Msg("queued task no longer exists")
			return nil
		}
		return err
	}

	if !task.Status.CanProcess() {
		return nil
	}

	claimed, err := p.store.CompareAndSetStatus(ctx, taskID, models.StatusPending, models.StatusProcessing)
	if err != nil {
		return err
	}
	if !claimed {
		// Another worker won the race, or the task left PENDING after it
		// was loaded.
		return nil
	}
	metrics.IncTaskClaimed()

	// Re-read after claiming: the row may have changed shape, and the
	// claim itself doesn't tell us whether the task's backoff window has
	// elapsed yet.
	task, err = p.store.FindByTaskID(ctx, taskID)
	if err != nil {
		return err
	}

	if task.NextRetryAt != nil && task.NextRetryAt.After(time.Now()) {
		// Not due yet: release the claim rather than dispatch early.
		_, releaseErr := p.store.CompareAndSetStatus(ctx, taskID, models.StatusProcessing, models.StatusPending)
		return releaseErr
	}

	logger.Info().Str("task_id", taskID).Str("target_url", task.TargetURL).
		Int("attempt", task.RetryCount+1).Msg("dispatching delivery")

	result := p.executor.Deliver(ctx, task)
	classified := delivery.Classify(result)

	return p.outcome.Handle(ctx, task, result, classified)
}
