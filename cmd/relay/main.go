package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notification-relay/internal/api"
	"notification-relay/internal/config"
	"notification-relay/internal/database"
	"notification-relay/internal/delivery"
	"notification-relay/internal/intake"
	"notification-relay/internal/logging"
	"notification-relay/internal/metrics"
	"notification-relay/internal/outcome"
	"notification-relay/internal/queue"
	"notification-relay/internal/scheduler"
	"notification-relay/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to the relay config file")
	flag.Parse()

	cfg, logger, closer, err := loadConfigAndLogger(*configPath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	store, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	q, err := queue.Open(*cfg, logger)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metrics.Register()

	intakeSvc := intake.New(store, q, cfg.Retry, logger)
	executor := delivery.NewExecutor(cfg.Delivery)
	outcomeHandler := outcome.New(store, store, cfg.Delivery, cfg.Retry, logger)

	pool := worker.New(cfg.Worker, store, q, executor, outcomeHandler, logger)
	pool.Start(ctx)
	defer pool.Shutdown()

	retryScheduler := scheduler.NewRetryScheduler(store, q, cfg.Scheduler, logger)
	go retryScheduler.Start(ctx)

	recoverySweeper := scheduler.NewRecoverySweeper(store, q, cfg.Scheduler, logger)
	go recoverySweeper.Start(ctx)

	backupSvc := database.NewBackupService(cfg.Database, cfg.Backup, logger)
	go backupSvc.Start(ctx)

	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(cfg.Monitoring.PrometheusPort, logger)
	}

	if cfg.API.Enabled {
		httpServer := api.NewHTTPServer(cfg.API, store, store, q, intakeSvc, logger)
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error().Err(err).Msg("http api server stopped unexpectedly")
			}
		}()

		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("http api shutdown failed")
			}
		}()
	}

	logger.Info().Str("app", cfg.App.Name).Msg("notification relay started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	return nil
}

func loadConfigAndLogger(configPath string) (*config.Config, zerolog.Logger, io.Closer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, *logger, closer, nil
}

func startMetricsServer(port int, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info().Str("addr", addr).Msg("prometheus metrics listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server stopped unexpectedly")
	}
}
