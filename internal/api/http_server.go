package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"notification-relay/internal/config"
	"notification-relay/internal/database"
	"notification-relay/internal/intake"
	"notification-relay/internal/logging"
	"notification-relay/internal/queue"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the relay's JSON-over-HTTP surface: intake, status,
// logs, manual retry, stats, and health.
type HTTPServer struct {
	cfg    config.APIConfig
	tasks  database.TaskStore
	logs   database.LogStore
	queue  queue.Queue
	intake *intake.Service
	auth   *HTTPAuth
	server *http.Server
	logger zerolog.Logger
}

// NewHTTPServer wires the routes and middleware chain.
func NewHTTPServer(cfg config.APIConfig, tasks database.TaskStore, logs database.LogStore, q queue.Queue, intakeSvc *intake.Service, logger zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:    cfg,
		tasks:  tasks,
		logs:   logs,
		queue:  q,
		intake: intakeSvc,
		logger: logging.Component(logger, "http_api"),
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("POST /v1/notifications", srv.handleCreate)
	mux.HandleFunc("GET /v1/notifications/{taskId}", srv.handleGetStatus)
	mux.HandleFunc("GET /v1/notifications/{taskId}/logs", srv.handleGetLogs)
	mux.HandleFunc("POST /v1/notifications/{taskId}/retry", srv.handleRetry)
	mux.HandleFunc("GET /v1/stats", srv.handleStats)
	mux.HandleFunc("GET /v1/health", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Start blocks serving until the server is shut down.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
