package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"notification-relay/internal/database"
	"notification-relay/internal/intake"
	"notification-relay/internal/metrics"
	"notification-relay/internal/models"

	"github.com/google/uuid"
)

func (s *HTTPServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_notification")

	var req createNotificationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.SourceSystem) == "" {
		writeError(w, http.StatusBadRequest, "sourceSystem is required")
		return
	}
	if strings.TrimSpace(req.TargetURL) == "" {
		writeError(w, http.StatusBadRequest, "targetUrl is required")
		return
	}
	if !strings.HasPrefix(req.TargetURL, "http://") && !strings.HasPrefix(req.TargetURL, "https://") {
		writeError(w, http.StatusBadRequest, "targetUrl must be an absolute http(s) URL")
		return
	}

	method := strings.ToUpper(strings.TrimSpace(req.HTTPMethod))
	if method == "" {
		method = models.DefaultHTTPMethod
	}
	if method != "POST" && method != "PUT" && method != "PATCH" {
		writeError(w, http.StatusBadRequest, "httpMethod must be one of POST, PUT, PATCH")
		return
	}

	var body []byte
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid body payload")
			return
		}
		body = encoded
	}

	task, err := s.intake.CreateTask(r.Context(), intake.CreateParams{
		SourceSystem: req.SourceSystem,
		TargetURL:    req.TargetURL,
		HTTPMethod:   method,
		Headers:      req.Headers,
		Body:         body,
		MaxRetries:   req.MaxRetries,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create notification task")
		return
	}

	writeJSON(w, http.StatusAccepted, toNotificationResponse(task))
}

func (s *HTTPServer) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_notification_status")

	taskID := r.PathValue("taskId")
	if _, err := uuid.Parse(taskID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid taskId")
		return
	}

	task, err := s.tasks.FindByTaskID(r.Context(), taskID)
	if err != nil {
		if err == database.ErrNotFound {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}

	writeJSON(w, http.StatusOK, toNotificationResponse(task))
}

func (s *HTTPServer) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_notification_logs")

	taskID := r.PathValue("taskId")
	if _, err := uuid.Parse(taskID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid taskId")
		return
	}

	if _, err := s.tasks.FindByTaskID(r.Context(), taskID); err != nil {
		if err == database.ErrNotFound {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}

	entries, err := s.logs.FindLogsByTaskID(r.Context(), taskID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load logs")
		return
	}

	responses := make([]logEntryResponse, 0, len(entries))
	for _, e := range entries {
		responses = append(responses, toLogEntryResponse(e))
	}

	writeJSON(w, http.StatusOK, map[string]any{"logs": responses})
}

func (s *HTTPServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("retry_notification")

	taskID := r.PathValue("taskId")
	if _, err := uuid.Parse(taskID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid taskId")
		return
	}

	task, err := s.tasks.FindByTaskID(r.Context(), taskID)
	if err != nil {
		if err == database.ErrNotFound {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}

	if task.Status != models.StatusFailed {
		writeError(w, http.StatusBadRequest, "task is not in a failed state")
		return
	}

	ok, err := s.tasks.CompareAndSetStatus(r.Context(), taskID, models.StatusFailed, models.StatusPending)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset task")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "task is not in a failed state")
		return
	}

	task.Status = models.StatusPending
	task.RetryCount = 0
	task.NextRetryAt = nil
	task.CompletedAt = nil
	if err := s.tasks.Save(r.Context(), task); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset task")
		return
	}

	if err := s.queue.Push(r.Context(), task.TaskID); err != nil {
		s.logger.Warn().Err(err).Str("task_id", task.TaskID).Msg("manual retry re-enqueue failed")
	}

	writeJSON(w, http.StatusOK, toNotificationResponse(task))
}

func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("stats")

	counts, err := s.tasks.CountByStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}

	size, err := s.queue.Size(r.Context())
	if err == nil {
		metrics.SetQueueSize(size)
	}

	writeJSON(w, http.StatusOK, statsResponse{Counts: out, QueueSize: size})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
