package api

import (
	"time"

	"notification-relay/internal/models"
)

type createNotificationRequest struct {
	SourceSystem string            `json:"sourceSystem"`
	TargetURL    string            `json:"targetUrl"`
	HTTPMethod   string            `json:"httpMethod,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	Body         map[string]any    `json:"body,omitempty"`
	MaxRetries   int               `json:"maxRetries,omitempty"`
}

type notificationResponse struct {
	TaskID         string     `json:"taskId"`
	SourceSystem   string     `json:"sourceSystem"`
	TargetURL      string     `json:"targetUrl"`
	HTTPMethod     string     `json:"httpMethod"`
	Status         string     `json:"status"`
	RetryCount     int        `json:"retryCount"`
	MaxRetries     int        `json:"maxRetries"`
	NextRetryAt    *time.Time `json:"nextRetryAt,omitempty"`
	LastHTTPStatus *int       `json:"lastHttpStatus,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

func toNotificationResponse(t *models.Task) notificationResponse {
	return notificationResponse{
		TaskID:         t.TaskID,
		SourceSystem:   t.SourceSystem,
		TargetURL:      t.TargetURL,
		HTTPMethod:     t.HTTPMethod,
		Status:         string(t.Status),
		RetryCount:     t.RetryCount,
		MaxRetries:     t.MaxRetries,
		NextRetryAt:    t.NextRetryAt,
		LastHTTPStatus: t.LastHTTPStatus,
		LastError:      t.LastError,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		CompletedAt:    t.CompletedAt,
	}
}

type logEntryResponse struct {
	AttemptNum   int       `json:"attemptNum"`
	HTTPStatus   *int      `json:"httpStatus,omitempty"`
	ResponseBody string    `json:"responseBody,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	LatencyMs    int64     `json:"latencyMs"`
	Success      bool      `json:"success"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toLogEntryResponse(e *models.LogEntry) logEntryResponse {
	return logEntryResponse{
		AttemptNum:   e.AttemptNum,
		HTTPStatus:   e.HTTPStatus,
		ResponseBody: e.ResponseBody,
		ErrorMessage: e.ErrorMessage,
		LatencyMs:    e.LatencyMs,
		Success:      e.Success,
		CreatedAt:    e.CreatedAt,
	}
}

type statsResponse struct {
	Counts    map[string]int `json:"counts"`
	QueueSize int            `json:"queueSize"`
}

type healthResponse struct {
	Status string `json:"status"`
}
