package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"notification-relay/internal/config"
	"notification-relay/internal/models"

	"github.com/stretchr/testify/require"
)

func testExecutor() *Executor {
	return NewExecutor(config.DeliveryConfig{TimeoutSeconds: 5, ConnectTimeoutSeconds: 2})
}

func TestDeliverSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	task := &models.Task{TargetURL: server.URL, HTTPMethod: "POST", Body: []byte(`{}`)}
	result := testExecutor().Deliver(context.Background(), task)

	require.NoError(t, result.Err)
	require.Equal(t, http.StatusOK, result.HTTPStatus)

	outcome := Classify(result)
	require.Equal(t, OutcomeSuccess, outcome.Kind)
}

func TestDeliverServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	task := &models.Task{TargetURL: server.URL, HTTPMethod: "POST"}
	result := testExecutor().Deliver(context.Background(), task)
	outcome := Classify(result)

	require.Equal(t, OutcomeRetryable, outcome.Kind)
	require.Equal(t, ReasonServerError, outcome.RetryReason)
}

func TestDeliverClientErrorIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	task := &models.Task{TargetURL: server.URL, HTTPMethod: "POST"}
	result := testExecutor().Deliver(context.Background(), task)
	outcome := Classify(result)

	require.Equal(t, OutcomeTerminal, outcome.Kind)
}

func TestDeliverTooManyRequestsIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	task := &models.Task{TargetURL: server.URL, HTTPMethod: "POST"}
	result := testExecutor().Deliver(context.Background(), task)
	outcome := Classify(result)

	require.Equal(t, OutcomeRetryable, outcome.Kind)
	require.Equal(t, ReasonTransientClient, outcome.RetryReason)
}

func TestDeliverRedirectIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMovedPermanently)
	}))
	defer server.Close()

	task := &models.Task{TargetURL: server.URL, HTTPMethod: "POST"}
	result := testExecutor().Deliver(context.Background(), task)
	outcome := Classify(result)

	require.Equal(t, OutcomeTerminal, outcome.Kind)
}

func TestDeliverNetworkErrorIsRetryable(t *testing.T) {
	task := &models.Task{TargetURL: "http://127.0.0.1:1", HTTPMethod: "POST"}
	result := testExecutor().Deliver(context.Background(), task)
	outcome := Classify(result)

	require.Error(t, result.Err)
	require.Equal(t, OutcomeRetryable, outcome.Kind)
	require.Equal(t, ReasonNetwork, outcome.RetryReason)
}
