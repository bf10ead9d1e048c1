package models

import "testing"

func TestTaskCanRetry(t *testing.T) {
	task := &Task{RetryCount: 2, MaxRetries: 5}
	if !task.CanRetry() {
		t.Errorf("expected CanRetry true when retryCount < maxRetries")
	}

	task.RetryCount = 5
	if task.CanRetry() {
		t.Errorf("expected CanRetry false when retryCount == maxRetries")
	}
}

func TestTaskBackoffSeconds(t *testing.T) {
	tests := []struct {
		retryCount int
		want       int
	}{
		{retryCount: 1, want: 2},
		{retryCount: 2, want: 4},
		{retryCount: 3, want: 8},
		{retryCount: 5, want: 32},
	}

	for _, tt := range tests {
		task := &Task{RetryCount: tt.retryCount}
		if got := task.BackoffSeconds(2); got != tt.want {
			t.Errorf("BackoffSeconds(2) with retryCount=%d = %d, want %d", tt.retryCount, got, tt.want)
		}
	}
}

func TestTaskStatusPredicates(t *testing.T) {
	if !StatusSuccess.IsFinal() {
		t.Errorf("expected SUCCESS to be final")
	}
	if !StatusFailed.IsFinal() {
		t.Errorf("expected FAILED to be final")
	}
	if StatusPending.IsFinal() {
		t.Errorf("expected PENDING to not be final")
	}
	if StatusProcessing.IsFinal() {
		t.Errorf("expected PROCESSING to not be final")
	}

	if !StatusPending.CanProcess() {
		t.Errorf("expected PENDING to be processable")
	}
	if StatusProcessing.CanProcess() {
		t.Errorf("expected PROCESSING to not be processable")
	}
}

func TestLogEntryTruncate(t *testing.T) {
	long := make([]byte, MaxResponseBodyLogLen+500)
	for i := range long {
		long[i] = 'a'
	}
	entry := &LogEntry{ResponseBody: string(long), ErrorMessage: string(long)}
	entry.Truncate()

	if len(entry.ResponseBody) != MaxResponseBodyLogLen {
		t.Errorf("expected response body truncated to %d, got %d", MaxResponseBodyLogLen, len(entry.ResponseBody))
	}
	if len(entry.ErrorMessage) != MaxErrorLogLen {
		t.Errorf("expected error message truncated to %d, got %d", MaxErrorLogLen, len(entry.ErrorMessage))
	}
}
