package delivery

import "fmt"

// OutcomeKind is the coarse bucket a delivery result falls into.
type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeRetryable OutcomeKind = "retryable"
	OutcomeTerminal  OutcomeKind = "terminal"
)

// RetryReason further qualifies a retryable outcome, for metrics/logging.
type RetryReason string

const (
	ReasonNetwork          RetryReason = "network"
	ReasonTransientClient  RetryReason = "transient-client"
	ReasonServerError      RetryReason = "server-error"
	ReasonSystem           RetryReason = "system"
)

// Outcome is the classified result of a delivery attempt.
type Outcome struct {
	Kind        OutcomeKind
	RetryReason RetryReason
	HTTPStatus  *int
	Message     string
}

// Classify applies the decision table: network/timeout, then HTTP status
// bucket, in the order the rows are listed.
func Classify(result Result) Outcome {
	if result.NetworkError {
		return Outcome{
			Kind:        OutcomeRetryable,
			RetryReason: ReasonNetwork,
			Message:     fmt.Sprintf("network error: %v", result.Err),
		}
	}

	if result.Err != nil {
		return Outcome{
			Kind:        OutcomeRetryable,
			RetryReason: ReasonSystem,
			Message:     fmt.Sprintf("system error: %v", result.Err),
		}
	}

	status := result.HTTPStatus
	statusPtr := &status

	switch {
	case status >= 200 && status < 300:
		return Outcome{Kind: OutcomeSuccess, HTTPStatus: statusPtr}

	case status >= 300 && status < 400:
		return Outcome{
			Kind:       OutcomeTerminal,
			HTTPStatus: statusPtr,
			Message:    fmt.Sprintf("HTTP %d: non-2xx redirect response", status),
		}

	case status == 408 || status == 429:
		return Outcome{
			Kind:        OutcomeRetryable,
			RetryReason: ReasonTransientClient,
			HTTPStatus:  statusPtr,
			Message:     fmt.Sprintf("HTTP %d: %s", status, result.ResponseBody),
		}

	case status >= 400 && status < 500:
		return Outcome{
			Kind:       OutcomeTerminal,
			HTTPStatus: statusPtr,
			Message:    fmt.Sprintf("HTTP %d: %s", status, result.ResponseBody),
		}

	case status >= 500 && status < 600:
		return Outcome{
			Kind:        OutcomeRetryable,
			RetryReason: ReasonServerError,
			HTTPStatus:  statusPtr,
			Message:     fmt.Sprintf("HTTP %d: %s", status, result.ResponseBody),
		}

	default:
		return Outcome{
			Kind:        OutcomeRetryable,
			RetryReason: ReasonSystem,
			HTTPStatus:  statusPtr,
			Message:     fmt.Sprintf("unexpected outcome: status=%d err=%v", status, result.Err),
		}
	}
}
