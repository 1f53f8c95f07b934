package fetcher

import (
	"fmt"

	"github.com/arvindnair/webanalyzer/internal/telemetry"
	"github.com/arvindnair/webanalyzer/pkg/failure"
)

// FetchErrorCause classifies why a fetch terminally failed.
type FetchErrorCause string

const (
	ErrCauseTimeout        FetchErrorCause = "timeout"
	ErrCauseNetworkFailure FetchErrorCause = "network issues"
	ErrCauseRateLimited    FetchErrorCause = "rate limited"
	ErrCauseGiveUp         FetchErrorCause = "giveup after retries"
)

// FetchError is the typed terminal failure the fetcher returns instead of
// raising: timeout, rate limited, transport error, or giveup.
type FetchError struct {
	Message   string
	Retryable bool
	Cause     FetchErrorCause
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch error: %s: %s", e.Cause, e.Message)
}

func (e *FetchError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *FetchError) IsRetryable() bool {
	return e.Retryable
}

// Is allows errors.Is to match FetchError types regardless of payload.
func (e *FetchError) Is(target error) bool {
	_, ok := target.(*FetchError)
	return ok
}

// mapFetchErrorToCause maps fetcher-local error semantics to the engine-wide
// observational taxonomy. Observational only; never drives control flow.
func mapFetchErrorToCause(err *FetchError) telemetry.Cause {
	switch err.Cause {
	case ErrCauseTimeout:
		return telemetry.CauseNetworkFailure
	case ErrCauseRateLimited:
		return telemetry.CauseRateLimited
	case ErrCauseNetworkFailure:
		return telemetry.CauseNetworkFailure
	default:
		return telemetry.CauseUnknown
	}
}
