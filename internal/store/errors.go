package store

import (
	"fmt"

	"github.com/arvindnair/webanalyzer/internal/telemetry"
	"github.com/arvindnair/webanalyzer/pkg/failure"
)

// StoreErrorCause enumerates the store's own failure taxonomy.
type StoreErrorCause string

const (
	// ErrCauseSourceNotFound is returned by GetSource when no ancestor on
	// the traversal path (inclusive) carries a stored body, or the hard
	// depth ceiling is exceeded first. Reads never synthesize data: this
	// is the only outcome for a miss.
	ErrCauseSourceNotFound StoreErrorCause = "source not found"
	// ErrCauseRunNotFound is returned by GetRun/GetParentChild for an
	// unknown run id.
	ErrCauseRunNotFound StoreErrorCause = "run not found"
	// ErrCauseInvariantViolation marks a structural invariant failing at
	// write time; it escalates to run failure, never silently repaired.
	ErrCauseInvariantViolation StoreErrorCause = "invariant violation"
	// ErrCauseWriteFailure covers transport/driver failures talking to a
	// durable backend (Mongo, Redis).
	ErrCauseWriteFailure StoreErrorCause = "write failed"
)

// StoreError is the store's ClassifiedError. Only ErrCauseWriteFailure is
// retryable; invariant violations and not-found results are never retried.
type StoreError struct {
	Message   string
	Retryable bool
	Cause     StoreErrorCause
	RunID     string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: %s: %s", e.Cause, e.Message)
}

// IsRetryable reports whether a retry handler may re-issue the failed
// write. Invariant violations and not-found results never retry.
func (e *StoreError) IsRetryable() bool {
	return e.Retryable
}

func (e *StoreError) Severity() failure.Severity {
	if e.Cause == ErrCauseInvariantViolation {
		return failure.SeverityFatal
	}
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapStoreErrorToCause maps store-local error semantics to the canonical
// telemetry.Cause table. Observational only; never drives control flow.
func mapStoreErrorToCause(err *StoreError) telemetry.Cause {
	switch err.Cause {
	case ErrCauseInvariantViolation:
		return telemetry.CauseInvariantViolation
	case ErrCauseWriteFailure:
		return telemetry.CauseStorageFailure
	default:
		return telemetry.CauseUnknown
	}
}
