package validator

import (
	"fmt"

	"github.com/arvindnair/webanalyzer/internal/telemetry"
	"github.com/arvindnair/webanalyzer/pkg/failure"
)

// ValidationErrorCause classifies why a single edge request could not be
// turned into a status. Never escalated to run failure; used only to pick
// the edge's status label and
// to label the telemetry event.
type ValidationErrorCause int

const (
	ErrCauseTimeout ValidationErrorCause = iota
	ErrCauseTransport
)

// ValidationError is never returned to a caller outside this package; it
// exists to carry a classification through to the telemetry sink with the
// same shape every other component uses.
type ValidationError struct {
	Message string
	Cause   ValidationErrorCause
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

func mapValidationErrorToCause(e *ValidationError) telemetry.Cause {
	switch e.Cause {
	case ErrCauseTimeout:
		return telemetry.CauseNetworkFailure
	default:
		return telemetry.CauseNetworkFailure
	}
}
