package frontier

import (
	"fmt"

	"github.com/arvindnair/webanalyzer/pkg/failure"
)

type FrontierErrorCause string

const (
	ErrCauseCancelled          FrontierErrorCause = "cancelled"
	ErrCauseInvariantViolation FrontierErrorCause = "invariant violation"
)

// FrontierError is the only way the frontier escalates to run failure: an
// external cancellation or an internal invariant violation.
type FrontierError struct {
	Message string
	Cause   FrontierErrorCause
}

func (e *FrontierError) Error() string {
	return fmt.Sprintf("frontier error: %s: %s", e.Cause, e.Message)
}

func (e *FrontierError) Severity() failure.Severity {
	return failure.SeverityFatal
}
