package extractor

import (
	"fmt"

	"github.com/arvindnair/webanalyzer/internal/telemetry"
	"github.com/arvindnair/webanalyzer/pkg/failure"
)

type ExtractionErrorCause string

const (
	ErrCauseUnparseableHTML ExtractionErrorCause = "unparseable html"
)

// ExtractionError is returned only when the body cannot be parsed as HTML at
// all; malformed individual URLs are dropped silently and never
// raise an ExtractionError.
type ExtractionError struct {
	Message string
	Cause   ExtractionErrorCause
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction error: %s: %s", e.Cause, e.Message)
}

func (e *ExtractionError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

func mapExtractionErrorToCause(err *ExtractionError) telemetry.Cause {
	switch err.Cause {
	case ErrCauseUnparseableHTML:
		return telemetry.CauseContentInvalid
	default:
		return telemetry.CauseUnknown
	}
}
