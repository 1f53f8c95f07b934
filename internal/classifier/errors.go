package classifier

import (
	"fmt"

	"github.com/arvindnair/webanalyzer/internal/telemetry"
	"github.com/arvindnair/webanalyzer/pkg/failure"
)

type ClassificationErrorCause string

const (
	ErrCauseUnparseableHTML ClassificationErrorCause = "unparseable html"
)

// ClassificationError describes a body that cannot be parsed at all.
// Classify does not return it: it reports the error to telemetry and itself
// returns a Result with PageType=error and zeroed structural flags, so the
// page still gets a page record.
type ClassificationError struct {
	Message string
	Cause   ClassificationErrorCause
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification error: %s: %s", e.Cause, e.Message)
}

func (e *ClassificationError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

func mapClassificationErrorToCause(*ClassificationError) telemetry.Cause {
	return telemetry.CauseContentInvalid
}
