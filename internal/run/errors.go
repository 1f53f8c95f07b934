package run

import (
	"fmt"

	"github.com/arvindnair/webanalyzer/pkg/failure"
)

// DriverErrorCause enumerates the run driver's own failure taxonomy:
// everything that can put a run into model.RunFailed.
type DriverErrorCause string

const (
	ErrCauseInvalidConfig    DriverErrorCause = "invalid config"
	ErrCauseCrawlFailure     DriverErrorCause = "crawl failure"
	ErrCauseStoreFailure     DriverErrorCause = "store failure"
	ErrCauseCancelled        DriverErrorCause = "cancelled"
	ErrCauseUnknownTaskHandle DriverErrorCause = "unknown task handle"
)

// DriverError is the run driver's ClassifiedError. A driver error always
// terminates the run; there is no recoverable variant at this layer.
type DriverError struct {
	Message string
	Cause   DriverErrorCause
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("run error: %s: %s", e.Cause, e.Message)
}

func (e *DriverError) Severity() failure.Severity {
	return failure.SeverityFatal
}
