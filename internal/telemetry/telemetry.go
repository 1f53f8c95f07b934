// Package telemetry is the engine-wide observational sink: structured,
// leveled logging of fetch, extraction, classification, validation, store,
// and run-lifecycle events. Observational only: nothing here ever drives
// control flow.
package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Sink wraps a *log.Logger behind the engine's event vocabulary. Every
// component logs fetch/extract/classify/validate/store/run events through a
// Sink rather than writing to stdout directly.
type Sink struct {
	logger *log.Logger
}

// NewSink creates a Sink writing to w at the given level.
func NewSink(w io.Writer, level log.Level) *Sink {
	return &Sink{
		logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "2006-01-02T15:04:05.000Z07:00",
			Level:           level,
		}),
	}
}

// NewDefaultSink creates a Sink writing to stderr at info level, for callers
// that have not wired up their own writer.
func NewDefaultSink() *Sink {
	return NewSink(os.Stderr, log.InfoLevel)
}

// Cause is a closed, canonical classification used exclusively for
// observability. It must never be used to derive retry, continuation, or
// abort decisions — those are decided locally by each component's own typed
// errors (pkg/failure.ClassifiedError); Cause only labels them for logging.
type Cause int

const (
	CauseUnknown Cause = iota
	CauseNetworkFailure
	CauseRateLimited
	CauseContentInvalid
	CauseStorageFailure
	CauseInvariantViolation
)

func (c Cause) String() string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CauseRateLimited:
		return "rate_limited"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	default:
		return "unknown"
	}
}

// FetchAttempted records a single fetch attempt, successful or not.
func (s *Sink) FetchAttempted(runID, url string, depth int, statusCode int, elapsed time.Duration, retryCount int) {
	s.logger.Info("fetch attempted",
		"run_id", runID, "url", url, "depth", depth,
		"status_code", statusCode, "elapsed", elapsed, "retry_count", retryCount)
}

// FetchFailed records a terminal (non-retried-further) fetch failure.
func (s *Sink) FetchFailed(runID, url string, cause Cause, message string) {
	s.logger.Warn("fetch failed", "run_id", runID, "url", url, "cause", cause, "message", message)
}

// Extracted records the outcome of running the link extractor on a page.
func (s *Sink) Extracted(runID, url string, linkCount int) {
	s.logger.Debug("links extracted", "run_id", runID, "url", url, "link_count", linkCount)
}

// ExtractFailed records a body the extractor could not parse at all.
func (s *Sink) ExtractFailed(runID, url string, cause Cause, message string) {
	s.logger.Warn("extraction failed", "run_id", runID, "url", url, "cause", cause, "message", message)
}

// Classified records the outcome of content classification.
func (s *Sink) Classified(runID, url string, pageType string, wordCount int) {
	s.logger.Debug("page classified", "run_id", runID, "url", url, "page_type", pageType, "word_count", wordCount)
}

// Validated records one edge validation.
func (s *Sink) Validated(runID, url string, status string, statusCode int) {
	s.logger.Debug("edge validated", "run_id", runID, "url", url, "status", status, "status_code", statusCode)
}

// ValidateFailed records a terminal, unclassifiable validation failure.
func (s *Sink) ValidateFailed(runID, url string, cause Cause, message string) {
	s.logger.Warn("validation failed", "run_id", runID, "url", url, "cause", cause, "message", message)
}

// StoreWrite records a persist_run / delete_run call.
func (s *Sink) StoreWrite(runID, operation string, err error) {
	if err != nil {
		s.logger.Error("store write failed", "run_id", runID, "operation", operation, "error", err)
		return
	}
	s.logger.Info("store write succeeded", "run_id", runID, "operation", operation)
}

// RunTransition records a run lifecycle state change.
func (s *Sink) RunTransition(runID, from, to string, reason string) {
	if reason == "" {
		s.logger.Info("run transitioned", "run_id", runID, "from", from, "to", to)
		return
	}
	s.logger.Info("run transitioned", "run_id", runID, "from", from, "to", to, "reason", reason)
}

// InvariantViolation records a fatal, run-aborting invariant failure.
func (s *Sink) InvariantViolation(runID, detail string) {
	s.logger.Error("invariant violation", "run_id", runID, "cause", CauseInvariantViolation, "detail", detail)
}
