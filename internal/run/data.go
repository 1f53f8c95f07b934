// Package run implements the Run Driver: the component that calls the
// frontier (which pulls the fetcher and extractor), runs the classifier on
// every fetched body, hands the resulting edge set to the validator, and
// persists everything through the store. It also backs the external run
// trigger interface: start_run and run_status.
package run

import (
	"sync/atomic"
	"time"

	"github.com/arvindnair/webanalyzer/internal/model"
)

// StartResult is the immediate response to start_run: a run has been
// created in the pending state and a task handle returned for polling.
type StartResult struct {
	RunID      string
	TaskHandle string
}

// StatusResult answers run_status(task_handle).
type StatusResult struct {
	State      model.RunState
	Progress   int
	Ready      bool
	Successful bool
	Failed     bool
	Info       string
}

// taskState is the driver's bookkeeping for one in-flight or completed
// run, addressed by its task handle. It is owned by the Driver's mutex;
// nothing outside this package ever touches it directly.
type taskState struct {
	runID        string
	state        model.RunState
	progress     int
	errorMessage string
	cancel       func()
	cancelFlag   atomic.Bool
	finishedAt   *time.Time
}

// isCancelled reports whether Cancel was requested for this task. Checked
// by the run goroutine after every suspension point so a cancelled run's
// partial results are discarded rather than persisted.
func (t *taskState) isCancelled() bool {
	return t.cancelFlag.Load()
}

func (t *taskState) snapshot() StatusResult {
	ready := t.state == model.RunCompleted || t.state == model.RunFailed
	return StatusResult{
		State:      t.state,
		Progress:   t.progress,
		Ready:      ready,
		Successful: ready && t.state == model.RunCompleted,
		Failed:     t.state == model.RunFailed,
		Info:       t.errorMessage,
	}
}
