package run

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arvindnair/webanalyzer/internal/classifier"
	"github.com/arvindnair/webanalyzer/internal/config"
	"github.com/arvindnair/webanalyzer/internal/extractor"
	"github.com/arvindnair/webanalyzer/internal/fetcher"
	"github.com/arvindnair/webanalyzer/internal/frontier"
	"github.com/arvindnair/webanalyzer/internal/model"
	"github.com/arvindnair/webanalyzer/internal/store"
	"github.com/arvindnair/webanalyzer/internal/telemetry"
	"github.com/arvindnair/webanalyzer/internal/validator"
	"github.com/arvindnair/webanalyzer/pkg/failure"
	"github.com/arvindnair/webanalyzer/pkg/retry"
	"github.com/arvindnair/webanalyzer/pkg/timeutil"
	"github.com/arvindnair/webanalyzer/pkg/urlutil"
)

// persistRetryDelay paces the single persist_run retry.
const persistRetryDelay = 500 * time.Millisecond

// Progress checkpoints reported through run_status. The crawl dominates
// wall-clock time, so it owns the largest slice of the bar.
const (
	progressStarted    = 5
	progressCrawled    = 60
	progressValidated  = 85
	progressPersisting = 95
	progressDone       = 100
)

// Driver owns the lifecycle of every run started in this process: it wires
// the frontier, validator, and store together and answers the trigger
// interface (start_run / run_status). Drivers are safe for concurrent use;
// each run executes on its own goroutine with its own component instances,
// sharing nothing but the injected store and telemetry sink.
type Driver struct {
	store store.Store
	sink  *telemetry.Sink

	mu    sync.Mutex
	tasks map[string]*taskState
}

func NewDriver(st store.Store, sink *telemetry.Sink) *Driver {
	return &Driver{store: st, sink: sink, tasks: make(map[string]*taskState)}
}

// StartRun creates a run in the pending state and returns immediately with
// its run id and a task handle for polling. The crawl itself proceeds on a
// background goroutine.
func (d *Driver) StartRun(cfg config.Config) (StartResult, failure.ClassifiedError) {
	seed, err := url.Parse(cfg.SeedURL())
	if err != nil || seed.Scheme == "" || seed.Host == "" {
		return StartResult{}, &DriverError{Message: cfg.SeedURL(), Cause: ErrCauseInvalidConfig}
	}

	runID := uuid.NewString()
	handle := uuid.NewString()

	ctx, cancel := context.WithCancel(context.Background())
	task := &taskState{runID: runID, state: model.RunPending, cancel: cancel}

	d.mu.Lock()
	d.tasks[handle] = task
	d.mu.Unlock()

	d.sink.RunTransition(runID, "", string(model.RunPending), "start_run")

	go d.execute(ctx, task, *seed, cfg)

	return StartResult{RunID: runID, TaskHandle: handle}, nil
}

// RunStatus answers run_status(task_handle).
func (d *Driver) RunStatus(handle string) (StatusResult, failure.ClassifiedError) {
	d.mu.Lock()
	defer d.mu.Unlock()
	task, ok := d.tasks[handle]
	if !ok {
		return StatusResult{}, &DriverError{Message: handle, Cause: ErrCauseUnknownTaskHandle}
	}
	return task.snapshot(), nil
}

// Cancel aborts an in-flight run. In-flight requests are cut off through
// the run's context and partial results are discarded; the run transitions
// to failed with reason "cancelled". Cancelling a terminal run is a no-op.
func (d *Driver) Cancel(handle string) failure.ClassifiedError {
	d.mu.Lock()
	defer d.mu.Unlock()
	task, ok := d.tasks[handle]
	if !ok {
		return &DriverError{Message: handle, Cause: ErrCauseUnknownTaskHandle}
	}
	if task.state == model.RunCompleted || task.state == model.RunFailed {
		return nil
	}
	task.cancelFlag.Store(true)
	task.cancel()
	return nil
}

func (d *Driver) setProgress(task *taskState, p int) {
	d.mu.Lock()
	task.progress = p
	d.mu.Unlock()
}

func (d *Driver) transition(task *taskState, to model.RunState, reason string) {
	d.mu.Lock()
	from := task.state
	task.state = to
	if to == model.RunCompleted || to == model.RunFailed {
		now := time.Now()
		task.finishedAt = &now
		task.progress = progressDone
	}
	d.mu.Unlock()
	d.sink.RunTransition(task.runID, string(from), string(to), reason)
}

func (d *Driver) fail(task *taskState, cause DriverErrorCause, message string) {
	d.mu.Lock()
	task.errorMessage = message
	d.mu.Unlock()
	d.transition(task, model.RunFailed, string(cause))
}

// execute is the engine pipeline: frontier (pulling fetcher, extractor, and
// classifier), then validator over the edge set, then one persist_run.
func (d *Driver) execute(ctx context.Context, task *taskState, seed url.URL, cfg config.Config) {
	defer task.cancel()

	run := model.Run{
		RunID:         task.runID,
		ApplicationID: cfg.ApplicationID(),
		State:         model.RunRunning,
		CreatedAt:     time.Now(),
	}
	startedAt := time.Now()
	run.StartedAt = &startedAt
	d.transition(task, model.RunRunning, "crawl started")
	d.setProgress(task, progressStarted)

	crawlCtx := ctx
	var ceilingCancel context.CancelFunc
	if cfg.WallClockCeiling() > 0 {
		crawlCtx, ceilingCancel = context.WithTimeout(ctx, cfg.WallClockCeiling())
		defer ceilingCancel()
	}

	f := fetcher.NewHTTPFetcher(d.sink, task.runID, cfg.MaxConcurrentRequests(), cfg.RequestTimeout(), cfg.RetryAttempts(), timeutil.NewRealSleeper())
	e := extractor.NewDomExtractor(d.sink, task.runID)
	c := classifier.NewContentClassifier(d.sink, task.runID)
	front := frontier.NewFrontier(f, e, c, d.sink, task.runID, frontier.Params{
		MaxCrawlDepth:   cfg.MaxCrawlDepth(),
		MaxPagesToCrawl: cfg.MaxPagesToCrawl(),
		ExtractToggles: extractor.Toggles{
			Static:   cfg.ExtractStatic(),
			Dynamic:  cfg.ExtractDynamic(),
			Resource: cfg.ExtractResource(),
			External: cfg.ExtractExternal(),
		},
		UserAgent: cfg.UserAgent(),
	})

	result, crawlErr := front.Run(crawlCtx, seed)
	if task.isCancelled() {
		// On cancellation, partial results are discarded, not persisted.
		d.fail(task, ErrCauseCancelled, "run cancelled")
		return
	}
	if crawlErr != nil {
		d.fail(task, ErrCauseCrawlFailure, crawlErr.Error())
		return
	}
	d.setProgress(task, progressCrawled)

	fetchedPages := make(map[string]validator.FetchedPage, len(result.PageStatusCodes))
	for u, code := range result.PageStatusCodes {
		fetchedPages[u] = validator.FetchedPage{StatusCode: code}
	}

	v := validator.NewHTTPValidator(d.sink, task.runID)
	edges := v.Validate(crawlCtx, result.Edges, fetchedPages, validator.Params{
		MaxLinksToValidate: cfg.MaxLinksToValidate(),
		MaxConcurrent:      cfg.ValidatorConcurrency(),
		RequestTimeout:     cfg.RequestTimeout(),
		UserAgent:          cfg.UserAgent(),
	})
	if task.isCancelled() {
		d.fail(task, ErrCauseCancelled, "run cancelled")
		return
	}
	d.setProgress(task, progressValidated)

	seedCanonical := urlutil.Canonicalize(seed)
	seedKey := seedCanonical.String()
	pages := stampPages(task.runID, result.Pages)
	edges = stampEdges(task.runID, edges)

	agg := store.ComputeAggregates(pages, edges)
	run.PagesAnalyzed = agg.PagesAnalyzed
	run.LinksFound = agg.LinksFound
	run.BrokenCount = agg.BrokenCount
	run.BlankCount = agg.BlankCount
	run.ContentPageCount = agg.ContentPageCount
	run.Score = agg.Score
	run.State = model.RunCompleted
	completedAt := time.Now()
	run.CompletedAt = &completedAt

	d.setProgress(task, progressPersisting)
	if err := d.persistWithRetry(ctx, run, seedKey, pages, edges, result.Maps, result.Bodies); err != nil {
		d.fail(task, ErrCauseStoreFailure, err.Error())
		return
	}

	d.transition(task, model.RunCompleted, terminalReason(result))
}

// persistWithRetry issues persist_run, retrying exactly once when the store
// reports a retryable failure.
// Invariant violations are fatal on the first report.
func (d *Driver) persistWithRetry(ctx context.Context, run model.Run, seedURL string, pages []model.PageRecord, edges []model.EdgeRecord, maps model.Maps, bodies map[string][]byte) failure.ClassifiedError {
	param := retry.NewRetryParam(
		persistRetryDelay,
		persistRetryDelay/5,
		time.Now().UnixNano(),
		2,
		timeutil.NewBackoffParam(persistRetryDelay, 2, 5*time.Second),
	)
	result := retry.Retry(param, func() (struct{}, failure.ClassifiedError) {
		return struct{}{}, d.store.PersistRun(ctx, run, seedURL, pages, edges, maps, bodies)
	})
	return result.Err()
}

func terminalReason(result frontier.Result) string {
	if result.WallClockHit {
		return "wall clock ceiling"
	}
	return "frontier exhausted"
}

func stampPages(runID string, pages []model.PageRecord) []model.PageRecord {
	out := make([]model.PageRecord, len(pages))
	for i, p := range pages {
		p.RunID = runID
		out[i] = p
	}
	return out
}

func stampEdges(runID string, edges []model.EdgeRecord) []model.EdgeRecord {
	out := make([]model.EdgeRecord, len(edges))
	for i, e := range edges {
		e.RunID = runID
		out[i] = e
	}
	return out
}
