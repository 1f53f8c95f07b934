// Package fetcher implements the engine's HTTP layer: a single-origin
// HTTP GET with bounded concurrency, timeout, retry, and 429-aware backoff.
// The fetcher never raises; every terminal outcome is a typed
// FetchError returned alongside a zero FetchResult.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/arvindnair/webanalyzer/internal/telemetry"
	"github.com/arvindnair/webanalyzer/pkg/failure"
	"github.com/arvindnair/webanalyzer/pkg/limiter"
	"github.com/arvindnair/webanalyzer/pkg/timeutil"
)

const hardRateLimitRetryCap = 6

var baseBackoff = timeutil.NewBackoffParam(500*time.Millisecond, 2.0, 30*time.Second)

// Fetcher is the fetch contract: fetch(url) -> {status, headers,
// body, elapsed} or a typed failure.
type Fetcher interface {
	Fetch(ctx context.Context, depth int, param FetchParam) (FetchResult, failure.ClassifiedError)
}

// HTTPFetcher is the production Fetcher: one shared http.Client per run,
// gated by a semaphore of its own sized to max_concurrent_requests.
type HTTPFetcher struct {
	sink          *telemetry.Sink
	client        *http.Client
	sem           *limiter.Semaphore
	requestTimeout time.Duration
	retryAttempts  int
	sleeper        timeutil.Sleeper
	rng            *rand.Rand
	runID          string
}

// NewHTTPFetcher builds a Fetcher sharing client across all fetches of one
// run; maxConcurrent is the run's max_concurrent_requests bound.
func NewHTTPFetcher(sink *telemetry.Sink, runID string, maxConcurrent int, requestTimeout time.Duration, retryAttempts int, sleeper timeutil.Sleeper) *HTTPFetcher {
	return &HTTPFetcher{
		sink:           sink,
		client:         &http.Client{},
		sem:            limiter.NewSemaphore(maxConcurrent),
		requestTimeout: requestTimeout,
		retryAttempts:  retryAttempts,
		sleeper:        sleeper,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		runID:          runID,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, depth int, param FetchParam) (FetchResult, failure.ClassifiedError) {
	if err := f.sem.Acquire(ctx); err != nil {
		return FetchResult{}, &FetchError{Message: err.Error(), Retryable: false, Cause: ErrCauseGiveUp}
	}
	defer f.sem.Release()

	start := time.Now()
	result, retryCount, err := f.fetchWithRetry(ctx, param)
	elapsed := time.Since(start)

	if err != nil {
		f.sink.FetchFailed(f.runID, param.url.String(), mapFetchErrorToCause(err), err.Error())
		return FetchResult{}, err
	}
	f.sink.FetchAttempted(f.runID, param.url.String(), depth, result.statusCode, elapsed, retryCount)
	result.elapsed = elapsed
	return result, nil
}

// fetchWithRetry implements the retry policy: exponential backoff on
// transport error/5xx (bounded by retryAttempts), 429-aware backoff capped
// at a hard ceiling of 6 retries and not counted against retryAttempts, and
// exactly one retry on timeout.
func (f *HTTPFetcher) fetchWithRetry(ctx context.Context, param FetchParam) (FetchResult, int, *FetchError) {
	var lastErr *FetchError
	rateLimitRetries := 0
	timeoutRetried := false

	for attempt := 1; ; attempt++ {
		result, err := f.performFetch(ctx, param)
		if err == nil {
			return result, attempt - 1, nil
		}
		lastErr = err

		switch err.Cause {
		case ErrCauseRateLimited:
			if rateLimitRetries >= hardRateLimitRetryCap {
				return FetchResult{}, attempt, lastErr
			}
			rateLimitRetries++
			delay := f.rateLimitDelay(err.Message, rateLimitRetries)
			if waitErr := f.sleepOrDone(ctx, delay); waitErr != nil {
				return FetchResult{}, attempt, &FetchError{Message: waitErr.Error(), Retryable: false, Cause: ErrCauseGiveUp}
			}
			continue

		case ErrCauseTimeout:
			if timeoutRetried {
				return FetchResult{}, attempt, lastErr
			}
			timeoutRetried = true
			continue

		case ErrCauseNetworkFailure:
			if attempt >= f.retryAttempts+1 {
				return FetchResult{}, attempt, lastErr
			}
			delay := timeutil.ExponentialBackoffDelay(attempt, jitterFor(baseBackoff), *f.rng, baseBackoff)
			if waitErr := f.sleepOrDone(ctx, delay); waitErr != nil {
				return FetchResult{}, attempt, &FetchError{Message: waitErr.Error(), Retryable: false, Cause: ErrCauseGiveUp}
			}
			continue

		default:
			return FetchResult{}, attempt, lastErr
		}
	}
}

// jitterFor returns 40% of the initial backoff duration. ExponentialBackoffDelay
// only adds non-negative jitter in [0, jitter), the one-sided form pkg/timeutil
// already established, so jitter never shortens a delay: each delay falls
// between its exponential value and that value plus 40% of the initial
// duration, whatever the attempt number.
func jitterFor(param timeutil.BackoffParam) time.Duration {
	return time.Duration(float64(param.InitialDuration()) * 0.4)
}

func (f *HTTPFetcher) sleepOrDone(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	f.sleeper.Sleep(d)
	return nil
}

// rateLimitDelay resolves max(Retry-After, 2^attempt * base).
func (f *HTTPFetcher) rateLimitDelay(retryAfterHeader string, attempt int) time.Duration {
	exponential := timeutil.ExponentialBackoffDelay(attempt, 0, *f.rng, baseBackoff)
	if retryAfterHeader == "" {
		return exponential
	}
	if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
		fromHeader := time.Duration(seconds) * time.Second
		if fromHeader > exponential {
			return fromHeader
		}
	}
	return exponential
}

func (f *HTTPFetcher) performFetch(ctx context.Context, param FetchParam) (FetchResult, *FetchError) {
	reqCtx, cancel := context.WithTimeout(ctx, f.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, param.url.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{Message: err.Error(), Retryable: false, Cause: ErrCauseNetworkFailure}
	}
	req.Header.Set("User-Agent", param.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if reqCtx.Err() != nil {
			return FetchResult{}, &FetchError{Message: "request timed out", Retryable: true, Cause: ErrCauseTimeout}
		}
		return FetchResult{}, &FetchError{Message: err.Error(), Retryable: true, Cause: ErrCauseNetworkFailure}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, &FetchError{Message: fmt.Sprintf("read body: %v", err), Retryable: true, Cause: ErrCauseNetworkFailure}
	}

	headers := flattenHeaders(resp.Header)

	if resp.StatusCode == http.StatusTooManyRequests {
		return FetchResult{}, &FetchError{Message: headers["Retry-After"], Retryable: true, Cause: ErrCauseRateLimited}
	}
	if resp.StatusCode >= 500 {
		return FetchResult{}, &FetchError{Message: fmt.Sprintf("server error: %d", resp.StatusCode), Retryable: true, Cause: ErrCauseNetworkFailure}
	}

	return FetchResult{
		url:        param.url,
		statusCode: resp.StatusCode,
		headers:    headers,
		body:       body,
	}, nil
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
