// Package validator implements link validation: given the edge set produced by
// the frontier, validates a bounded, prioritized sample of edges and
// classifies each into a status label. Unselected edges keep the
// `unknown` status and a nil status code, their zero value.
package validator

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/arvindnair/webanalyzer/internal/model"
	"github.com/arvindnair/webanalyzer/internal/telemetry"
	"github.com/arvindnair/webanalyzer/pkg/limiter"
)

const (
	batchInitial = 10
	batchFloor   = 5
	batchCeiling = 50
	batchWindow  = 100
)

// Validator is the link validation contract.
type Validator interface {
	Validate(ctx context.Context, edges []model.EdgeRecord, fetchedPages map[string]FetchedPage, params Params) []model.EdgeRecord
}

// HTTPValidator is the production Validator: its own HTTP client, its own
// semaphore, and its own adaptive batcher, entirely independent of the
// fetcher's.
type HTTPValidator struct {
	sink   *telemetry.Sink
	runID  string
	client *http.Client
}

func NewHTTPValidator(sink *telemetry.Sink, runID string) *HTTPValidator {
	return &HTTPValidator{sink: sink, runID: runID, client: &http.Client{}}
}

// Validate selects edges by three-tier priority, validates the
// selected ones (directly for already-fetched targets, over the network for
// the rest), and returns the full edge set with statuses filled in.
func (v *HTTPValidator) Validate(ctx context.Context, edges []model.EdgeRecord, fetchedPages map[string]FetchedPage, params Params) []model.EdgeRecord {
	maxConcurrent := params.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 50
	}
	sem := limiter.NewSemaphore(maxConcurrent)
	batcher := limiter.NewAdaptiveBatcher(batchInitial, batchFloor, batchCeiling, batchWindow)

	reused, sameOrigin, external := partitionEdges(edges, fetchedPages)
	selected := append(append(append([]int{}, reused...), sameOrigin...), external...)

	out := make([]model.EdgeRecord, len(edges))
	copy(out, edges)

	budget := params.MaxLinksToValidate
	if budget > len(selected) {
		budget = len(selected)
	}
	toValidate := selected[:budget]

	for start := 0; start < len(toValidate); {
		n := batcher.BatchSize()
		end := start + n
		if end > len(toValidate) {
			end = len(toValidate)
		}
		batchIdx := toValidate[start:end]

		results := v.validateBatch(ctx, batchIdx, out, fetchedPages, sem, params)
		for _, r := range results {
			out[r.index] = r.edge
			batcher.Record(r.isError)
		}
		start = end
	}

	return out
}

type validationOutcome struct {
	index   int
	edge    model.EdgeRecord
	isError bool
}

func (v *HTTPValidator) validateBatch(ctx context.Context, indices []int, edges []model.EdgeRecord, fetchedPages map[string]FetchedPage, sem *limiter.Semaphore, params Params) []validationOutcome {
	results := make([]validationOutcome, len(indices))
	var wg sync.WaitGroup
	for i, idx := range indices {
		wg.Add(1)
		go func(i, idx int) {
			defer wg.Done()
			edge := edges[idx]
			if fp, ok := fetchedPages[edge.URL]; ok {
				results[i] = validationOutcome{index: idx, edge: applyReusedStatus(edge, fp)}
				return
			}
			if err := sem.Acquire(ctx); err != nil {
				results[i] = validationOutcome{index: idx, edge: edge, isError: true}
				return
			}
			defer sem.Release()
			validated, isErr := v.validateOne(ctx, edge, params)
			results[i] = validationOutcome{index: idx, edge: validated, isError: isErr}
		}(i, idx)
	}
	wg.Wait()
	return results
}

// applyReusedStatus derives a status label from a fetch the frontier already
// performed, at zero extra network cost.
func applyReusedStatus(edge model.EdgeRecord, fp FetchedPage) model.EdgeRecord {
	code := fp.StatusCode
	edge.StatusCode = &code
	edge.Status = classifyStatusCode(code)
	return edge
}

func (v *HTTPValidator) validateOne(ctx context.Context, edge model.EdgeRecord, params Params) (model.EdgeRecord, bool) {
	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, params.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, edge.URL, nil)
	if err != nil {
		validateErr := &ValidationError{Message: err.Error(), Cause: ErrCauseTransport}
		edge.Status = model.StatusUnknown
		edge.ErrorMessage = validateErr.Error()
		v.sink.ValidateFailed(v.runID, edge.URL, mapValidationErrorToCause(validateErr), validateErr.Error())
		return edge, true
	}
	req.Header.Set("User-Agent", params.UserAgent)

	resp, err := v.client.Do(req)
	elapsed := time.Since(start)
	edge.ResponseTime = elapsed

	if err != nil {
		if reqCtx.Err() != nil {
			validateErr := &ValidationError{Message: "request timed out", Cause: ErrCauseTimeout}
			edge.Status = model.StatusTimeout
			edge.ErrorMessage = validateErr.Error()
			v.sink.Validated(v.runID, edge.URL, string(model.StatusTimeout), 0)
			return edge, true
		}
		validateErr := &ValidationError{Message: err.Error(), Cause: ErrCauseTransport}
		edge.Status = model.StatusUnknown
		edge.ErrorMessage = validateErr.Error()
		v.sink.ValidateFailed(v.runID, edge.URL, mapValidationErrorToCause(validateErr), validateErr.Error())
		return edge, true
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	edge.StatusCode = &code
	edge.Status = classifyStatusCode(code)

	if edge.Status == model.StatusValid {
		body, _ := io.ReadAll(resp.Body)
		edge.Title = extractTitle(body)
	}

	v.sink.Validated(v.runID, edge.URL, string(edge.Status), code)
	return edge, false
}

func classifyStatusCode(code int) model.StatusLabel {
	switch {
	case code == http.StatusTooManyRequests:
		return model.StatusRateLimited
	case code >= 200 && code < 300:
		return model.StatusValid
	case code >= 300 && code < 400:
		return model.StatusRedirect
	case code >= 400:
		return model.StatusBroken
	default:
		return model.StatusUnknown
	}
}

// extractTitle pulls the <title> text with a streaming tokenizer rather
// than a full DOM build; validation bodies are read once and discarded.
func extractTitle(body []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "title" {
				if tokenizer.Next() == html.TextToken {
					return strings.TrimSpace(string(tokenizer.Text()))
				}
				return ""
			}
		}
	}
}

// partitionEdges splits edge indices into the three priority tiers,
// preserving each edge's original discovery order within its tier.
func partitionEdges(edges []model.EdgeRecord, fetchedPages map[string]FetchedPage) (reused, sameOrigin, external []int) {
	for i, e := range edges {
		switch {
		case isFetched(e.URL, fetchedPages):
			reused = append(reused, i)
		case e.LinkType != model.LinkExternal:
			sameOrigin = append(sameOrigin, i)
		default:
			external = append(external, i)
		}
	}
	return reused, sameOrigin, external
}

func isFetched(url string, fetchedPages map[string]FetchedPage) bool {
	_, ok := fetchedPages[url]
	return ok
}
