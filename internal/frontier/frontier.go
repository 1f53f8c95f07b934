// Package frontier implements the crawl frontier: a bounded BFS over the
// same-origin URL graph, enforcing depth and page budgets, recording the
// parent of first discovery, and emitting per-page records and a typed edge
// set.
//
// The frontier's BFS data structures (queue, seen set, parent map builder)
// are owned exclusively by this single goroutine: exactly one producer and
// one consumer. Per-batch fetch/extract/classify work is fanned out to
// worker goroutines that return results over a channel; they never touch
// the queue, seen set, or maps directly.
package frontier

import (
	"context"
	"net/url"
	"sync"

	"github.com/arvindnair/webanalyzer/internal/classifier"
	"github.com/arvindnair/webanalyzer/internal/extractor"
	"github.com/arvindnair/webanalyzer/internal/fetcher"
	"github.com/arvindnair/webanalyzer/internal/model"
	"github.com/arvindnair/webanalyzer/internal/telemetry"
	"github.com/arvindnair/webanalyzer/pkg/failure"
	"github.com/arvindnair/webanalyzer/pkg/limiter"
	"github.com/arvindnair/webanalyzer/pkg/urlutil"
)

const (
	batchWindow  = 100
	batchFloor   = 5
	batchCeiling = 50
)

// Params configures one Frontier run. It carries only what the BFS needs,
// plus the user agent passed to every fetch; request timeout and retries
// live inside the injected Fetcher.
type Params struct {
	MaxCrawlDepth      int
	MaxPagesToCrawl    int
	ExtractToggles     extractor.Toggles
	InitialBatchSize   int
	UserAgent          string
}

// Frontier drives the crawl: it pulls the Fetcher and Extractor and runs
// the Classifier on every fetched body.
type Frontier struct {
	fetcher    fetcher.Fetcher
	extractor  extractor.Extractor
	classifier classifier.Classifier
	sink       *telemetry.Sink
	runID      string
	params     Params
}

func NewFrontier(f fetcher.Fetcher, e extractor.Extractor, c classifier.Classifier, sink *telemetry.Sink, runID string, params Params) *Frontier {
	return &Frontier{fetcher: f, extractor: e, classifier: c, sink: sink, runID: runID, params: params}
}

type fetchOutcome struct {
	item       crawlItem
	result     fetcher.FetchResult
	fetchErr   failure.ClassifiedError
	links      []extractor.ExtractedLink
	classified classifier.Result
}

// Run executes the bounded BFS from seed and returns every artifact of the
// crawl: fetched pages, the full edge set, and the three forest maps.
func (f *Frontier) Run(ctx context.Context, seed url.URL) (Result, failure.ClassifiedError) {
	seedCanonical := urlutil.Canonicalize(seed)
	seedKey := seedCanonical.String()

	queue := NewFIFOQueue[crawlItem]()
	queue.Enqueue(crawlItem{url: seedCanonical, depth: 0, parent: ""})
	seen := NewSet[string]()
	seen.Add(seedKey)
	enqueuedCount := 1
	seedEdgeRecorded := false

	maps := model.NewMaps()
	maps.PathMap[seedKey] = []string{seedKey}

	var pages []model.PageRecord
	var edges []model.EdgeRecord
	bodies := make(map[string][]byte)
	statusCodes := make(map[string]int)

	batchSize := f.params.InitialBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	batcher := limiter.NewAdaptiveBatcher(batchSize, batchFloor, batchCeiling, batchWindow)

	for queue.Size() > 0 {
		if ctx.Err() != nil {
			return Result{Pages: pages, Edges: edges, Maps: maps, Bodies: bodies, PageStatusCodes: statusCodes, WallClockHit: true}, nil
		}

		n := batcher.BatchSize()
		batch := make([]crawlItem, 0, n)
		for i := 0; i < n; i++ {
			item, ok := queue.Dequeue()
			if !ok {
				break
			}
			batch = append(batch, item)
		}

		outcomes := f.dispatchBatch(ctx, batch)

		for _, outcome := range outcomes {
			batcher.Record(outcome.fetchErr != nil)

			canonical := urlutil.Canonicalize(outcome.item.url)
			key := canonical.String()
			if outcome.fetchErr != nil {
				continue // failed_fetch: no page record, no children discovered
			}

			page := model.PageRecord{
				URL:             key,
				Title:           outcome.classified.Title,
				WordCount:       outcome.classified.WordCount,
				PageType:        outcome.classified.PageType,
				HasHeader:       outcome.classified.HasHeader,
				HasFooter:       outcome.classified.HasFooter,
				HasNavigation:   outcome.classified.HasNavigation,
				StructureDigest: outcome.classified.StructureDigest,
				Depth:           outcome.item.depth,
				Path:            append([]string{}, maps.PathMap[key]...),
			}
			pages = append(pages, page)
			bodies[key] = outcome.result.Body()
			statusCodes[key] = outcome.result.StatusCode()

			for _, link := range outcome.links {
				childKey := link.Canonical
				if seen.Contains(childKey) {
					if childKey == seedKey && !seedEdgeRecorded {
						// The seed has no discoverer, so the first page linking
						// back to it records its edge; the maps stay untouched.
						seedEdgeRecorded = true
						edges = append(edges, model.EdgeRecord{URL: seedKey, ParentURL: key, Status: model.StatusUnknown, LinkType: link.Type})
					}
					continue // first discoverer already recorded
				}
				seen.Add(childKey)
				maps.ParentMap[childKey] = key
				maps.ChildrenMap[key] = append(maps.ChildrenMap[key], childKey)
				maps.PathMap[childKey] = append(append([]string{}, maps.PathMap[key]...), childKey)

				edges = append(edges, model.EdgeRecord{
					URL:       childKey,
					ParentURL: key,
					Status:    model.StatusUnknown,
					LinkType:  link.Type,
				})

				sameOrigin := link.Type != model.LinkExternal
				withinDepth := outcome.item.depth+1 <= f.params.MaxCrawlDepth
				withinBudget := enqueuedCount < f.params.MaxPagesToCrawl
				if sameOrigin && withinDepth && withinBudget {
					queue.Enqueue(crawlItem{url: link.URL, depth: outcome.item.depth + 1, parent: key})
					enqueuedCount++
				}
			}
		}
	}

	return Result{Pages: pages, Edges: edges, Maps: maps, Bodies: bodies, PageStatusCodes: statusCodes, WallClockHit: ctx.Err() != nil}, nil
}

// dispatchBatch fetches, extracts, and classifies every item in a batch
// concurrently, then returns outcomes in the original (BFS/document) order
// so downstream map/edge construction stays deterministic.
func (f *Frontier) dispatchBatch(ctx context.Context, batch []crawlItem) []fetchOutcome {
	outcomes := make([]fetchOutcome, len(batch))
	var wg sync.WaitGroup
	for i, item := range batch {
		wg.Add(1)
		go func(i int, item crawlItem) {
			defer wg.Done()
			outcomes[i] = f.processOne(ctx, item)
		}(i, item)
	}
	wg.Wait()
	return outcomes
}

func (f *Frontier) processOne(ctx context.Context, item crawlItem) fetchOutcome {
	param := fetcher.NewFetchParam(item.url, f.params.UserAgent)
	result, fetchErr := f.fetcher.Fetch(ctx, item.depth, param)
	if fetchErr != nil {
		return fetchOutcome{item: item, fetchErr: fetchErr}
	}

	classified, _ := f.classifier.Classify(result.Body(), result.StatusCode())

	links, extractErr := f.extractor.Extract(result.Body(), item.url, item.url, f.params.ExtractToggles)
	if extractErr != nil {
		links = nil
	}

	return fetchOutcome{item: item, result: result, links: links, classified: classified}
}
