// Package store implements the hierarchical store. It
// persists run metadata, page records, edge validations, the three forest
// maps, and a deduplicated body store, and serves the traversal-based
// get_source read. MemoryStore is the reference implementation used by the
// run driver's in-process tests; MongoStore and CachingStore adapt it onto
// durable and cached backends respectively.
package store

import (
	"context"

	"github.com/arvindnair/webanalyzer/internal/model"
	"github.com/arvindnair/webanalyzer/pkg/failure"
)

// Store is the persistence contract for run artifacts.
type Store interface {
	// PersistRun atomically writes every artifact of one run. seedURL
	// identifies the root of the discovery forest so the hierarchical
	// write rule's seed exception can be applied; fetchedBodies
	// holds every body the frontier retained, keyed by canonical URL,
	// before the write rule prunes it down to interior pages.
	PersistRun(ctx context.Context, run model.Run, seedURL string, pages []model.PageRecord, edges []model.EdgeRecord, maps model.Maps, fetchedBodies map[string][]byte) failure.ClassifiedError

	// GetRun returns run metadata, page records, edge records, maps, and
	// aggregate counters.
	GetRun(ctx context.Context, runID string) (model.RunBundle, failure.ClassifiedError)

	// GetSource returns the HTML body and metadata for pageURL, resolved
	// from an ancestor when pageURL itself carries no body row.
	// maxCrawlDepth bounds the upward walk.
	GetSource(ctx context.Context, runID, pageURL string, maxCrawlDepth int) (model.SourceResult, failure.ClassifiedError)

	// GetParentChild returns the three denormalized forest views for a run.
	GetParentChild(ctx context.Context, runID string) (model.Maps, failure.ClassifiedError)

	// DeleteRun cascades deletion across every row keyed by runID. It is
	// idempotent: deleting a run that does not exist is a no-op.
	DeleteRun(ctx context.Context, runID string) failure.ClassifiedError
}

// Aggregates holds the five run-level counters plus the score,
// recomputed from the page/edge tables so invariant 5 can be checked at the
// store boundary rather than trusted from the caller.
type Aggregates struct {
	PagesAnalyzed    int
	LinksFound       int
	BrokenCount      int
	BlankCount       int
	ContentPageCount int
	Score            int
}

// ComputeAggregates recomputes the run-level counters from the per-record
// tables, so the counters reported on a run always equal what the tables
// themselves say.
//
// Score has no mandated formula beyond its [0,100] range; this engine
// scores a run as the average of link health (the
// fraction of edges with a validation result, i.e. any status but unknown,
// that are valid) and content health (the fraction of fetched pages classified
// as content rather than blank/error), each in [0,1], scaled to [0,100].
func ComputeAggregates(pages []model.PageRecord, edges []model.EdgeRecord) Aggregates {
	agg := Aggregates{
		PagesAnalyzed: len(pages),
		LinksFound:    len(edges),
	}

	var validEdges, unhealthyEdges int
	for _, e := range edges {
		switch e.Status {
		case model.StatusBroken:
			agg.BrokenCount++
			unhealthyEdges++
		case model.StatusValid:
			validEdges++
		case model.StatusRedirect, model.StatusTimeout, model.StatusRateLimited:
			unhealthyEdges++
		}
	}

	for _, p := range pages {
		switch p.PageType {
		case model.PageBlank:
			agg.BlankCount++
		case model.PageContent:
			agg.ContentPageCount++
		}
	}

	linkHealth := 1.0
	if validated := validEdges + unhealthyEdges; validated > 0 {
		linkHealth = float64(validEdges) / float64(validated)
	}
	contentHealth := 1.0
	if agg.PagesAnalyzed > 0 {
		contentHealth = float64(agg.ContentPageCount) / float64(agg.PagesAnalyzed)
	}
	agg.Score = int((0.5*linkHealth+0.5*contentHealth)*100 + 0.5)

	return agg
}

// bodyWriteSet applies the hierarchical body write rule: persist a body
// for u iff u has children, or u is the seed, and u was fetched.
func bodyWriteSet(seedURL string, maps model.Maps, fetchedBodies map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(fetchedBodies))
	for u, body := range fetchedBodies {
		if u == seedURL || maps.HasChildren(u) {
			out[u] = body
		}
	}
	return out
}
