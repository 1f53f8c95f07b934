package store

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/arvindnair/webanalyzer/internal/model"
	"github.com/arvindnair/webanalyzer/internal/telemetry"
	"github.com/arvindnair/webanalyzer/pkg/failure"
)

// runRecord is everything one run persists, keyed by run id. Writers are
// serialized per run id; readers may proceed concurrently.
type runRecord struct {
	run     model.Run
	seedURL string
	pages   []model.PageRecord
	edges   []model.EdgeRecord
	maps    model.Maps
	bodies  map[string][]byte // only interior pages, per the write rule
}

// MemoryStore is the reference Store implementation: a process-local,
// mutex-guarded map of runs. It is the backend the run driver's own tests
// exercise directly, and the delegate CachingStore wraps in examples.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*runRecord
	sink *telemetry.Sink
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(sink *telemetry.Sink) *MemoryStore {
	return &MemoryStore{runs: make(map[string]*runRecord), sink: sink}
}

func (s *MemoryStore) PersistRun(ctx context.Context, run model.Run, seedURL string, pages []model.PageRecord, edges []model.EdgeRecord, maps model.Maps, fetchedBodies map[string][]byte) failure.ClassifiedError {
	agg := ComputeAggregates(pages, edges)
	if err := validateBundle(seedURL, pages, edges, maps, agg, run); err != nil {
		storeErr := &StoreError{Message: err.Error(), Retryable: false, Cause: ErrCauseInvariantViolation, RunID: run.RunID}
		s.sink.InvariantViolation(run.RunID, storeErr.Error())
		return storeErr
	}

	bodies := bodyWriteSet(seedURL, maps, fetchedBodies)

	record := &runRecord{
		run:     run,
		seedURL: seedURL,
		pages:   append([]model.PageRecord{}, pages...),
		edges:   append([]model.EdgeRecord{}, edges...),
		maps:    copyMaps(maps),
		bodies:  bodies,
	}

	s.mu.Lock()
	s.runs[run.RunID] = record
	s.mu.Unlock()

	s.sink.StoreWrite(run.RunID, "persist_run", nil)
	return nil
}

func (s *MemoryStore) GetRun(ctx context.Context, runID string) (model.RunBundle, failure.ClassifiedError) {
	s.mu.RLock()
	record, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return model.RunBundle{}, &StoreError{Message: runID, Cause: ErrCauseRunNotFound, RunID: runID}
	}
	return model.RunBundle{
		Run:   record.run,
		Pages: append([]model.PageRecord{}, record.pages...),
		Edges: append([]model.EdgeRecord{}, record.edges...),
		Maps:  copyMaps(record.maps),
	}, nil
}

func (s *MemoryStore) GetParentChild(ctx context.Context, runID string) (model.Maps, failure.ClassifiedError) {
	s.mu.RLock()
	record, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return model.Maps{}, &StoreError{Message: runID, Cause: ErrCauseRunNotFound, RunID: runID}
	}
	return copyMaps(record.maps), nil
}

func (s *MemoryStore) DeleteRun(ctx context.Context, runID string) failure.ClassifiedError {
	s.mu.Lock()
	delete(s.runs, runID)
	s.mu.Unlock()
	s.sink.StoreWrite(runID, "delete_run", nil)
	return nil
}

// GetSource implements the hierarchical body read: a point lookup first,
// then an upward walk through parent_map, bounded by maxCrawlDepth+1.
func (s *MemoryStore) GetSource(ctx context.Context, runID, pageURL string, maxCrawlDepth int) (model.SourceResult, failure.ClassifiedError) {
	s.mu.RLock()
	record, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return model.SourceResult{}, &StoreError{Message: runID, Cause: ErrCauseRunNotFound, RunID: runID}
	}

	ceiling := maxCrawlDepth + 1

	if body, ok := record.bodies[pageURL]; ok {
		result := model.SourceResult{
			Body:             body,
			ActualSourcePage: pageURL,
			TraversalPath:    []string{pageURL},
			HierarchyDepth:   0,
		}
		result.HighlightedLinks = highlightLinks(record.edges, pageURL, body)
		return result, nil
	}

	path := []string{pageURL}
	cur := pageURL
	depth := 0
	for {
		parent, hasParent := record.maps.ParentMap[cur]
		if !hasParent || parent == "" {
			break
		}
		cur = parent
		path = append(path, cur)
		depth++
		if depth > ceiling {
			break
		}
		if body, ok := record.bodies[cur]; ok {
			result := model.SourceResult{
				Body:               body,
				ActualSourcePage:   cur,
				IsSourceFromParent: true,
				TraversalPath:      path,
				HierarchyDepth:     depth,
			}
			result.HighlightedLinks = highlightLinks(record.edges, cur, body)
			return result, nil
		}
	}

	return model.SourceResult{}, &StoreError{Message: pageURL, Cause: ErrCauseSourceNotFound, RunID: runID}
}

// highlightLinks locates the first byte offset of every edge observed on
// actualSourcePage within body, left-biased and non-overlapping: edges are
// scanned in their
// original discovery order, and an edge whose only occurrence overlaps an
// already-claimed byte range is silently omitted.
func highlightLinks(edges []model.EdgeRecord, actualSourcePage string, body []byte) []model.HighlightedLink {
	type span struct{ start, end int }
	var claimed []span
	overlaps := func(s span) bool {
		for _, c := range claimed {
			if s.start < c.end && c.start < s.end {
				return true
			}
		}
		return false
	}

	var out []model.HighlightedLink
	for _, e := range edges {
		if e.ParentURL != actualSourcePage {
			continue
		}
		idx := bytes.Index(body, []byte(e.URL))
		if idx < 0 {
			continue // edge not textually present in the body: omitted silently
		}
		s := span{start: idx, end: idx + len(e.URL)}
		if overlaps(s) {
			continue
		}
		claimed = append(claimed, s)
		out = append(out, model.HighlightedLink{
			URL:        e.URL,
			Start:      s.start,
			End:        s.end,
			Type:       highlightType(e.Status),
			StatusCode: e.StatusCode,
			Status:     e.Status,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func highlightType(status model.StatusLabel) model.HighlightType {
	switch status {
	case model.StatusBroken, model.StatusTimeout:
		return model.HighlightBroken
	case model.StatusValid:
		return model.HighlightWorking
	default:
		return model.HighlightOther
	}
}

func copyMaps(m model.Maps) model.Maps {
	out := model.NewMaps()
	for k, v := range m.ParentMap {
		out.ParentMap[k] = v
	}
	for k, v := range m.ChildrenMap {
		out.ChildrenMap[k] = append([]string{}, v...)
	}
	for k, v := range m.PathMap {
		out.PathMap[k] = append([]string{}, v...)
	}
	return out
}
