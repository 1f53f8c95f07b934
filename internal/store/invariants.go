package store

import (
	"fmt"

	"github.com/arvindnair/webanalyzer/internal/model"
)

// validateBundle checks the structural invariants that must hold before a
// run's artifacts are persisted. A violation is fatal — it aborts the run
// rather than being silently repaired — so every store backend runs this
// before committing a write.
func validateBundle(seedURL string, pages []model.PageRecord, edges []model.EdgeRecord, maps model.Maps, agg Aggregates, run model.Run) error {
	pageByURL := make(map[string]struct{}, len(pages))
	for _, p := range pages {
		pageByURL[p.URL] = struct{}{}
	}

	// Invariant 1: parent_map is acyclic, forest domain excludes the seed.
	if _, seedHasParent := maps.ParentMap[seedURL]; seedHasParent {
		return fmt.Errorf("seed %q must not appear as a key in parent_map", seedURL)
	}
	visited := make(map[string]bool, len(maps.ParentMap))
	for u := range maps.ParentMap {
		if err := walkToRoot(u, seedURL, maps.ParentMap, visited); err != nil {
			return err
		}
	}

	// Invariant 3: path_map[u] = path_map[parent[u]] ++ [u].
	for u, path := range maps.PathMap {
		if u == seedURL {
			if len(path) != 1 || path[0] != seedURL {
				return fmt.Errorf("path_map[seed] must be [seed], got %v", path)
			}
			continue
		}
		parent, ok := maps.ParentMap[u]
		if !ok {
			return fmt.Errorf("path_map has entry for %q with no parent_map entry", u)
		}
		if len(path) == 0 || path[len(path)-1] != u {
			return fmt.Errorf("path_map[%q] must end with %q, got %v", u, u, path)
		}
		parentPath := maps.PathMap[parent]
		if len(path)-1 != len(parentPath) {
			return fmt.Errorf("path_map[%q] length inconsistent with parent %q", u, parent)
		}
		for i := range parentPath {
			if path[i] != parentPath[i] {
				return fmt.Errorf("path_map[%q] does not extend path_map[%q]", u, parent)
			}
		}
	}

	// Invariant 6: every edge's parent_url is a page record.
	for _, e := range edges {
		if _, ok := pageByURL[e.ParentURL]; !ok {
			return fmt.Errorf("edge %q has parent_url %q with no page record", e.URL, e.ParentURL)
		}
	}

	// Invariant 5: reported aggregate counters equal the recomputation.
	if run.PagesAnalyzed != agg.PagesAnalyzed ||
		run.LinksFound != agg.LinksFound ||
		run.BrokenCount != agg.BrokenCount ||
		run.BlankCount != agg.BlankCount ||
		run.ContentPageCount != agg.ContentPageCount {
		return fmt.Errorf("run counters %+v do not match recomputed aggregates %+v", run, agg)
	}

	return nil
}

// walkToRoot follows parent_map from u until it reaches the seed, failing
// on a cycle (a node revisited within the same walk) or a dangling parent
// reference that never reaches the seed.
func walkToRoot(u, seedURL string, parentMap map[string]string, visited map[string]bool) error {
	seen := make(map[string]bool)
	cur := u
	for cur != seedURL {
		if seen[cur] {
			return fmt.Errorf("cycle detected in parent_map reaching %q", cur)
		}
		seen[cur] = true
		visited[cur] = true
		parent, ok := parentMap[cur]
		if !ok {
			return fmt.Errorf("parent_map chain from %q does not terminate at seed %q", u, seedURL)
		}
		cur = parent
	}
	return nil
}
