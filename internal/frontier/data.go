package frontier

import (
	"net/url"

	"github.com/arvindnair/webanalyzer/internal/model"
)

// URLState is the per-URL crawl state machine: unseen -> enqueued ->
// fetching -> {fetched, failed_fetch}; fetched -> classified. Transitions
// are monotonic; a URL never regresses.
type URLState int

const (
	StateUnseen URLState = iota
	StateEnqueued
	StateFetching
	StateFetched
	StateFailedFetch
	StateClassified
)

// crawlItem is one FIFO queue entry: a URL, its BFS depth, and the parent
// page on which it was first discovered.
type crawlItem struct {
	url    url.URL
	depth  int
	parent string
}

// Result is everything the frontier produces for one run: fetched pages,
// the full edge set (validated or not), and the three denormalized forest
// views, plus the raw bodies kept in memory for classification and for the
// hierarchical store's write pass.
type Result struct {
	Pages           []model.PageRecord
	Edges           []model.EdgeRecord
	Maps            model.Maps
	Bodies          map[string][]byte
	PageStatusCodes map[string]int
	WallClockHit    bool
}
