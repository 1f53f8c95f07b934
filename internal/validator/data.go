package validator

import "time"

// Params configures one Validate call: the budget and request policy for
// the validator. RequestTimeout and UserAgent mirror the fetcher's
// policy but are configured independently since the validator is a distinct
// concurrency domain.
type Params struct {
	MaxLinksToValidate int
	MaxConcurrent      int
	RequestTimeout     time.Duration
	UserAgent          string
}

// FetchedPage is the cheap-reuse input for edges whose target was already
// fetched by the frontier: no second request is issued for these.
type FetchedPage struct {
	StatusCode int
}
