package fetcher

import (
	"net/url"
	"time"
)

// FetchParam is the HTTP-boundary request description.
type FetchParam struct {
	url       url.URL
	userAgent string
}

func NewFetchParam(fetchURL url.URL, userAgent string) FetchParam {
	return FetchParam{url: fetchURL, userAgent: userAgent}
}

func (p FetchParam) URL() url.URL { return p.url }

// FetchResult is the successful outcome of a fetch: status, headers, body,
// and elapsed wall-clock time.
type FetchResult struct {
	url        url.URL
	statusCode int
	headers    map[string]string
	body       []byte
	elapsed    time.Duration
}

func (r FetchResult) URL() url.URL               { return r.url }
func (r FetchResult) StatusCode() int             { return r.statusCode }
func (r FetchResult) Headers() map[string]string { return r.headers }
func (r FetchResult) Body() []byte               { return r.body }
func (r FetchResult) Elapsed() time.Duration     { return r.elapsed }

// NewFetchResultForTest builds a FetchResult without exporting its fields.
func NewFetchResultForTest(u url.URL, statusCode int, headers map[string]string, body []byte, elapsed time.Duration) FetchResult {
	return FetchResult{url: u, statusCode: statusCode, headers: headers, body: body, elapsed: elapsed}
}
