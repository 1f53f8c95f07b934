package validator_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvindnair/webanalyzer/internal/model"
	"github.com/arvindnair/webanalyzer/internal/telemetry"
	"github.com/arvindnair/webanalyzer/internal/validator"
)

func testSink() *telemetry.Sink {
	return telemetry.NewSink(io.Discard, log.ErrorLevel)
}

func TestHTTPValidator_ClassifiesStatusCodes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<html><head><title>OK Page</title></head></html>`))
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMovedPermanently)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/limited", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	edges := []model.EdgeRecord{
		{URL: srv.URL + "/ok", ParentURL: srv.URL + "/", LinkType: model.LinkStaticHTML},
		{URL: srv.URL + "/redirect", ParentURL: srv.URL + "/", LinkType: model.LinkStaticHTML},
		{URL: srv.URL + "/missing", ParentURL: srv.URL + "/", LinkType: model.LinkStaticHTML},
		{URL: srv.URL + "/limited", ParentURL: srv.URL + "/", LinkType: model.LinkStaticHTML},
	}

	v := validator.NewHTTPValidator(testSink(), "run-1")
	params := validator.Params{MaxLinksToValidate: 10, MaxConcurrent: 4, RequestTimeout: time.Second, UserAgent: "webanalyzer-test/1.0"}

	out := v.Validate(context.Background(), edges, map[string]validator.FetchedPage{}, params)
	require.Len(t, out, 4)

	byURL := make(map[string]model.EdgeRecord, len(out))
	for _, e := range out {
		byURL[e.URL] = e
	}

	assert.Equal(t, model.StatusValid, byURL[srv.URL+"/ok"].Status)
	assert.Equal(t, "OK Page", byURL[srv.URL+"/ok"].Title)
	assert.Equal(t, model.StatusRedirect, byURL[srv.URL+"/redirect"].Status)
	assert.Equal(t, model.StatusBroken, byURL[srv.URL+"/missing"].Status)
	assert.Equal(t, model.StatusRateLimited, byURL[srv.URL+"/limited"].Status)
}

func TestHTTPValidator_ReusesFetchedPageStatusWithoutRequest(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	edges := []model.EdgeRecord{
		{URL: srv.URL + "/already-fetched", ParentURL: srv.URL + "/", LinkType: model.LinkStaticHTML},
	}
	fetched := map[string]validator.FetchedPage{
		srv.URL + "/already-fetched": {StatusCode: 200},
	}

	v := validator.NewHTTPValidator(testSink(), "run-1")
	params := validator.Params{MaxLinksToValidate: 10, MaxConcurrent: 4, RequestTimeout: time.Second, UserAgent: "test"}

	out := v.Validate(context.Background(), edges, fetched, params)
	require.Len(t, out, 1)
	assert.Equal(t, model.StatusValid, out[0].Status)
	assert.Equal(t, 0, hits)
}

func TestHTTPValidator_BudgetLeavesRemainderUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var edges []model.EdgeRecord
	for i := 0; i < 5; i++ {
		edges = append(edges, model.EdgeRecord{
			URL:       srv.URL + "/p" + string(rune('a'+i)),
			ParentURL: srv.URL + "/",
			LinkType:  model.LinkStaticHTML,
			Status:    model.StatusUnknown,
		})
	}

	v := validator.NewHTTPValidator(testSink(), "run-1")
	params := validator.Params{MaxLinksToValidate: 2, MaxConcurrent: 4, RequestTimeout: time.Second, UserAgent: "test"}

	out := v.Validate(context.Background(), edges, map[string]validator.FetchedPage{}, params)
	require.Len(t, out, 5)

	validated := 0
	for _, e := range out {
		if e.StatusCode != nil {
			validated++
		} else {
			assert.Equal(t, model.StatusUnknown, e.Status)
		}
	}
	assert.Equal(t, 2, validated)
}

func TestHTTPValidator_PrioritizesSameOriginOverExternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	edges := []model.EdgeRecord{
		{URL: "https://external.example.com/x", ParentURL: srv.URL + "/", LinkType: model.LinkExternal},
		{URL: srv.URL + "/internal", ParentURL: srv.URL + "/", LinkType: model.LinkStaticHTML},
	}

	v := validator.NewHTTPValidator(testSink(), "run-1")
	params := validator.Params{MaxLinksToValidate: 1, MaxConcurrent: 4, RequestTimeout: time.Second, UserAgent: "test"}

	out := v.Validate(context.Background(), edges, map[string]validator.FetchedPage{}, params)
	byURL := make(map[string]model.EdgeRecord, len(out))
	for _, e := range out {
		byURL[e.URL] = e
	}
	assert.NotNil(t, byURL[srv.URL+"/internal"].StatusCode)
	assert.Nil(t, byURL["https://external.example.com/x"].StatusCode)
}
