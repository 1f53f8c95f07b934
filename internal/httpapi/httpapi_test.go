package httpapi_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvindnair/webanalyzer/internal/httpapi"
	"github.com/arvindnair/webanalyzer/internal/model"
	"github.com/arvindnair/webanalyzer/internal/run"
	"github.com/arvindnair/webanalyzer/internal/store"
	"github.com/arvindnair/webanalyzer/internal/telemetry"
)

func testSink() *telemetry.Sink {
	return telemetry.NewSink(io.Discard, log.ErrorLevel)
}

// seedBundle persists a small completed run directly into the store: a seed
// with two children, one edge broken.
func seedBundle(t *testing.T, st store.Store) string {
	t.Helper()
	seed := "http://a/"
	maps := model.NewMaps()
	maps.PathMap[seed] = []string{seed}
	maps.ParentMap["http://a/ok"] = seed
	maps.ParentMap["http://a/bad"] = seed
	maps.ChildrenMap[seed] = []string{"http://a/ok", "http://a/bad"}
	maps.PathMap["http://a/ok"] = []string{seed, "http://a/ok"}
	maps.PathMap["http://a/bad"] = []string{seed, "http://a/bad"}

	pages := []model.PageRecord{
		{RunID: "run-1", URL: seed, Title: "Seed", PageType: model.PageContent, Path: []string{seed}},
		{RunID: "run-1", URL: "http://a/ok", PageType: model.PageContent, Depth: 1, Path: []string{seed, "http://a/ok"}},
		{RunID: "run-1", URL: "http://a/bad", PageType: model.PageError, Depth: 1, Path: []string{seed, "http://a/bad"}},
	}
	okCode, badCode := 200, 404
	edges := []model.EdgeRecord{
		{RunID: "run-1", URL: "http://a/ok", ParentURL: seed, Status: model.StatusValid, StatusCode: &okCode, LinkType: model.LinkStaticHTML},
		{RunID: "run-1", URL: "http://a/bad", ParentURL: seed, Status: model.StatusBroken, StatusCode: &badCode, LinkType: model.LinkStaticHTML},
	}
	bodies := map[string][]byte{
		seed:           []byte(`<a href="http://a/ok">ok</a> <a href="http://a/bad">bad</a>`),
		"http://a/ok":  []byte("ok leaf"),
		"http://a/bad": []byte("bad leaf"),
	}
	agg := store.ComputeAggregates(pages, edges)
	runRec := model.Run{
		RunID: "run-1", State: model.RunCompleted, CreatedAt: time.Now(),
		PagesAnalyzed: agg.PagesAnalyzed, LinksFound: agg.LinksFound,
		BrokenCount: agg.BrokenCount, BlankCount: agg.BlankCount,
		ContentPageCount: agg.ContentPageCount, Score: agg.Score,
	}
	require.Nil(t, st.PersistRun(context.Background(), runRec, seed, pages, edges, maps, bodies))
	return "run-1"
}

func newTestAPI(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	st := store.NewMemoryStore(testSink())
	driver := run.NewDriver(st, testSink())
	api := httptest.NewServer(httpapi.NewServer(st, driver, testSink()).Router())
	t.Cleanup(api.Close)
	return api, st
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestServer_GetRunBundle(t *testing.T) {
	api, st := newTestAPI(t)
	runID := seedBundle(t, st)

	var bundle struct {
		Run struct {
			RunID       string `json:"run_id"`
			State       string `json:"state"`
			BrokenCount int    `json:"broken_count"`
		} `json:"run"`
		Pages []struct {
			URL string `json:"url"`
		} `json:"pages"`
		Edges []struct {
			URL    string `json:"url"`
			Status string `json:"status"`
		} `json:"edges"`
		Maps struct {
			ParentMap map[string]string `json:"parent_map"`
		} `json:"maps"`
	}
	code := getJSON(t, api.URL+"/api/v1/runs/"+runID, &bundle)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, runID, bundle.Run.RunID)
	assert.Equal(t, "completed", bundle.Run.State)
	assert.Equal(t, 1, bundle.Run.BrokenCount)
	assert.Len(t, bundle.Pages, 3)
	assert.Len(t, bundle.Edges, 2)
	assert.Equal(t, "http://a/", bundle.Maps.ParentMap["http://a/ok"])
}

func TestServer_GetRun_NotFound(t *testing.T) {
	api, _ := newTestAPI(t)
	code := getJSON(t, api.URL+"/api/v1/runs/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_GetSource_ResolvesFromParent(t *testing.T) {
	api, st := newTestAPI(t)
	runID := seedBundle(t, st)

	var source struct {
		ActualSourcePage   string   `json:"actual_source_page"`
		IsSourceFromParent bool     `json:"is_source_from_parent"`
		TraversalPath      []string `json:"traversal_path"`
		HierarchyDepth     int      `json:"hierarchy_depth"`
		HighlightedLinks   []struct {
			URL  string `json:"url"`
			Type string `json:"type"`
		} `json:"highlighted_links"`
	}
	code := getJSON(t, api.URL+"/api/v1/runs/"+runID+"/source?url=http://a/ok", &source)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, "http://a/", source.ActualSourcePage)
	assert.True(t, source.IsSourceFromParent)
	assert.Equal(t, []string{"http://a/ok", "http://a/"}, source.TraversalPath)
	assert.Equal(t, 1, source.HierarchyDepth)
	assert.Len(t, source.HighlightedLinks, 2)
}

func TestServer_GetSource_RequiresURL(t *testing.T) {
	api, st := newTestAPI(t)
	runID := seedBundle(t, st)
	code := getJSON(t, api.URL+"/api/v1/runs/"+runID+"/source", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServer_GetLinkDetail(t *testing.T) {
	api, st := newTestAPI(t)
	runID := seedBundle(t, st)

	var detail struct {
		Edge struct {
			URL        string `json:"url"`
			Status     string `json:"status"`
			StatusCode *int   `json:"status_code"`
		} `json:"edge"`
		ParentTitle string   `json:"parent_title"`
		Path        []string `json:"path"`
	}
	code := getJSON(t, api.URL+"/api/v1/runs/"+runID+"/links?url=http://a/bad", &detail)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, "broken", detail.Edge.Status)
	require.NotNil(t, detail.Edge.StatusCode)
	assert.Equal(t, 404, *detail.Edge.StatusCode)
	assert.Equal(t, "Seed", detail.ParentTitle)
	assert.Equal(t, []string{"http://a/", "http://a/bad"}, detail.Path)
}

func TestServer_DeleteRun_Cascades(t *testing.T) {
	api, st := newTestAPI(t)
	runID := seedBundle(t, st)

	req, err := http.NewRequest(http.MethodDelete, api.URL+"/api/v1/runs/"+runID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	code := getJSON(t, api.URL+"/api/v1/runs/"+runID, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_StartRun_AndPollStatus(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>hello</p></body></html>`))
	}))
	defer site.Close()

	api, _ := newTestAPI(t)

	body := `{"seed_url":"` + site.URL + `/","application_id":"app-9","max_crawl_depth":1,"max_pages_to_crawl":10,"max_links_to_validate":20}`
	resp, err := http.Post(api.URL+"/api/v1/runs", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started struct {
		RunID      string `json:"run_id"`
		TaskHandle string `json:"task_handle"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	require.NotEmpty(t, started.TaskHandle)

	deadline := time.Now().Add(30 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "run did not finish in time")
		var status struct {
			Ready      bool `json:"ready"`
			Successful bool `json:"successful"`
		}
		code := getJSON(t, api.URL+"/api/v1/tasks/"+started.TaskHandle, &status)
		require.Equal(t, http.StatusOK, code)
		if status.Ready {
			assert.True(t, status.Successful)
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestServer_StartRun_RejectsBadConfig(t *testing.T) {
	api, _ := newTestAPI(t)
	resp, err := http.Post(api.URL+"/api/v1/runs", "application/json", strings.NewReader(`{"seed_url":"","max_crawl_depth":9}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
