package run_test

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

	"github.com/arvindnair/webanalyzer/internal/config"
	"github.com/arvindnair/webanalyzer/internal/model"
	"github.com/arvindnair/webanalyzer/internal/run"
	"github.com/arvindnair/webanalyzer/internal/store"
	"github.com/arvindnair/webanalyzer/internal/telemetry"
)

func testSink() *telemetry.Sink {
	return telemetry.NewSink(io.Discard, log.ErrorLevel)
}

// trivialSite serves scenario 1 from the crawl contract: a seed linking to
// /x and /y, both returning 200 with near-empty bodies.
func trivialSite() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Seed</title></head><body>` +
			`<a href="/x">x</a> <a href="/y">y</a>` +
			`</body></html>`))
	})
	mux.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>X</title></head><body></body></html>`))
	})
	mux.HandleFunc("/y", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Y</title></head><body></body></html>`))
	})
	return httptest.NewServer(mux)
}

func waitForTerminal(t *testing.T, d *run.Driver, handle string) run.StatusResult {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		status, err := d.RunStatus(handle)
		require.Nil(t, err)
		if status.Ready {
			return status
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("run did not reach a terminal state in time")
	return run.StatusResult{}
}

func buildConfig(t *testing.T, seedURL string) config.Config {
	t.Helper()
	cfg, err := config.WithDefault(seedURL).
		WithApplicationID("app-1").
		WithMaxCrawlDepth(2).
		WithMaxPagesToCrawl(10).
		WithMaxLinksToValidate(20).
		WithRequestTimeout(5 * time.Second).
		Build()
	require.NoError(t, err)
	return cfg
}

func TestDriver_TrivialSite_EndToEnd(t *testing.T) {
	srv := trivialSite()
	defer srv.Close()

	st := store.NewMemoryStore(testSink())
	d := run.NewDriver(st, testSink())

	started, startErr := d.StartRun(buildConfig(t, srv.URL+"/"))
	require.Nil(t, startErr)
	require.NotEmpty(t, started.RunID)
	require.NotEmpty(t, started.TaskHandle)

	status := waitForTerminal(t, d, started.TaskHandle)
	require.Equal(t, model.RunCompleted, status.State)
	assert.True(t, status.Successful)
	assert.False(t, status.Failed)
	assert.Equal(t, 100, status.Progress)

	bundle, err := st.GetRun(context.Background(), started.RunID)
	require.Nil(t, err)

	assert.Equal(t, model.RunCompleted, bundle.Run.State)
	assert.Len(t, bundle.Pages, 3)
	assert.Len(t, bundle.Edges, 2)
	assert.Equal(t, 3, bundle.Run.PagesAnalyzed)
	assert.Equal(t, 2, bundle.Run.LinksFound)
	assert.Equal(t, 0, bundle.Run.BrokenCount)

	for _, e := range bundle.Edges {
		assert.Equal(t, model.StatusValid, e.Status)
		require.NotNil(t, e.StatusCode)
		assert.Equal(t, http.StatusOK, *e.StatusCode)
	}

	// Both leaves resolve their source from the seed's stored body.
	source, err := st.GetSource(context.Background(), started.RunID, srv.URL+"/x", 2)
	require.Nil(t, err)
	assert.True(t, source.IsSourceFromParent)
	assert.Equal(t, 1, source.HierarchyDepth)
	assert.Contains(t, string(source.Body), `href="/x"`)
}

func TestDriver_BrokenLink_RecordedNotFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a href="/ok">ok</a> <a href="/bad">bad</a></body></html>`))
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>fine</body></html>`))
	})
	mux.HandleFunc("/bad", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	st := store.NewMemoryStore(testSink())
	d := run.NewDriver(st, testSink())

	started, startErr := d.StartRun(buildConfig(t, srv.URL+"/"))
	require.Nil(t, startErr)

	status := waitForTerminal(t, d, started.TaskHandle)
	require.Equal(t, model.RunCompleted, status.State)

	bundle, err := st.GetRun(context.Background(), started.RunID)
	require.Nil(t, err)

	// A 4xx page still yields a page record (page_type=error), so the
	// broken target appears both as a page and as a broken edge.
	assert.Len(t, bundle.Pages, 3)
	assert.Equal(t, 1, bundle.Run.BrokenCount)

	var sawBroken bool
	for _, e := range bundle.Edges {
		if e.Status == model.StatusBroken {
			sawBroken = true
			require.NotNil(t, e.StatusCode)
			assert.Equal(t, http.StatusNotFound, *e.StatusCode)
		}
	}
	assert.True(t, sawBroken)
}

func TestDriver_RunStatus_UnknownHandle(t *testing.T) {
	d := run.NewDriver(store.NewMemoryStore(testSink()), testSink())
	_, err := d.RunStatus("no-such-handle")
	require.NotNil(t, err)
}

func TestDriver_StartRun_RejectsUnparseableSeed(t *testing.T) {
	d := run.NewDriver(store.NewMemoryStore(testSink()), testSink())
	cfg, err := config.WithDefault("not a url").Build()
	require.NoError(t, err)
	_, startErr := d.StartRun(cfg)
	require.NotNil(t, startErr)
}

func TestDriver_Cancel_DiscardsPartialResults(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`<html><body></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer close(release)

	st := store.NewMemoryStore(testSink())
	d := run.NewDriver(st, testSink())

	started, startErr := d.StartRun(buildConfig(t, srv.URL+"/"))
	require.Nil(t, startErr)

	// Let the run reach the fetch before cancelling.
	time.Sleep(50 * time.Millisecond)
	require.Nil(t, d.Cancel(started.TaskHandle))

	status := waitForTerminal(t, d, started.TaskHandle)
	assert.Equal(t, model.RunFailed, status.State)
	assert.True(t, status.Failed)

	// Nothing was persisted for the cancelled run.
	_, err := st.GetRun(context.Background(), started.RunID)
	require.NotNil(t, err)
}

func TestDriver_Cancel_TerminalRunIsNoOp(t *testing.T) {
	srv := trivialSite()
	defer srv.Close()

	st := store.NewMemoryStore(testSink())
	d := run.NewDriver(st, testSink())

	started, startErr := d.StartRun(buildConfig(t, srv.URL+"/"))
	require.Nil(t, startErr)
	waitForTerminal(t, d, started.TaskHandle)

	require.Nil(t, d.Cancel(started.TaskHandle))
	status, err := d.RunStatus(started.TaskHandle)
	require.Nil(t, err)
	assert.Equal(t, model.RunCompleted, status.State)
}
