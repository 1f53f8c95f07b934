// Package httpapi exposes the read-side HTTP surface over the hierarchical
// store, plus the run trigger interface for callers that drive the engine
// over HTTP instead of in-process. Exact paths are this package's own
// choice; the response semantics are fixed by the store and driver
// contracts it fronts.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arvindnair/webanalyzer/internal/config"
	"github.com/arvindnair/webanalyzer/internal/model"
	"github.com/arvindnair/webanalyzer/internal/run"
	"github.com/arvindnair/webanalyzer/internal/store"
	"github.com/arvindnair/webanalyzer/internal/telemetry"
	"github.com/arvindnair/webanalyzer/pkg/failure"
)

// maxTraversalDepth is the ceiling handed to get_source when the caller
// does not supply one: the upper bound of the configurable crawl depth
// range, so no legitimately-persisted chain is ever cut short.
const maxTraversalDepth = 5

// Server routes the HTTP surface onto a Store and a run Driver.
type Server struct {
	store  store.Store
	driver *run.Driver
	sink   *telemetry.Sink
}

func NewServer(st store.Store, driver *run.Driver, sink *telemetry.Sink) *Server {
	return &Server{store: st, driver: driver, sink: sink}
}

// Router builds the chi router for the API.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", s.handleStartRun)
		r.Get("/tasks/{handle}", s.handleRunStatus)
		r.Post("/tasks/{handle}/cancel", s.handleCancel)
		r.Get("/runs/{runID}", s.handleGetRun)
		r.Delete("/runs/{runID}", s.handleDeleteRun)
		r.Get("/runs/{runID}/maps", s.handleGetMaps)
		r.Get("/runs/{runID}/source", s.handleGetSource)
		r.Get("/runs/{runID}/links", s.handleGetLinkDetail)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func errorJSON(w http.ResponseWriter, message, code string, status int) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// storeErrorJSON maps store error causes onto HTTP statuses: not-found
// causes become 404, everything else is a 500.
func storeErrorJSON(w http.ResponseWriter, err failure.ClassifiedError) {
	var storeErr *store.StoreError
	if errors.As(err, &storeErr) {
		switch storeErr.Cause {
		case store.ErrCauseRunNotFound:
			errorJSON(w, err.Error(), "RUN_NOT_FOUND", http.StatusNotFound)
			return
		case store.ErrCauseSourceNotFound:
			errorJSON(w, err.Error(), "SOURCE_NOT_FOUND", http.StatusNotFound)
			return
		}
	}
	errorJSON(w, err.Error(), "STORE_FAILURE", http.StatusInternalServerError)
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, "invalid JSON body", "INVALID_ARGUMENT", http.StatusBadRequest)
		return
	}

	cfg, err := buildConfig(req)
	if err != nil {
		errorJSON(w, err.Error(), "INVALID_ARGUMENT", http.StatusBadRequest)
		return
	}

	started, startErr := s.driver.StartRun(cfg)
	if startErr != nil {
		errorJSON(w, startErr.Error(), "INVALID_ARGUMENT", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusAccepted, startRunResponse{RunID: started.RunID, TaskHandle: started.TaskHandle})
}

func buildConfig(req startRunRequest) (config.Config, error) {
	cfg := config.WithDefault(req.SeedURL)
	if req.ApplicationID != "" {
		cfg.WithApplicationID(req.ApplicationID)
	}
	if req.MaxCrawlDepth != 0 {
		cfg.WithMaxCrawlDepth(req.MaxCrawlDepth)
	}
	if req.MaxPagesToCrawl != 0 {
		cfg.WithMaxPagesToCrawl(req.MaxPagesToCrawl)
	}
	if req.MaxLinksToValidate != 0 {
		cfg.WithMaxLinksToValidate(req.MaxLinksToValidate)
	}
	if req.ExtractStatic != nil {
		cfg.WithExtractStatic(*req.ExtractStatic)
	}
	if req.ExtractDynamic != nil {
		cfg.WithExtractDynamic(*req.ExtractDynamic)
	}
	if req.ExtractResource != nil {
		cfg.WithExtractResource(*req.ExtractResource)
	}
	if req.ExtractExternal != nil {
		cfg.WithExtractExternal(*req.ExtractExternal)
	}
	if req.RequestTimeoutSeconds != 0 {
		cfg.WithRequestTimeout(time.Duration(req.RequestTimeoutSeconds) * time.Second)
	}
	if req.MaxConcurrentRequests != 0 {
		cfg.WithMaxConcurrentRequests(req.MaxConcurrentRequests)
	}
	if req.RetryAttempts != 0 {
		cfg.WithRetryAttempts(req.RetryAttempts)
	}
	if req.UserAgent != "" {
		cfg.WithUserAgent(req.UserAgent)
	}
	return cfg.Build()
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	status, err := s.driver.RunStatus(handle)
	if err != nil {
		errorJSON(w, err.Error(), "TASK_NOT_FOUND", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		State:      string(status.State),
		Progress:   status.Progress,
		Ready:      status.Ready,
		Successful: status.Successful,
		Failed:     status.Failed,
		Info:       status.Info,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	if err := s.driver.Cancel(handle); err != nil {
		errorJSON(w, err.Error(), "TASK_NOT_FOUND", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	bundle, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		storeErrorJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBundleDTO(bundle))
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.store.DeleteRun(r.Context(), runID); err != nil {
		storeErrorJSON(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetMaps(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	maps, err := s.store.GetParentChild(r.Context(), runID)
	if err != nil {
		storeErrorJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMapsDTO(maps))
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	pageURL := r.URL.Query().Get("url")
	if pageURL == "" {
		errorJSON(w, "url query parameter is required", "INVALID_ARGUMENT", http.StatusBadRequest)
		return
	}

	depth := maxTraversalDepth
	if v := r.URL.Query().Get("max_depth"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			errorJSON(w, "max_depth must be a positive integer", "INVALID_ARGUMENT", http.StatusBadRequest)
			return
		}
		depth = parsed
	}

	source, err := s.store.GetSource(r.Context(), runID, pageURL, depth)
	if err != nil {
		storeErrorJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSourceDTO(source))
}

// handleGetLinkDetail serves the broken-link-details read: the edge record
// for the given URL, the title of the page it was discovered on, and its
// discovery path.
func (s *Server) handleGetLinkDetail(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	linkURL := r.URL.Query().Get("url")
	if linkURL == "" {
		errorJSON(w, "url query parameter is required", "INVALID_ARGUMENT", http.StatusBadRequest)
		return
	}

	bundle, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		storeErrorJSON(w, err)
		return
	}

	var edge *model.EdgeRecord
	for i := range bundle.Edges {
		if bundle.Edges[i].URL == linkURL {
			edge = &bundle.Edges[i]
			break
		}
	}
	if edge == nil {
		errorJSON(w, "no edge record for url", "EDGE_NOT_FOUND", http.StatusNotFound)
		return
	}

	var parentTitle string
	for _, p := range bundle.Pages {
		if p.URL == edge.ParentURL {
			parentTitle = p.Title
			break
		}
	}

	writeJSON(w, http.StatusOK, linkDetailDTO{
		Edge:        toEdgeDTO(*edge),
		ParentTitle: parentTitle,
		Path:        bundle.Maps.PathMap[linkURL],
	})
}
