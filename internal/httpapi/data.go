package httpapi

import (
	"time"

	"github.com/arvindnair/webanalyzer/internal/model"
)

// The wire DTOs mirror the persisted vocabulary: snake_case field names,
// nullable status codes, and the three maps exactly as the store returns
// them. Conversion lives here so the store never learns about JSON.

type runDTO struct {
	RunID            string     `json:"run_id"`
	ApplicationID    string     `json:"application_id"`
	State            string     `json:"state"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	PagesAnalyzed    int        `json:"pages_analyzed"`
	LinksFound       int        `json:"links_found"`
	BrokenCount      int        `json:"broken_count"`
	BlankCount       int        `json:"blank_count"`
	ContentPageCount int        `json:"content_page_count"`
	Score            int        `json:"score"`
}

type pageDTO struct {
	URL             string   `json:"url"`
	Title           string   `json:"title"`
	WordCount       int      `json:"word_count"`
	PageType        string   `json:"page_type"`
	HasHeader       bool     `json:"has_header"`
	HasFooter       bool     `json:"has_footer"`
	HasNavigation   bool     `json:"has_navigation"`
	StructureDigest string   `json:"structure_digest"`
	Depth           int      `json:"depth"`
	Path            []string `json:"path"`
}

type edgeDTO struct {
	URL            string  `json:"url"`
	ParentURL      string  `json:"parent_url"`
	StatusCode     *int    `json:"status_code"`
	Status         string  `json:"status"`
	LinkType       string  `json:"link_type"`
	ResponseTimeMS int64   `json:"response_time_ms"`
	ErrorMessage   string  `json:"error_message,omitempty"`
	Title          string  `json:"title,omitempty"`
}

type mapsDTO struct {
	ParentMap   map[string]string   `json:"parent_map"`
	ChildrenMap map[string][]string `json:"children_map"`
	PathMap     map[string][]string `json:"path_map"`
}

type bundleDTO struct {
	Run   runDTO    `json:"run"`
	Pages []pageDTO `json:"pages"`
	Edges []edgeDTO `json:"edges"`
	Maps  mapsDTO   `json:"maps"`
}

type highlightedLinkDTO struct {
	URL        string `json:"url"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Type       string `json:"type"`
	StatusCode *int   `json:"status_code"`
	Status     string `json:"status"`
}

type sourceDTO struct {
	Body               string               `json:"body"`
	ActualSourcePage   string               `json:"actual_source_page"`
	IsSourceFromParent bool                 `json:"is_source_from_parent"`
	TraversalPath      []string             `json:"traversal_path"`
	HierarchyDepth     int                  `json:"hierarchy_depth"`
	HighlightedLinks   []highlightedLinkDTO `json:"highlighted_links"`
}

// linkDetailDTO answers the broken-link-details read: the edge record plus
// the parent page's title and the full discovery path of the link target.
type linkDetailDTO struct {
	Edge        edgeDTO  `json:"edge"`
	ParentTitle string   `json:"parent_title"`
	Path        []string `json:"path"`
}

type startRunRequest struct {
	SeedURL       string `json:"seed_url"`
	ApplicationID string `json:"application_id"`

	MaxCrawlDepth      int `json:"max_crawl_depth,omitempty"`
	MaxPagesToCrawl    int `json:"max_pages_to_crawl,omitempty"`
	MaxLinksToValidate int `json:"max_links_to_validate,omitempty"`

	ExtractStatic   *bool `json:"extract_static,omitempty"`
	ExtractDynamic  *bool `json:"extract_dynamic,omitempty"`
	ExtractResource *bool `json:"extract_resource,omitempty"`
	ExtractExternal *bool `json:"extract_external,omitempty"`

	RequestTimeoutSeconds int    `json:"request_timeout_seconds,omitempty"`
	MaxConcurrentRequests int    `json:"max_concurrent_requests,omitempty"`
	RetryAttempts         int    `json:"retry_attempts,omitempty"`
	UserAgent             string `json:"user_agent,omitempty"`
}

type startRunResponse struct {
	RunID      string `json:"run_id"`
	TaskHandle string `json:"task_handle"`
}

type statusResponse struct {
	State      string `json:"state"`
	Progress   int    `json:"progress"`
	Ready      bool   `json:"ready"`
	Successful bool   `json:"successful"`
	Failed     bool   `json:"failed"`
	Info       string `json:"info,omitempty"`
}

func toRunDTO(r model.Run) runDTO {
	return runDTO{
		RunID:            r.RunID,
		ApplicationID:    r.ApplicationID,
		State:            string(r.State),
		CreatedAt:        r.CreatedAt,
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
		ErrorMessage:     r.ErrorMessage,
		PagesAnalyzed:    r.PagesAnalyzed,
		LinksFound:       r.LinksFound,
		BrokenCount:      r.BrokenCount,
		BlankCount:       r.BlankCount,
		ContentPageCount: r.ContentPageCount,
		Score:            r.Score,
	}
}

func toPageDTO(p model.PageRecord) pageDTO {
	return pageDTO{
		URL:             p.URL,
		Title:           p.Title,
		WordCount:       p.WordCount,
		PageType:        string(p.PageType),
		HasHeader:       p.HasHeader,
		HasFooter:       p.HasFooter,
		HasNavigation:   p.HasNavigation,
		StructureDigest: p.StructureDigest,
		Depth:           p.Depth,
		Path:            p.Path,
	}
}

func toEdgeDTO(e model.EdgeRecord) edgeDTO {
	return edgeDTO{
		URL:            e.URL,
		ParentURL:      e.ParentURL,
		StatusCode:     e.StatusCode,
		Status:         string(e.Status),
		LinkType:       string(e.LinkType),
		ResponseTimeMS: e.ResponseTime.Milliseconds(),
		ErrorMessage:   e.ErrorMessage,
		Title:          e.Title,
	}
}

func toMapsDTO(m model.Maps) mapsDTO {
	return mapsDTO{ParentMap: m.ParentMap, ChildrenMap: m.ChildrenMap, PathMap: m.PathMap}
}

func toBundleDTO(b model.RunBundle) bundleDTO {
	out := bundleDTO{Run: toRunDTO(b.Run), Maps: toMapsDTO(b.Maps)}
	for _, p := range b.Pages {
		out.Pages = append(out.Pages, toPageDTO(p))
	}
	for _, e := range b.Edges {
		out.Edges = append(out.Edges, toEdgeDTO(e))
	}
	return out
}

func toSourceDTO(s model.SourceResult) sourceDTO {
	out := sourceDTO{
		Body:               string(s.Body),
		ActualSourcePage:   s.ActualSourcePage,
		IsSourceFromParent: s.IsSourceFromParent,
		TraversalPath:      s.TraversalPath,
		HierarchyDepth:     s.HierarchyDepth,
	}
	for _, h := range s.HighlightedLinks {
		out.HighlightedLinks = append(out.HighlightedLinks, highlightedLinkDTO{
			URL:        h.URL,
			Start:      h.Start,
			End:        h.End,
			Type:       string(h.Type),
			StatusCode: h.StatusCode,
			Status:     string(h.Status),
		})
	}
	return out
}
