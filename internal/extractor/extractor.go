// Package extractor implements link extraction: given an HTML body and a base
// URL, yields a typed, deduplicated set of absolute URLs.
package extractor

import (
	"bytes"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/arvindnair/webanalyzer/internal/model"
	"github.com/arvindnair/webanalyzer/internal/telemetry"
	"github.com/arvindnair/webanalyzer/pkg/failure"
	"github.com/arvindnair/webanalyzer/pkg/urlutil"
)

// inlineURLPattern is a conservative URL matcher: a scheme-
// prefixed, unquoted run of non-whitespace/non-quote/non-angle-bracket
// characters, used to pull URL-shaped substrings out of onclick handlers
// and inline script text.
var inlineURLPattern = regexp.MustCompile(`https?://[^\s"'<>)]+`)

type candidate struct {
	raw  string
	kind model.LinkType
}

// Extractor is the link extraction contract.
type Extractor interface {
	Extract(body []byte, base url.URL, seed url.URL, toggles Toggles) ([]ExtractedLink, failure.ClassifiedError)
}

// DomExtractor extracts links by DOM traversal with goquery.
type DomExtractor struct {
	sink  *telemetry.Sink
	runID string
}

func NewDomExtractor(sink *telemetry.Sink, runID string) *DomExtractor {
	return &DomExtractor{sink: sink, runID: runID}
}

func (d *DomExtractor) Extract(body []byte, base url.URL, seed url.URL, toggles Toggles) ([]ExtractedLink, failure.ClassifiedError) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		extractErr := &ExtractionError{Message: err.Error(), Cause: ErrCauseUnparseableHTML}
		d.sink.ExtractFailed(d.runID, base.String(), mapExtractionErrorToCause(extractErr), extractErr.Error())
		return nil, extractErr
	}

	candidates := collectCandidates(doc)

	seen := make(map[string]struct{}, len(candidates))
	var out []ExtractedLink
	for _, c := range candidates {
		resolved, ok := urlutil.Resolve(base, c.raw)
		if !ok {
			continue
		}
		canonical := urlutil.Canonicalize(resolved)
		canonicalKey := canonical.String()

		finalType := c.kind
		if !urlutil.SameRegistrableHost(seed, canonical) {
			finalType = model.LinkExternal
		}
		if !toggles.allows(finalType) {
			continue
		}
		if _, dup := seen[canonicalKey]; dup {
			continue
		}
		seen[canonicalKey] = struct{}{}
		out = append(out, ExtractedLink{URL: canonical, Canonical: canonicalKey, Type: finalType})
	}

	d.sink.Extracted(d.runID, base.String(), len(out))
	return out, nil
}

// collectCandidates gathers every raw href/src/attribute/script-text
// candidate before any resolution or canonicalization happens. It makes one
// pass per kind (a/link/area href, img/script/source src, stylesheets,
// onclick, data-url, data-href, inline script text), in that order, so
// candidates are in source order within a kind but not across kinds.
func collectCandidates(doc *goquery.Document) []candidate {
	var out []candidate

	doc.Find("a[href], link[href], area[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			out = append(out, candidate{raw: href, kind: model.LinkStaticHTML})
		}
	})

	doc.Find("img[src], script[src], source[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			out = append(out, candidate{raw: src, kind: model.LinkResource})
		}
	})
	doc.Find("link[rel=stylesheet][href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			out = append(out, candidate{raw: href, kind: model.LinkResource})
		}
	})

	doc.Find("[onclick]").Each(func(_ int, s *goquery.Selection) {
		if onclick, ok := s.Attr("onclick"); ok {
			for _, m := range inlineURLPattern.FindAllString(onclick, -1) {
				out = append(out, candidate{raw: m, kind: model.LinkDynamicJS})
			}
		}
	})
	doc.Find("[data-url]").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("data-url"); ok {
			out = append(out, candidate{raw: v, kind: model.LinkDynamicJS})
		}
	})
	doc.Find("[data-href]").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("data-href"); ok {
			out = append(out, candidate{raw: v, kind: model.LinkDynamicJS})
		}
	})
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if s.AttrOr("src", "") != "" {
			return // external script tags are covered by the resource pass
		}
		text := s.Text()
		for _, m := range inlineURLPattern.FindAllString(text, -1) {
			out = append(out, candidate{raw: m, kind: model.LinkDynamicJS})
		}
	})

	return out
}
