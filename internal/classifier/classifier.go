// Package classifier computes, from an HTML body,
// title, word count, structural chrome presence, and a page-type label.
package classifier

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/arvindnair/webanalyzer/internal/model"
	"github.com/arvindnair/webanalyzer/internal/telemetry"
	"github.com/arvindnair/webanalyzer/pkg/failure"
	"github.com/arvindnair/webanalyzer/pkg/hashutil"
)

const blankWordCountThreshold = 50

var ariaRoleSelector = map[string]string{
	"has_header": "[role=banner]",
	"has_footer": "[role=contentinfo]",
	"has_nav":    "[role=navigation]",
}

// Classifier is the content classification contract.
type Classifier interface {
	Classify(body []byte, statusCode int) (Result, failure.ClassifiedError)
}

// ContentClassifier classifies fetched bodies using goquery, the same DOM
// library the extractor uses.
type ContentClassifier struct {
	sink  *telemetry.Sink
	runID string
}

func NewContentClassifier(sink *telemetry.Sink, runID string) *ContentClassifier {
	return &ContentClassifier{sink: sink, runID: runID}
}

func (c *ContentClassifier) Classify(body []byte, statusCode int) (Result, failure.ClassifiedError) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		classErr := &ClassificationError{Message: err.Error(), Cause: ErrCauseUnparseableHTML}
		c.sink.ExtractFailed(c.runID, "", mapClassificationErrorToCause(classErr), classErr.Error())
		return Result{PageType: model.PageError}, nil
	}

	doc.Find("script, style").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	text := doc.Text()
	wordCount := countWords(text)

	hasHeader := elementOrRolePresent(doc, "header", ariaRoleSelector["has_header"])
	hasFooter := elementOrRolePresent(doc, "footer", ariaRoleSelector["has_footer"])
	hasNav := elementOrRolePresent(doc, "nav", ariaRoleSelector["has_nav"])

	digest := structureDigest(doc)

	pageType := classifyPageType(statusCode, body, wordCount, hasHeader, hasFooter, hasNav)

	result := Result{
		Title:           title,
		WordCount:       wordCount,
		HasHeader:       hasHeader,
		HasFooter:       hasFooter,
		HasNavigation:   hasNav,
		PageType:        pageType,
		StructureDigest: digest,
	}
	c.sink.Classified(c.runID, "", string(pageType), wordCount)
	return result, nil
}

func classifyPageType(statusCode int, body []byte, wordCount int, hasHeader, hasFooter, hasNav bool) model.PageType {
	switch {
	case statusCode >= 400:
		return model.PageError
	case statusCode >= 300 && statusCode < 400 && len(bytes.TrimSpace(body)) == 0:
		return model.PageRedirect
	case wordCount < blankWordCountThreshold && (hasHeader || hasFooter || hasNav):
		return model.PageBlank
	default:
		return model.PageContent
	}
}

func elementOrRolePresent(doc *goquery.Document, tag, roleSelector string) bool {
	if doc.Find(tag).Length() > 0 {
		return true
	}
	return doc.Find(roleSelector).Length() > 0
}

func countWords(text string) int {
	return len(strings.Fields(text))
}

// structureDigest fingerprints the HTML tag skeleton with text content
// stripped, so equivalent-structure pages hash identically. Built on blake3
// via pkg/hashutil.
func structureDigest(doc *goquery.Document) string {
	var skeleton strings.Builder
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		if node == nil {
			return
		}
		skeleton.WriteString(node.Data)
		skeleton.WriteByte('/')
	})
	digest, err := hashutil.HashBytes([]byte(skeleton.String()), hashutil.HashAlgoBLAKE3)
	if err != nil {
		return ""
	}
	return digest
}
