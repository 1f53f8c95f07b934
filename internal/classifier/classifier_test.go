package classifier_test

import (
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvindnair/webanalyzer/internal/classifier"
	"github.com/arvindnair/webanalyzer/internal/model"
	"github.com/arvindnair/webanalyzer/internal/telemetry"
)

func testSink() *telemetry.Sink {
	return telemetry.NewSink(io.Discard, log.ErrorLevel)
}

func TestContentClassifier_ContentPage(t *testing.T) {
	body := []byte(`<html><head><title>Hi</title></head><body>
		<header>Site</header>
		<main>` + strings.Repeat("word ", 60) + `</main>
		<footer>f</footer>
	</body></html>`)

	c := classifier.NewContentClassifier(testSink(), "run-1")
	result, err := c.Classify(body, 200)

	require.Nil(t, err)
	assert.Equal(t, "Hi", result.Title)
	assert.True(t, result.HasHeader)
	assert.True(t, result.HasFooter)
	assert.Equal(t, model.PageContent, result.PageType)
	assert.GreaterOrEqual(t, result.WordCount, 60)
}

func TestContentClassifier_BlankChromeOnlyPage(t *testing.T) {
	body := []byte(`<html><body><nav>Home About</nav></body></html>`)

	c := classifier.NewContentClassifier(testSink(), "run-1")
	result, err := c.Classify(body, 200)

	require.Nil(t, err)
	assert.Equal(t, model.PageBlank, result.PageType)
	assert.True(t, result.HasNavigation)
}

func TestContentClassifier_ErrorStatusYieldsErrorPageType(t *testing.T) {
	body := []byte(`<html><body><h1>Not Found</h1></body></html>`)

	c := classifier.NewContentClassifier(testSink(), "run-1")
	result, err := c.Classify(body, 404)

	require.Nil(t, err)
	assert.Equal(t, model.PageError, result.PageType)
}

func TestContentClassifier_RedirectWithEmptyBody(t *testing.T) {
	c := classifier.NewContentClassifier(testSink(), "run-1")
	result, err := c.Classify([]byte(""), 301)

	require.Nil(t, err)
	assert.Equal(t, model.PageRedirect, result.PageType)
}

func TestContentClassifier_AriaRoleSatisfiesHeaderFooterNav(t *testing.T) {
	body := []byte(`<html><body>
		<div role="banner">b</div>
		<div role="contentinfo">c</div>
		<div role="navigation">n</div>
	</body></html>`)

	c := classifier.NewContentClassifier(testSink(), "run-1")
	result, err := c.Classify(body, 200)

	require.Nil(t, err)
	assert.True(t, result.HasHeader)
	assert.True(t, result.HasFooter)
	assert.True(t, result.HasNavigation)
}

func TestContentClassifier_StructureDigestDeterministic(t *testing.T) {
	body1 := []byte(`<html><body><p>one</p></body></html>`)
	body2 := []byte(`<html><body><p>two</p></body></html>`)

	c := classifier.NewContentClassifier(testSink(), "run-1")
	r1, err := c.Classify(body1, 200)
	require.Nil(t, err)
	r2, err := c.Classify(body2, 200)
	require.Nil(t, err)

	assert.Equal(t, r1.StructureDigest, r2.StructureDigest)
	assert.NotEmpty(t, r1.StructureDigest)
}
