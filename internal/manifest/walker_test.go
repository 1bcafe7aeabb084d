package manifest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edupack/concord-stager/internal/pipeline"
)

type mapFetcher struct {
	pages map[string]mapPage
}

type mapPage struct {
	body        []byte
	contentType string
	status      int
}

func (m *mapFetcher) Fetch(_ context.Context, url string, expectType string) pipeline.FetchResult {
	page, ok := m.pages[url]
	if !ok {
		return pipeline.FetchResult{Record: pipeline.DownloadRecord{
			URL: url, Outcome: pipeline.OutcomeHTTPError, Status: 404,
		}}
	}
	status := page.status
	if status == 0 {
		status = 200
	}
	rec := pipeline.DownloadRecord{
		URL:         url,
		Status:      status,
		ContentType: page.contentType,
		Bytes:       int64(len(page.body)),
	}
	if status < 200 || status >= 300 {
		rec.Outcome = pipeline.OutcomeHTTPError
		return pipeline.FetchResult{Record: rec}
	}
	if expectType != "" && !strings.HasPrefix(page.contentType, expectType) {
		rec.Outcome = pipeline.OutcomeWrongContentType
		return pipeline.FetchResult{Record: rec}
	}
	rec.Outcome = pipeline.OutcomeOK
	return pipeline.FetchResult{Record: rec, Body: page.body}
}

var app = pipeline.ResolvedApp{BaseURL: "https://lab.example.org", ConfigPath: "models/7.json"}

// TestWalkStagesConfigurationAndReferences covers the happy path: root
// configuration written verbatim at its mirrored path, references staged
// one level deep, metadata extracted.
func TestWalkStagesConfigurationAndReferences(t *testing.T) {
	t.Parallel()

	rootJSON := []byte(`{
  "title": "Pendulum",
  "about": "Explore periodic motion.",
  "models": [{"url": "models/data/pendulum.json"}],
  "i18nMetadata": "locales/meta.json"
}`)
	fetcher := &mapFetcher{pages: map[string]mapPage{
		"https://lab.example.org/models/7.json":             {body: rootJSON, contentType: "application/json"},
		"https://lab.example.org/models/data/pendulum.json": {body: []byte(`{"mass":1}`), contentType: "application/json"},
		"https://lab.example.org/locales/meta.json":         {body: []byte(`{"en":{}}`), contentType: "application/json"},
	}}

	dir := t.TempDir()
	summary, err := New(fetcher, zap.NewNop()).Walk(context.Background(), app, dir)
	require.NoError(t, err)

	assert.Equal(t, "Pendulum", summary.Title)
	assert.Equal(t, "Explore periodic motion.", summary.Description)
	assert.False(t, summary.RedirectNoted)
	assert.False(t, summary.UsedPlaceholder)
	require.Len(t, summary.Records, 3)

	// The configuration bytes are staged exactly as served.
	staged, err := os.ReadFile(filepath.Join(dir, "models", "7.json"))
	require.NoError(t, err)
	assert.Equal(t, rootJSON, staged)

	for _, rel := range []string{"models/data/pendulum.json", "locales/meta.json"} {
		_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
		assert.NoError(t, err, rel)
	}
}

// TestWalkRootFetchFailure is entry-fatal: without the configuration there
// is nothing to stage.
func TestWalkRootFetchFailure(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{pages: map[string]mapPage{}}
	_, err := New(fetcher, zap.NewNop()).Walk(context.Background(), app, t.TempDir())
	require.Error(t, err)
}

// TestWalkWrongContentType rejects a root configuration served as HTML,
// which usually means an error page.
func TestWalkWrongContentType(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{pages: map[string]mapPage{
		"https://lab.example.org/models/7.json": {body: []byte("<html>"), contentType: "text/html"},
	}}
	_, err := New(fetcher, zap.NewNop()).Walk(context.Background(), app, t.TempDir())
	require.Error(t, err)
}

// TestWalkRedirectPlaceholders substitutes placeholder metadata when the
// configuration defers to a redirect.
func TestWalkRedirectPlaceholders(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{pages: map[string]mapPage{
		"https://lab.example.org/models/7.json": {
			body:        []byte(`{"redirect": "interactives/pendulum.json"}`),
			contentType: "application/json",
		},
	}}

	summary, err := New(fetcher, zap.NewNop()).Walk(context.Background(), app, t.TempDir())
	require.NoError(t, err)

	assert.True(t, summary.RedirectNoted)
	assert.True(t, summary.UsedPlaceholder)
	assert.Equal(t, pipeline.PlaceholderTitle, summary.Title)
	assert.Equal(t, pipeline.PlaceholderDescription, summary.Description)
}

// TestWalkRecordsFailedReferences keeps a broken model reference as a
// record without failing the walk.
func TestWalkRecordsFailedReferences(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{pages: map[string]mapPage{
		"https://lab.example.org/models/7.json": {
			body:        []byte(`{"title": "Circuits", "about": "Build circuits.", "models": [{"url": "models/data/missing.json"}]}`),
			contentType: "application/json",
		},
	}}

	summary, err := New(fetcher, zap.NewNop()).Walk(context.Background(), app, t.TempDir())
	require.NoError(t, err)
	require.Len(t, summary.Records, 2)
	assert.Equal(t, pipeline.OutcomeOK, summary.Records[0].Outcome)
	assert.Equal(t, pipeline.OutcomeHTTPError, summary.Records[1].Outcome)
}

// TestWalkInvalidJSON treats an unparseable configuration as entry-fatal.
func TestWalkInvalidJSON(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{pages: map[string]mapPage{
		"https://lab.example.org/models/7.json": {body: []byte("not json"), contentType: "application/json"},
	}}
	_, err := New(fetcher, zap.NewNop()).Walk(context.Background(), app, t.TempDir())
	require.Error(t, err)
}
