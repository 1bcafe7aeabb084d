package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	apps     map[string]ResolvedApp
	filtered map[string]bool
	err      error
}

func (f *fakeResolver) Resolve(_ context.Context, previewURL string) (ResolvedApp, bool, error) {
	if f.err != nil {
		return ResolvedApp{}, false, f.err
	}
	if f.filtered[previewURL] {
		return ResolvedApp{}, false, nil
	}
	app, ok := f.apps[previewURL]
	if !ok {
		return ResolvedApp{}, false, fmt.Errorf("unexpected preview url %s", previewURL)
	}
	return app, true, nil
}

type fakeCrawler struct {
	records []DownloadRecord
	err     error
}

func (f *fakeCrawler) Crawl(context.Context, ResolvedApp, string) ([]DownloadRecord, error) {
	return f.records, f.err
}

type fakeWalker struct {
	summary WalkSummary
	err     error
}

func (f *fakeWalker) Walk(context.Context, ResolvedApp, string) (WalkSummary, error) {
	return f.summary, f.err
}

type fakeStager struct {
	base string
	n    int
	mu   sync.Mutex
}

func (f *fakeStager) Allocate(entryID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return filepath.Join(f.base, fmt.Sprintf("%s-%d", entryID, f.n)), nil
}

type fakePackager struct {
	err error
}

func (f *fakePackager) Package(stagingDir string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return stagingDir + ".zip", nil
}

type recordingStore struct {
	mu    sync.Mutex
	saved []PackageResult
}

func (r *recordingStore) SaveResult(_ context.Context, result PackageResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, result)
	return nil
}

func (r *recordingStore) Close() error { return nil }

type recordingPublisher struct {
	mu        sync.Mutex
	published []PackageResult
}

func (r *recordingPublisher) Publish(_ context.Context, result PackageResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, result)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newOrchestrator(t *testing.T, res Resolver, crawler DocumentCrawler, walker ManifestWalker, packager Packager, store ResultStore, pub Publisher) *Orchestrator {
	t.Helper()
	return NewOrchestrator(
		Options{Concurrency: 2},
		res,
		crawler,
		walker,
		&fakeStager{base: t.TempDir()},
		packager,
		store,
		pub,
		fixedClock{t: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)},
		nil,
		nil,
	)
}

// TestRunPackagesEmbeddableEntry covers the happy path: one entry resolves,
// stages cleanly, and produces a stored and published package result.
func TestRunPackagesEmbeddableEntry(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{apps: map[string]ResolvedApp{
		"https://portal.example.org/preview/42": {
			BaseURL:    "https://lab.example.org",
			ConfigPath: "models/7.json",
		},
	}}
	walker := &fakeWalker{summary: WalkSummary{
		Title:       "Pendulum",
		Description: "Explore periodic motion.",
		Records:     []DownloadRecord{{URL: "https://lab.example.org/models/7.json", Outcome: OutcomeOK}},
	}}
	store := &recordingStore{}
	pub := &recordingPublisher{}
	orch := newOrchestrator(t, res, &fakeCrawler{}, walker, &fakePackager{}, store, pub)

	entry := CatalogEntry{
		ID:          "interactive-42",
		PreviewURL:  "https://portal.example.org/preview/42",
		LicenseInfo: &LicenseInfo{Code: "CC BY 4.0"},
	}
	report, err := orch.Run(context.Background(), []CatalogEntry{entry})
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	got := report.Results[0]
	assert.Equal(t, SourceID("interactive-42", "models/7.json"), got.SourceID)
	assert.Equal(t, "Pendulum", got.Title)
	assert.Equal(t, "Explore periodic motion.", got.Description)
	assert.Equal(t, "CC BY 4.0", got.License)
	assert.NotEmpty(t, got.ArchivePath)

	assert.Zero(t, report.Filtered)
	assert.Empty(t, report.Diagnostics)
	assert.Equal(t, []PackageResult{got}, store.saved)
	assert.Equal(t, []PackageResult{got}, pub.published)
}

// TestRunFiltersNonEmbeddable asserts a non-embeddable entry is counted
// but produces neither a result nor a diagnostic.
func TestRunFiltersNonEmbeddable(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{filtered: map[string]bool{"https://portal.example.org/preview/7": true}}
	orch := newOrchestrator(t, res, &fakeCrawler{}, &fakeWalker{}, &fakePackager{}, &recordingStore{}, &recordingPublisher{})

	report, err := orch.Run(context.Background(), []CatalogEntry{
		{ID: "page-7", PreviewURL: "https://portal.example.org/preview/7"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Filtered)
	assert.Empty(t, report.Results)
	assert.Empty(t, report.Diagnostics)
}

// TestRunRecordsEntryFailures ensures resolution and root-fetch failures
// become entry diagnostics without aborting the run.
func TestRunRecordsEntryFailures(t *testing.T) {
	t.Parallel()

	t.Run("resolution failure", func(t *testing.T) {
		t.Parallel()
		res := &fakeResolver{err: errors.New("dns lookup failed")}
		orch := newOrchestrator(t, res, &fakeCrawler{}, &fakeWalker{}, &fakePackager{}, &recordingStore{}, &recordingPublisher{})

		report, err := orch.Run(context.Background(), []CatalogEntry{
			{ID: "interactive-1", PreviewURL: "https://portal.example.org/preview/1"},
		})
		require.NoError(t, err)
		require.Len(t, report.Diagnostics, 1)
		assert.Equal(t, DiagEntryFailed, report.Diagnostics[0].Kind)
		assert.Equal(t, "interactive-1", report.Diagnostics[0].EntryID)
		assert.Empty(t, report.Results)
	})

	t.Run("root configuration failure", func(t *testing.T) {
		t.Parallel()
		res := &fakeResolver{apps: map[string]ResolvedApp{
			"https://portal.example.org/preview/2": {BaseURL: "https://lab.example.org", ConfigPath: "models/2.json"},
		}}
		walker := &fakeWalker{err: errors.New("fetch root configuration: status 500")}
		orch := newOrchestrator(t, res, &fakeCrawler{}, walker, &fakePackager{}, &recordingStore{}, &recordingPublisher{})

		report, err := orch.Run(context.Background(), []CatalogEntry{
			{ID: "interactive-2", PreviewURL: "https://portal.example.org/preview/2"},
		})
		require.NoError(t, err)
		require.Len(t, report.Diagnostics, 1)
		assert.Equal(t, DiagEntryFailed, report.Diagnostics[0].Kind)
		assert.Empty(t, report.Results)
	})
}

// TestRunSurvivesAssetFailures checks that a failed asset download still
// yields a package, with the failure surfaced as a diagnostic.
func TestRunSurvivesAssetFailures(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{apps: map[string]ResolvedApp{
		"https://portal.example.org/preview/3": {BaseURL: "https://lab.example.org", ConfigPath: "models/3.json"},
	}}
	crawler := &fakeCrawler{records: []DownloadRecord{
		{URL: "https://lab.example.org/js/app.js", Outcome: OutcomeOK},
		{URL: "https://lab.example.org/img/banner.png", Outcome: OutcomeHTTPError, Status: 404},
	}}
	walker := &fakeWalker{summary: WalkSummary{
		Title:         "Circuits",
		Description:   "Build circuits.",
		RedirectNoted: true,
		Records:       []DownloadRecord{{URL: "https://lab.example.org/models/3.json", Outcome: OutcomeOK}},
	}}
	orch := newOrchestrator(t, res, crawler, walker, &fakePackager{}, &recordingStore{}, &recordingPublisher{})

	report, err := orch.Run(context.Background(), []CatalogEntry{
		{ID: "interactive-3", PreviewURL: "https://portal.example.org/preview/3"},
	})
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	kinds := make(map[DiagnosticKind]int)
	for _, d := range report.Diagnostics {
		kinds[d.Kind]++
	}
	assert.Equal(t, 1, kinds[DiagAssetFailed])
	assert.Equal(t, 1, kinds[DiagRedirectUnfollowed])
}

// TestRunPlaceholderMetadata asserts the placeholder substitution shows up
// both in the result and as a diagnostic.
func TestRunPlaceholderMetadata(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{apps: map[string]ResolvedApp{
		"https://portal.example.org/preview/4": {BaseURL: "https://lab.example.org", ConfigPath: "models/4.json"},
	}}
	walker := &fakeWalker{summary: WalkSummary{
		Title:           PlaceholderTitle,
		Description:     PlaceholderDescription,
		RedirectNoted:   true,
		UsedPlaceholder: true,
		Records:         []DownloadRecord{{URL: "https://lab.example.org/models/4.json", Outcome: OutcomeOK}},
	}}
	orch := newOrchestrator(t, res, &fakeCrawler{}, walker, &fakePackager{}, &recordingStore{}, &recordingPublisher{})

	report, err := orch.Run(context.Background(), []CatalogEntry{
		{ID: "interactive-4", PreviewURL: "https://portal.example.org/preview/4"},
	})
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, PlaceholderTitle, report.Results[0].Title)
	assert.Equal(t, LicenseUnknown, report.Results[0].License)

	kinds := make(map[DiagnosticKind]int)
	for _, d := range report.Diagnostics {
		kinds[d.Kind]++
	}
	assert.Equal(t, 1, kinds[DiagMetadataPlaceholder])
	assert.Equal(t, 1, kinds[DiagRedirectUnfollowed])
}

// TestRunCanceledContext verifies cancellation stops scheduling and is
// reported as a run error.
func TestRunCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := newOrchestrator(t, &fakeResolver{}, &fakeCrawler{}, &fakeWalker{}, &fakePackager{}, &recordingStore{}, &recordingPublisher{})
	report, err := orch.Run(ctx, []CatalogEntry{
		{ID: "interactive-5", PreviewURL: "https://portal.example.org/preview/5"},
	})
	require.Error(t, err)
	assert.Empty(t, report.Results)
}
