// Package manifest stages the root configuration JSON of an embeddable
// application and the assets it references.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/edupack/concord-stager/internal/pipeline"
)

// Manifest is the subset of the configuration JSON the walker acts on.
// The raw bytes are staged verbatim; this struct only drives reference
// extraction and metadata.
type Manifest struct {
	Title        string     `json:"title"`
	About        string     `json:"about"`
	Redirect     string     `json:"redirect"`
	Models       []ModelRef `json:"models"`
	I18nMetadata string     `json:"i18nMetadata"`
}

// ModelRef is one entry of the manifest's models list.
type ModelRef struct {
	URL string `json:"url"`
}

// Walker implements pipeline.ManifestWalker.
type Walker struct {
	fetcher pipeline.Fetcher
	logger  *zap.Logger
}

// New builds a Walker.
func New(fetcher pipeline.Fetcher, logger *zap.Logger) *Walker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{fetcher: fetcher, logger: logger}
}

// Walk fetches the mandatory root configuration, writes it at the staging
// path mirroring its remote location, and downloads each referenced asset
// one level deep. References are never walked further; that matches the
// nesting ceiling of the catalog itself. A failed reference fetch is
// recorded and skipped; only the root fetch is fatal.
func (w *Walker) Walk(ctx context.Context, app pipeline.ResolvedApp, stagingDir string) (pipeline.WalkSummary, error) {
	configURL := pipeline.JoinRef(app.BaseURL, app.ConfigPath)
	root := w.fetcher.Fetch(ctx, configURL, "application/json")
	if !root.Record.OK() {
		return pipeline.WalkSummary{}, fmt.Errorf("fetch root configuration %s: outcome %s (status %d, content-type %q)",
			configURL, root.Record.Outcome, root.Record.Status, root.Record.ContentType)
	}

	summary := pipeline.WalkSummary{Records: []pipeline.DownloadRecord{root.Record}}

	rel, err := pipeline.RelPath(app.ConfigPath)
	if err != nil {
		return pipeline.WalkSummary{}, fmt.Errorf("configuration path: %w", err)
	}
	if err := writeStaged(stagingDir, rel, root.Body); err != nil {
		return pipeline.WalkSummary{}, err
	}
	summary.Records[0].LocalPath = rel

	var m Manifest
	if err := json.Unmarshal(root.Body, &m); err != nil {
		return pipeline.WalkSummary{}, fmt.Errorf("parse root configuration %s: %w", configURL, err)
	}

	if m.Redirect != "" {
		// Following the redirect is deliberately unimplemented; record it
		// so the limitation stays visible instead of silently dropped.
		summary.RedirectNoted = true
		w.logger.Info("configuration carries an unfollowed redirect",
			zap.String("config_url", configURL),
			zap.String("redirect", m.Redirect),
		)
	}

	for _, ref := range collectRefs(m) {
		rec := w.stageRef(ctx, app, stagingDir, ref)
		summary.Records = append(summary.Records, rec)
	}

	summary.Title = m.Title
	summary.Description = m.About
	if summary.Title == "" {
		summary.Title = pipeline.PlaceholderTitle
		summary.UsedPlaceholder = true
	}
	if summary.Description == "" {
		summary.Description = pipeline.PlaceholderDescription
		summary.UsedPlaceholder = true
	}
	return summary, nil
}

// collectRefs extracts the one level of asset references the manifest may
// carry: every models entry with a url, plus the i18n metadata document.
func collectRefs(m Manifest) []string {
	refs := make([]string, 0, len(m.Models)+1)
	for _, model := range m.Models {
		if model.URL != "" {
			refs = append(refs, model.URL)
		}
	}
	if m.I18nMetadata != "" {
		refs = append(refs, m.I18nMetadata)
	}
	return refs
}

func (w *Walker) stageRef(ctx context.Context, app pipeline.ResolvedApp, stagingDir, ref string) pipeline.DownloadRecord {
	rel, err := pipeline.RelPath(ref)
	if err != nil {
		w.logger.Warn("ignoring unusable manifest reference", zap.String("ref", ref), zap.Error(err))
		return pipeline.DownloadRecord{URL: ref, Outcome: pipeline.OutcomeHTTPError}
	}
	res := w.fetcher.Fetch(ctx, pipeline.JoinRef(app.BaseURL, rel), "application/json")
	rec := res.Record
	if !rec.OK() {
		return rec
	}
	if err := writeStaged(stagingDir, rel, res.Body); err != nil {
		w.logger.Warn("failed to stage manifest reference", zap.String("ref", ref), zap.Error(err))
		rec.Outcome = pipeline.OutcomeHTTPError
		return rec
	}
	rec.LocalPath = rel
	return rec
}

func writeStaged(stagingDir, rel string, data []byte) error {
	target := filepath.Join(stagingDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create staging dir for %s: %w", target, err)
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return fmt.Errorf("write staged file %s: %w", target, err)
	}
	return nil
}
