// Package document stages the embeddable HTML document and its static
// assets for offline use.
package document

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/edupack/concord-stager/internal/pipeline"
)

// Config controls document crawling.
type Config struct {
	// DocumentPath is the path of the embeddable page on the resolved
	// host. Defaults to pipeline.DefaultEmbeddablePath.
	DocumentPath string
	// Deny filters out telemetry assets by filename.
	Deny *pipeline.Denylist
}

// Crawler downloads the embeddable document, stages every referenced
// static asset, and rewrites the document so it runs from a local root.
type Crawler struct {
	cfg     Config
	fetcher pipeline.Fetcher
	logger  *zap.Logger
}

// New builds a Crawler.
func New(cfg Config, fetcher pipeline.Fetcher, logger *zap.Logger) *Crawler {
	if cfg.DocumentPath == "" {
		cfg.DocumentPath = pipeline.DefaultEmbeddablePath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{cfg: cfg, fetcher: fetcher, logger: logger}
}

// assetSelectors maps goquery selectors to the attribute holding the
// asset reference.
var assetSelectors = []struct {
	selector string
	attr     string
}{
	{"script[src]", "src"},
	{"link[href]", "href"},
	{"img[src]", "src"},
}

// Crawl fetches the embeddable page, downloads its static assets into the
// staging directory, rewrites the fragment-reading expression to the
// resolved configuration path, and writes the result as the entry point.
// An error means the document itself could not be staged; individual asset
// failures only show up in the returned records.
func (c *Crawler) Crawl(ctx context.Context, app pipeline.ResolvedApp, stagingDir string) ([]pipeline.DownloadRecord, error) {
	docURL := pipeline.JoinRef(app.BaseURL, c.cfg.DocumentPath)
	res := c.fetcher.Fetch(ctx, docURL, "text/html")
	if !res.Record.OK() {
		return nil, fmt.Errorf("fetch embeddable document %s: outcome %s (status %d, content-type %q)",
			docURL, res.Record.Outcome, res.Record.Status, res.Record.ContentType)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("parse embeddable document: %w", err)
	}

	var records []pipeline.DownloadRecord
	for _, sel := range assetSelectors {
		doc.Find(sel.selector).Each(func(_ int, s *goquery.Selection) {
			ref, _ := s.Attr(sel.attr)
			rec, rewritten, ok := c.stageAsset(ctx, app, stagingDir, ref)
			if rewritten != "" {
				s.SetAttr(sel.attr, rewritten)
			}
			if ok {
				records = append(records, rec)
			}
		})
	}

	c.rewriteFragment(doc, app.ConfigPath)

	var out bytes.Buffer
	if err := html.Render(&out, doc.Get(0)); err != nil {
		return records, fmt.Errorf("render staged document: %w", err)
	}
	target := filepath.Join(stagingDir, pipeline.EntryPointName)
	if err := os.WriteFile(target, out.Bytes(), 0o600); err != nil {
		return records, fmt.Errorf("write entry point %s: %w", target, err)
	}
	return records, nil
}

// stageAsset downloads one referenced asset. It returns the record, the
// attribute value the document should carry after staging ("" when no
// rewrite is needed), and whether the reference produced a record at all.
func (c *Crawler) stageAsset(ctx context.Context, app pipeline.ResolvedApp, stagingDir, ref string) (pipeline.DownloadRecord, string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "#") {
		return pipeline.DownloadRecord{}, "", false
	}
	if u, err := url.Parse(ref); err == nil && (u.IsAbs() || u.Host != "") {
		// Cross-origin assets are not part of the application's own tree.
		c.logger.Debug("skipping absolute asset reference", zap.String("ref", ref))
		return pipeline.DownloadRecord{}, "", false
	}
	if c.cfg.Deny.Blocked(ref) {
		c.logger.Debug("skipping deny-listed asset", zap.String("ref", ref))
		return pipeline.DownloadRecord{}, "", false
	}

	rel, err := pipeline.RelPath(ref)
	if err != nil {
		c.logger.Warn("ignoring unusable asset reference", zap.String("ref", ref), zap.Error(err))
		return pipeline.DownloadRecord{}, "", false
	}

	res := c.fetcher.Fetch(ctx, pipeline.JoinRef(app.BaseURL, rel), "")
	rec := res.Record
	if !rec.OK() {
		return rec, "", true
	}

	target := filepath.Join(stagingDir, filepath.FromSlash(rel))
	if err := writeAsset(target, res.Body); err != nil {
		c.logger.Warn("failed to stage asset", zap.String("ref", ref), zap.Error(err))
		rec.Outcome = pipeline.OutcomeHTTPError
		return rec, "", true
	}
	rec.LocalPath = rel

	// Root-absolute references would break once the document is opened
	// from a local file root.
	rewritten := ""
	if strings.HasPrefix(ref, "/") {
		rewritten = rel
	}
	return rec, rewritten, true
}

// hashExpr matches the fragment-reading expression in any of its
// qualified forms, so the whole expression is replaced in one pass and a
// qualifier is never left dangling in front of the literal.
var hashExpr = regexp.MustCompile(`(?:window\.|document\.)?location\.hash`)

// rewriteFragment replaces the JavaScript expression reading the browser's
// location fragment with a literal naming the resolved configuration path.
// The staged copy is opened from a local path that has no fragment of its
// own.
func (c *Crawler) rewriteFragment(doc *goquery.Document, configPath string) {
	literal := fmt.Sprintf("%q", "#"+configPath)
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		text := s.Text()
		if !strings.Contains(text, "location.hash") {
			return
		}
		s.SetText(hashExpr.ReplaceAllLiteralString(text, literal))
	})
}

func writeAsset(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create asset dir for %s: %w", target, err)
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return fmt.Errorf("write asset %s: %w", target, err)
	}
	return nil
}
