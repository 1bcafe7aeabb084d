package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edupack/concord-stager/internal/progress"
)

// Options controls a catalog run.
type Options struct {
	// Concurrency bounds how many entries are processed at once
	// (default 4). Work within one entry stays sequential apart from the
	// document/manifest split.
	Concurrency int
}

// Orchestrator drives the resolve, stage, package flow over a catalog.
type Orchestrator struct {
	opts      Options
	resolver  Resolver
	crawler   DocumentCrawler
	walker    ManifestWalker
	stager    Stager
	packager  Packager
	store     ResultStore
	publisher Publisher
	clock     Clock
	hub       *progress.Hub
	logger    *zap.Logger
}

// NewOrchestrator wires the run components together. store, publisher, and
// hub may be nil when the corresponding concern is disabled.
func NewOrchestrator(
	opts Options,
	resolver Resolver,
	crawler DocumentCrawler,
	walker ManifestWalker,
	stager Stager,
	packager Packager,
	store ResultStore,
	publisher Publisher,
	clock Clock,
	hub *progress.Hub,
	logger *zap.Logger,
) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		opts:      opts,
		resolver:  resolver,
		crawler:   crawler,
		walker:    walker,
		stager:    stager,
		packager:  packager,
		store:     store,
		publisher: publisher,
		clock:     clock,
		hub:       hub,
		logger:    logger,
	}
}

// Run processes every catalog entry through a bounded worker pool and
// returns the aggregate report. Canceling ctx stops scheduling new
// entries; in-flight entries finish. Per-entry failures never abort the
// run.
func (o *Orchestrator) Run(ctx context.Context, entries []CatalogEntry) (RunReport, error) {
	runID := progress.UUIDToBytes(uuid.New())
	runStart := o.clock.Now()
	o.emit(progress.Event{RunID: runID, TS: runStart, Stage: progress.StageRunStart})

	var (
		mu     sync.Mutex
		report RunReport
	)

	work := make(chan CatalogEntry)
	var wg sync.WaitGroup
	for i := 0; i < o.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range work {
				results, diags, filtered := o.processEntry(ctx, runID, entry)
				mu.Lock()
				report.Results = append(report.Results, results...)
				report.Diagnostics = append(report.Diagnostics, diags...)
				if filtered {
					report.Filtered++
				}
				mu.Unlock()
			}
		}()
	}

dispatch:
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			break dispatch
		case work <- entry:
		}
	}
	close(work)
	wg.Wait()

	o.emit(progress.Event{
		RunID: runID,
		TS:    o.clock.Now(),
		Stage: progress.StageRunDone,
		Dur:   o.clock.Now().Sub(runStart),
	})

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("catalog run interrupted: %w", err)
	}
	return report, nil
}

// processEntry runs one entry end to end. filtered reports that the entry
// was not an embeddable application; results and diags carry everything
// else.
func (o *Orchestrator) processEntry(ctx context.Context, runID [16]byte, entry CatalogEntry) (results []PackageResult, diags []Diagnostic, filtered bool) {
	start := o.clock.Now()
	o.emit(progress.Event{RunID: runID, TS: start, Stage: progress.StageEntryStart, EntryID: entry.ID, URL: entry.PreviewURL})

	fail := func(detail string, err error) ([]PackageResult, []Diagnostic, bool) {
		o.logger.Warn("entry failed",
			zap.String("entry_id", entry.ID),
			zap.String("detail", detail),
			zap.Error(err),
		)
		o.emit(progress.Event{
			RunID: runID, TS: o.clock.Now(), Stage: progress.StageEntryFailed,
			EntryID: entry.ID, Note: detail,
		})
		return nil, append(diags, Diagnostic{
			EntryID: entry.ID,
			Kind:    DiagEntryFailed,
			Detail:  fmt.Sprintf("%s: %v", detail, err),
		}), false
	}

	app, embeddable, err := o.resolver.Resolve(ctx, entry.PreviewURL)
	if err != nil {
		return fail("resolve preview url", err)
	}
	if !embeddable {
		o.logger.Debug("entry filtered out", zap.String("entry_id", entry.ID))
		o.emit(progress.Event{RunID: runID, TS: o.clock.Now(), Stage: progress.StageEntryFiltered, EntryID: entry.ID})
		return nil, nil, true
	}

	stagingDir, err := o.stager.Allocate(entry.ID)
	if err != nil {
		return fail("allocate staging dir", err)
	}

	var (
		docRecords []DownloadRecord
		summary    WalkSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var crawlErr error
		docRecords, crawlErr = o.crawler.Crawl(gctx, app, stagingDir)
		return crawlErr
	})
	g.Go(func() error {
		var walkErr error
		summary, walkErr = o.walker.Walk(gctx, app, stagingDir)
		return walkErr
	})
	if err := g.Wait(); err != nil {
		return fail("stage application", err)
	}

	records := append(docRecords, summary.Records...)
	for _, rec := range records {
		o.emit(progress.Event{
			RunID: runID, TS: o.clock.Now(), Stage: progress.StageAssetDone,
			EntryID: entry.ID, URL: rec.URL, Bytes: rec.Bytes,
			StatusClass: progress.ClassifyStatus(rec.Status),
		})
		if !rec.OK() {
			diags = append(diags, Diagnostic{
				EntryID: entry.ID,
				Kind:    DiagAssetFailed,
				Detail:  fmt.Sprintf("%s: %s (status %d)", rec.URL, rec.Outcome, rec.Status),
			})
		}
	}
	if summary.RedirectNoted {
		diags = append(diags, Diagnostic{
			EntryID: entry.ID,
			Kind:    DiagRedirectUnfollowed,
			Detail:  "configuration carries a redirect that was not followed",
		})
	}
	if summary.UsedPlaceholder {
		diags = append(diags, Diagnostic{
			EntryID: entry.ID,
			Kind:    DiagMetadataPlaceholder,
			Detail:  "title or description substituted with a placeholder",
		})
	}

	archivePath, err := o.packager.Package(stagingDir)
	if err != nil {
		return fail("package staging dir", err)
	}

	result := PackageResult{
		SourceID:    SourceID(entry.ID, app.ConfigPath),
		Title:       summary.Title,
		Description: summary.Description,
		License:     LicenseCode(entry),
		ArchivePath: archivePath,
	}

	if o.store != nil {
		if err := o.store.SaveResult(ctx, result); err != nil {
			o.logger.Warn("save package result failed", zap.String("source_id", result.SourceID), zap.Error(err))
		}
	}
	if o.publisher != nil {
		if err := o.publisher.Publish(ctx, result); err != nil {
			o.logger.Warn("publish package result failed", zap.String("source_id", result.SourceID), zap.Error(err))
		}
	}

	o.emit(progress.Event{
		RunID: runID, TS: o.clock.Now(), Stage: progress.StageEntryPackaged,
		EntryID: entry.ID, Dur: o.clock.Now().Sub(start),
	})
	return append(results, result), diags, false
}

func (o *Orchestrator) emit(evt progress.Event) {
	if o.hub == nil {
		return
	}
	o.hub.Emit(evt)
}
