package pipeline

import (
	"context"
	"time"
)

// Resolver turns a preview URL into a ResolvedApp by following redirects.
// embeddable is false when the final URL is not an embeddable application
// path; that is a filtering decision, not an error. A returned error is
// entry-fatal (network/DNS failure).
type Resolver interface {
	Resolve(ctx context.Context, previewURL string) (app ResolvedApp, embeddable bool, err error)
}

// Fetcher performs a single HTTP GET with optional content-type validation.
// expectType, when non-empty, is a prefix the response Content-Type must
// match for the outcome to be ok. Fetch never returns an error; all failure
// modes are encoded in the DownloadRecord.
type Fetcher interface {
	Fetch(ctx context.Context, url string, expectType string) FetchResult
}

// DocumentCrawler stages the embeddable HTML document and its static
// assets. The returned records include every asset attempt; an error means
// the document itself could not be staged and the entry cannot proceed.
type DocumentCrawler interface {
	Crawl(ctx context.Context, app ResolvedApp, stagingDir string) ([]DownloadRecord, error)
}

// ManifestWalker stages the root configuration JSON and its one level of
// referenced assets. An error means the mandatory root fetch failed, which
// is entry-fatal; referenced-asset failures appear only in the summary.
type ManifestWalker interface {
	Walk(ctx context.Context, app ResolvedApp, stagingDir string) (WalkSummary, error)
}

// Stager allocates fresh, collision-free staging directories under a
// run-scoped root. There are no merge or reuse semantics.
type Stager interface {
	Allocate(entryID string) (string, error)
}

// Packager converts a fully staged directory into a deterministic archive
// and returns the archive path.
type Packager interface {
	Package(stagingDir string) (string, error)
}

// ResultStore persists PackageResults for re-run bookkeeping.
type ResultStore interface {
	SaveResult(ctx context.Context, result PackageResult) error
	Close() error
}

// Publisher notifies the channel-building collaborator of a finished
// package.
type Publisher interface {
	Publish(ctx context.Context, result PackageResult) error
	Close() error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
