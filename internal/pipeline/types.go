// Package pipeline defines core types shared across the staging subsystems.
package pipeline

// DefaultEmbeddablePath is the URL path the content host serves embeddable
// simulation instances under. A preview URL that resolves anywhere else is
// not an embeddable application.
const DefaultEmbeddablePath = "/embeddable.html"

// EntryPointName is the filename the downstream publisher expects as the
// staged application's entry point. It is not a free choice.
const EntryPointName = "index.html"

// Placeholder metadata substituted when the configuration JSON carries a
// redirect instead of inline title/about values. Following the redirect is
// not implemented; the placeholders make that visible downstream.
const (
	PlaceholderTitle       = "Title unavailable (configuration requires redirect)"
	PlaceholderDescription = "Description unavailable (configuration requires redirect)"
)

// LicenseUnknown is reported when the catalog feed carries no usable
// license code for an entry.
const LicenseUnknown = "Unknown"

// Outcome classifies a single download attempt.
type Outcome string

// Download outcomes recorded for diagnostics.
const (
	OutcomeOK               Outcome = "ok"
	OutcomeHTTPError        Outcome = "http_error"
	OutcomeWrongContentType Outcome = "wrong_content_type"
)

// LicenseInfo is the optional license metadata attached to a catalog entry.
type LicenseInfo struct {
	Code string `json:"code"`
}

// CatalogEntry is one record supplied by the external catalog collaborator.
// Entries are immutable once read.
type CatalogEntry struct {
	ID          string       `json:"id"`
	PreviewURL  string       `json:"preview_url"`
	LicenseInfo *LicenseInfo `json:"license_info,omitempty"`
}

// ResolvedApp identifies one embeddable application instance. BaseURL is
// scheme://host of the final resolved URL; ConfigPath is the URL fragment
// naming the configuration JSON, preserved verbatim. Never mutated after
// resolution.
type ResolvedApp struct {
	BaseURL    string
	ConfigPath string
}

// DownloadRecord captures the result of one fetch, successful or not. It is
// diagnostic data and never carries an error value.
type DownloadRecord struct {
	URL         string  `json:"url"`
	LocalPath   string  `json:"local_path,omitempty"`
	Outcome     Outcome `json:"outcome"`
	Status      int     `json:"status,omitempty"`
	ContentType string  `json:"content_type,omitempty"`
	Bytes       int64   `json:"bytes,omitempty"`
}

// OK reports whether the download succeeded.
func (r DownloadRecord) OK() bool {
	return r.Outcome == OutcomeOK
}

// FetchResult pairs a DownloadRecord with the fetched body. Body is nil
// unless the record outcome is ok.
type FetchResult struct {
	Record DownloadRecord
	Body   []byte
}

// PackageResult is the sole artifact handed to the channel-building
// collaborator for one successfully packaged entry.
type PackageResult struct {
	SourceID    string `json:"source_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	License     string `json:"license"`
	ArchivePath string `json:"archive_path"`
}

// DiagnosticKind partitions run diagnostics.
type DiagnosticKind string

// Diagnostic kinds, ordered roughly by severity.
const (
	DiagEntryFailed         DiagnosticKind = "entry_failed"
	DiagAssetFailed         DiagnosticKind = "asset_failed"
	DiagRedirectUnfollowed  DiagnosticKind = "redirect_unfollowed"
	DiagMetadataPlaceholder DiagnosticKind = "metadata_placeholder"
)

// Diagnostic records a per-entry or per-asset condition that did not stop
// the run. Every asset-local failure surfaces here; there is no silent loss.
type Diagnostic struct {
	EntryID string         `json:"entry_id"`
	Kind    DiagnosticKind `json:"kind"`
	Detail  string         `json:"detail"`
}

// RunReport aggregates everything a completed run produced.
type RunReport struct {
	Results     []PackageResult `json:"results"`
	Diagnostics []Diagnostic    `json:"diagnostics"`
	Filtered    int             `json:"filtered"`
}

// WalkSummary is returned by the manifest walker for one entry.
type WalkSummary struct {
	Title           string
	Description     string
	RedirectNoted   bool
	UsedPlaceholder bool
	Records         []DownloadRecord
}
