// Package collyfetcher implements pipeline.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/edupack/concord-stager/internal/pipeline"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher performs single GETs through a Colly collector and classifies
// the outcome. It never surfaces an error; the walkers stay resilient to
// partial catalogs because every failure is a record, not a panic path.
// Safe for concurrent use: clones share the base collector's backend, so
// all per-request settings are fixed once at construction, and response
// state is handed back over a channel.
type Fetcher struct {
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.WithTransport(newHTTPTransport())
	// The backend HTTP client is shared by every clone. Its timeout must
	// be set exactly once, here, so concurrent fetches never mutate it.
	c.SetRequestTimeout(cfg.Timeout)
	return &Fetcher{
		baseCollector: c,
		logger:        logger,
	}
}

// visitOutcome carries everything the collector callbacks capture. It is
// owned by the visit goroutine until it crosses the done channel.
type visitOutcome struct {
	status      int
	contentType string
	body        []byte
	err         error
}

// Fetch executes a single HTTP GET. The outcome is ok only when the status
// indicates success and, if expectType is non-empty, the response
// Content-Type starts with it. A canceled context yields an http_error
// record; the in-flight request is abandoned and its late callbacks write
// only state this call will never read.
func (f *Fetcher) Fetch(ctx context.Context, url string, expectType string) pipeline.FetchResult {
	collector := f.baseCollector.Clone()

	done := make(chan visitOutcome, 1)
	go func() {
		var out visitOutcome
		collector.OnResponse(func(r *colly.Response) {
			out.status = r.StatusCode
			out.contentType = r.Headers.Get("Content-Type")
			out.body = append([]byte(nil), r.Body...)
		})
		collector.OnError(func(r *colly.Response, err error) {
			if r != nil {
				out.status = r.StatusCode
				out.contentType = r.Headers.Get("Content-Type")
			}
			out.err = err
		})
		if err := collector.Visit(url); err != nil && out.err == nil {
			out.err = err
		}
		done <- out
	}()

	var out visitOutcome
	select {
	case <-ctx.Done():
		f.logger.Debug("fetch canceled", zap.String("url", url), zap.Error(ctx.Err()))
		return pipeline.FetchResult{Record: pipeline.DownloadRecord{
			URL:     url,
			Outcome: pipeline.OutcomeHTTPError,
		}}
	case out = <-done:
	}

	record := pipeline.DownloadRecord{
		URL:         url,
		Status:      out.status,
		ContentType: out.contentType,
		Bytes:       int64(len(out.body)),
	}

	switch {
	case out.err != nil || out.status < 200 || out.status >= 300:
		record.Outcome = pipeline.OutcomeHTTPError
		if out.err != nil {
			f.logger.Debug("fetch failed", zap.String("url", url), zap.Error(out.err))
		}
		return pipeline.FetchResult{Record: record}
	case expectType != "" && !matchesType(out.contentType, expectType):
		record.Outcome = pipeline.OutcomeWrongContentType
		return pipeline.FetchResult{Record: record}
	default:
		record.Outcome = pipeline.OutcomeOK
		return pipeline.FetchResult{Record: record, Body: out.body}
	}
}

// matchesType compares the response media type against the expected
// prefix, ignoring charset parameters.
func matchesType(contentType, expectType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.ToLower(contentType))
	}
	return strings.HasPrefix(mediaType, strings.ToLower(expectType))
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
