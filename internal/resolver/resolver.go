// Package resolver turns catalog preview URLs into resolved application
// locations by following HTTP redirects.
package resolver

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/edupack/concord-stager/internal/pipeline"
)

// Config controls resolver behavior.
type Config struct {
	// EmbeddablePath is the final URL path that marks an entry as an
	// embeddable application. Defaults to pipeline.DefaultEmbeddablePath.
	EmbeddablePath string
	UserAgent      string
	Timeout        time.Duration
}

// HTTPResolver implements pipeline.Resolver with a redirect-following
// stdlib client. The final URL after all redirects decides whether the
// entry is embeddable.
type HTTPResolver struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New builds an HTTPResolver.
func New(cfg Config, logger *zap.Logger) *HTTPResolver {
	if cfg.EmbeddablePath == "" {
		cfg.EmbeddablePath = pipeline.DefaultEmbeddablePath
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPResolver{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newHTTPTransport(),
		},
		logger: logger,
	}
}

// Resolve issues one GET, lets the transport follow every redirect, and
// splits the final URL into base URL and configuration fragment. A final
// path other than the embeddable path filters the entry out without error.
func (r *HTTPResolver) Resolve(ctx context.Context, previewURL string) (pipeline.ResolvedApp, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, previewURL, nil)
	if err != nil {
		return pipeline.ResolvedApp{}, false, fmt.Errorf("build preview request: %w", err)
	}
	if r.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", r.cfg.UserAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return pipeline.ResolvedApp{}, false, fmt.Errorf("resolve preview url: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	final := resp.Request.URL
	if final.Path != r.cfg.EmbeddablePath {
		r.logger.Debug("preview url is not embeddable",
			zap.String("preview_url", previewURL),
			zap.String("resolved_path", final.Path),
		)
		return pipeline.ResolvedApp{}, false, nil
	}

	fragment := final.EscapedFragment()
	if fragment == "" {
		return pipeline.ResolvedApp{}, false, fmt.Errorf("resolved url %s carries no configuration fragment", final.Redacted())
	}

	app := pipeline.ResolvedApp{
		BaseURL:    final.Scheme + "://" + final.Host,
		ConfigPath: fragment,
	}
	return app, true, nil
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
