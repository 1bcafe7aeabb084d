// Package app wires configuration into a ready-to-run stager.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/edupack/concord-stager/internal/api"
	"github.com/edupack/concord-stager/internal/archive"
	"github.com/edupack/concord-stager/internal/clock/system"
	"github.com/edupack/concord-stager/internal/config"
	"github.com/edupack/concord-stager/internal/document"
	collyfetcher "github.com/edupack/concord-stager/internal/fetcher/colly"
	"github.com/edupack/concord-stager/internal/manifest"
	"github.com/edupack/concord-stager/internal/pipeline"
	"github.com/edupack/concord-stager/internal/progress"
	"github.com/edupack/concord-stager/internal/progress/sinks"
	"github.com/edupack/concord-stager/internal/publisher"
	"github.com/edupack/concord-stager/internal/resolver"
	"github.com/edupack/concord-stager/internal/staging"
	"github.com/edupack/concord-stager/internal/store"
)

// App holds every long-lived component of a stager run.
type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Orchestrator *pipeline.Orchestrator
	Hub          *progress.Hub
	Server       *api.Server

	store     pipeline.ResultStore
	publisher pipeline.Publisher
}

// New builds the full component graph from configuration. Staging roots
// left empty fall back to a fresh temporary directory supplied by the
// caller through cfg before this call.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.HTTPTimeout(),
	}, logger.Named("fetcher"))

	res := resolver.New(resolver.Config{
		EmbeddablePath: cfg.Crawl.EmbeddablePath,
		UserAgent:      cfg.HTTP.UserAgent,
		Timeout:        cfg.HTTPTimeout(),
	}, logger.Named("resolver"))

	crawler := document.New(document.Config{
		DocumentPath: cfg.Crawl.EmbeddablePath,
		Deny:         pipeline.NewDenylist(cfg.Crawl.DenyAssets),
	}, fetcher, logger.Named("document"))

	walker := manifest.New(fetcher, logger.Named("manifest"))

	area, err := staging.New(cfg.Staging.Root)
	if err != nil {
		return nil, fmt.Errorf("build staging area: %w", err)
	}

	packager, err := archive.New(cfg.Output.Dir, logger.Named("archive"))
	if err != nil {
		return nil, fmt.Errorf("build packager: %w", err)
	}

	resultStore, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pub, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		_ = resultStore.Close()
		return nil, err
	}

	memSink := sinks.NewMemorySink()
	hubSinks := []progress.Sink{
		sinks.NewLogSink(logger.Named("progress")),
		memSink,
	}
	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Warn("prometheus sink unavailable", zap.Error(err))
	} else {
		hubSinks = append(hubSinks, promSink)
	}
	hub := progress.NewHub(progress.Config{Logger: logger.Named("hub")}, hubSinks...)

	orch := pipeline.NewOrchestrator(
		pipeline.Options{Concurrency: cfg.Crawl.Concurrency},
		res,
		crawler,
		walker,
		area,
		packager,
		resultStore,
		pub,
		system.New(),
		hub,
		logger.Named("pipeline"),
	)

	a := &App{
		Config:       cfg,
		Logger:       logger,
		Orchestrator: orch,
		Hub:          hub,
		store:        resultStore,
		publisher:    pub,
	}
	if cfg.Server.Enabled {
		a.Server = api.NewServer(memSink, logger.Named("api"))
	}
	return a, nil
}

// Close flushes progress and releases store and publisher resources.
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	if err := a.Hub.Close(ctx); err != nil {
		firstErr = err
	}
	if err := a.publisher.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	_ = a.Logger.Sync()
	return firstErr
}

func buildStore(ctx context.Context, cfg config.Config) (pipeline.ResultStore, error) {
	switch cfg.Store.Provider {
	case "memory":
		return store.NewMemory(), nil
	case "postgres":
		pg, err := store.NewPostgres(ctx, store.PostgresConfig{
			DSN:      cfg.Store.Postgres.DSN,
			Table:    cfg.Store.Postgres.Table,
			MaxConns: cfg.Store.Postgres.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("build postgres store: %w", err)
		}
		return pg, nil
	default:
		return store.NewNoOp(), nil
	}
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (pipeline.Publisher, error) {
	switch cfg.Publisher.Provider {
	case "memory":
		return publisher.NewMemory(), nil
	case "pubsub":
		ps, err := publisher.NewPubSub(ctx, cfg.Publisher.ProjectID, cfg.Publisher.TopicID, logger.Named("pubsub"))
		if err != nil {
			return nil, fmt.Errorf("build pubsub publisher: %w", err)
		}
		return ps, nil
	default:
		return publisher.NewNoOp(), nil
	}
}
