package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edupack/concord-stager/internal/app"
	"github.com/edupack/concord-stager/internal/catalog"
	"github.com/edupack/concord-stager/internal/config"
	"github.com/edupack/concord-stager/internal/logging"
)

var catalogPath string

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Run the pipeline over a catalog file",
	RunE:  runPack,
}

func init() {
	packCmd.Flags().StringVar(&catalogPath, "catalog", "", "path to the catalog JSON file (required)")
	_ = packCmd.MarkFlagRequired("catalog")
	rootCmd.AddCommand(packCmd)
}

func runPack(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	if cfg.Staging.Root == "" {
		tmp, err := os.MkdirTemp("", "concord-stager-")
		if err != nil {
			return fmt.Errorf("create staging root: %w", err)
		}
		cfg.Staging.Root = tmp
		defer func() {
			if err := os.RemoveAll(tmp); err != nil {
				logger.Warn("failed to clean staging root", zap.String("root", tmp), zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	entries, err := catalog.Load(catalogPath, logger.Named("catalog"))
	if err != nil {
		return err
	}
	logger.Info("catalog loaded",
		zap.String("path", catalogPath),
		zap.Int("entries", len(entries)),
	)

	if a.Server != nil {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		go func() {
			if err := a.Server.Serve(ctx, addr); err != nil {
				logger.Warn("status server stopped", zap.Error(err))
			}
		}()
	}

	report, runErr := a.Orchestrator.Run(ctx, entries)

	resultsPath := filepath.Join(cfg.Output.Dir, cfg.Output.ResultsFile)
	if err := writeReport(resultsPath, report); err != nil {
		logger.Error("failed to write run report", zap.Error(err))
	}

	logger.Info("run complete",
		zap.Int("packaged", len(report.Results)),
		zap.Int("filtered", report.Filtered),
		zap.Int("diagnostics", len(report.Diagnostics)),
		zap.String("results", resultsPath),
	)
	return runErr
}

func writeReport(path string, report any) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write run report %s: %w", path, err)
	}
	return nil
}
