// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/istat-engine/internal/docstore"
	"github.com/pdiddy/istat-engine/internal/report"
	"github.com/pdiddy/istat-engine/internal/sdmx"
	"github.com/pdiddy/istat-engine/internal/secrets"
	"github.com/pdiddy/istat-engine/pkg/types"
)

// app holds the collaborators shared by the stage subcommands.
type app struct {
	cfg      types.Config
	logger   *slog.Logger
	metrics  *report.MetricsReporter
	reporter report.Reporter
	store    docstore.Store
	client   *sdmx.Client
}

// loadConfig reads the merged configuration and fills MinIO credentials
// from .secrets/ when neither the config file nor the environment set them.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	secrets.ApplyMinio(&cfg.Store.Minio, loadedSecrets)
	return cfg, nil
}

func newLogger(cfg types.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q: use text or json", cfg.Format)
	}
}

func newStore(cfg types.StoreConfig) (docstore.Store, error) {
	switch cfg.Backend {
	case types.StoreFilesystem, "":
		return docstore.NewDirStore(cfg.Root), nil
	case types.StoreMinio:
		return docstore.NewMinioStore(cfg.Minio)
	default:
		return nil, fmt.Errorf("unsupported store backend %q: use fs or minio", cfg.Backend)
	}
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	store, err := newStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: report.NewMetricsReporter(),
		store:   store,
	}
	a.reporter = report.Multi{report.NewLogReporter(logger), a.metrics}
	a.client = sdmx.NewClient(cfg.SDMX, a.reporter)
	return a, nil
}

// close writes the metrics textfile when one is configured.
func (a *app) close() error {
	if a.cfg.Metrics.Textfile == "" {
		return nil
	}
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// withApp builds the shared collaborators, runs fn, and flushes metrics
// even when fn fails.
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		runErr := fn(cmd, a, args)
		return errors.Join(runErr, a.close())
	}
}

// forEachDataset runs fn once per dataset id. A failing dataset is logged
// and counted; the remaining ids still run.
func forEachDataset(ctx context.Context, a *app, ids []string, fn func(ctx context.Context, id string) error) error {
	var failed int
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, id); err != nil {
			a.logger.Error("dataset failed", slog.String("dataset", id), slog.String("error", err.Error()))
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d dataset(s) failed", failed)
	}
	return nil
}
