package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/harsh7800/adofly/internal/config"
	"github.com/harsh7800/adofly/internal/logging"
	"github.com/harsh7800/adofly/internal/model"
	"github.com/harsh7800/adofly/internal/orchestrator"
	"github.com/harsh7800/adofly/internal/store"
)

// loadConfig reads the config file in dir, overlays the environment and
// validates the result. Commands that serve no HTTP API pass needAuth false.
func loadConfig(dir string, needAuth bool) (*config.Config, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if !needAuth {
		cfg.Auth.Disabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return logging.New(w, cfg.Logging.Level, cfg.Logging.Format)
}

func newPipeline(cfg *config.Config, logger *slog.Logger) (*orchestrator.Pipeline, error) {
	m, err := model.New(cfg.Model, logger)
	if err != nil {
		return nil, err
	}
	return orchestrator.NewPipeline(m,
		orchestrator.WithConcurrentStages(cfg.Pipeline.Concurrent),
		orchestrator.WithStageTimeout(cfg.Pipeline.StageTimeout),
		orchestrator.WithLogger(logger),
	), nil
}

// openStore returns the configured creative store and a func that releases it.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (store.Store, func(), error) {
	switch cfg.Driver {
	case "postgres":
		s, err := store.OpenPostgres(ctx, cfg.DSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warn("close store", slog.Any("error", err))
			}
		}, nil
	case "memory", "":
		return store.NewMemStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
