package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"time"

	"github.com/harsh7800/adofly/internal/mcptools"
	"github.com/harsh7800/adofly/internal/runs"
	"github.com/harsh7800/adofly/internal/server"
)

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configDir := fs.String("config", ".", "directory containing adofly.yml")
	addr := fs.String("addr", "", "listen address (overrides server.addr)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configDir, true)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	logger := newLogger(cfg, stderr)

	pipeline, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}
	st, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := runs.NewRegistry(
		runs.WithTTL(cfg.Runs.TTL),
		runs.WithLogger(logger),
		runs.WithFinishHook(server.PersistFinished(st, logger)),
	)
	go registry.Janitor(ctx, time.Minute)

	opts := []server.Option{server.WithLogger(logger)}
	if cfg.MCP.HTTP {
		svc := mcptools.NewAdService(pipeline.Execute, mcptools.WithStore(st), mcptools.WithLogger(logger))
		opts = append(opts, server.WithMCPHandler(mcptools.HTTPHandler(mcptools.NewServer(svc))))
	}
	srv := server.New(pipeline.Execute, registry, st, server.NewAuth(cfg.Auth), opts...)

	if _, err := srv.Start(cfg.Server.Addr); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
		return err
	}
	return nil
}
