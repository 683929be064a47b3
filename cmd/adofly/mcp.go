package main

import (
	"context"
	"flag"
	"io"

	"github.com/harsh7800/adofly/internal/mcptools"
)

// runMCP serves MCP tools on stdio. Logs go to stderr because stdout carries
// the protocol.
func runMCP(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configDir := fs.String("config", ".", "directory containing adofly.yml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configDir, false)
	if err != nil {
		return err
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

	svc := mcptools.NewAdService(pipeline.Execute, mcptools.WithStore(st), mcptools.WithLogger(logger))
	return mcptools.RunStdio(ctx, mcptools.NewServer(svc))
}
