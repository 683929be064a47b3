package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/harsh7800/adofly/internal/creative"
	"github.com/harsh7800/adofly/internal/export"
	"github.com/harsh7800/adofly/internal/orchestrator"
	"github.com/harsh7800/adofly/internal/progress"
)

func runGenerate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configDir := fs.String("config", ".", "directory containing adofly.yml")
	requestPath := fs.String("request", "", "path to an ad request JSON file")
	format := fs.String("format", "json", "output format: json or markdown")
	outPath := fs.String("out", "", "write the creative to this file instead of stdout")
	quiet := fs.Bool("quiet", false, "do not print progress")
	verbose := fs.Bool("verbose", false, "write structured logs to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *requestPath == "" {
		return fmt.Errorf("usage: adofly generate --request <file.json> [--format json|markdown] [--out file]")
	}
	f, err := export.ParseFormat(*format)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(*requestPath)
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	req, err := creative.ParseRequest(data)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*configDir, false)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, io.Discard)
	if *verbose {
		logger = newLogger(cfg, stderr)
	}
	pipeline, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}

	steps := progress.Initial()
	c, err := pipeline.Execute(ctx, req, func(ev orchestrator.Event) {
		next := progress.Apply(steps, ev)
		if !*quiet {
			for i := range next {
				if next[i].Status != steps[i].Status {
					fmt.Fprintln(stderr, progress.Format(next[i]))
				}
			}
		}
		steps = next
	})
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	w := stdout
	if *outPath != "" {
		file, err := os.Create(*outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		w = file
	}
	return export.Write(w, f, export.NewCreativeExport(req, *c, time.Now()))
}
