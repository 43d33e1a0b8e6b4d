// Command docmark converts a document to markdown.
//
//	docmark [-config docmark.yaml] [-id doc-123] [-no-ai] [-method auto] <file>
//	docmark -formats
//
// Progress goes to stderr, the artifact path (or the markdown itself when
// no markdown root is configured) to stdout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tsawler/docmark/config"
	"github.com/tsawler/docmark/pipeline"
	"github.com/tsawler/docmark/tables"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is fine; a broken one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "docmark: load .env: %v\n", err)
		return 1
	}

	var (
		configPath = flag.String("config", os.Getenv("DOCMARK_CONFIG"), "path to a YAML config file")
		docID      = flag.String("id", "", "document id (random when empty)")
		noAI       = flag.Bool("no-ai", false, "skip AI image enrichment")
		method     = flag.String("method", "", "table method: auto, ocr, ai_vision or rule_based")
		formats    = flag.Bool("formats", false, "print supported formats as JSON and exit")
		quiet      = flag.Bool("q", false, "do not print progress")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: docmark [flags] <file>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *formats {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(pipeline.SupportedFormats()); err != nil {
			fmt.Fprintf(os.Stderr, "docmark: %v\n", err)
			return 1
		}
		return 0
	}
	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "docmark: %v\n", err)
		return 1
	}
	if *method != "" {
		if _, err := tables.ParseMethod(*method); err != nil {
			fmt.Fprintf(os.Stderr, "docmark: -method: %v\n", err)
			return 2
		}
		cfg.TableMethod = *method
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.FromConfig(cfg, logger)
	if err != nil {
		logger.Error("pipeline setup failed", "error", err)
		return 1
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			logger.Warn("pipeline close", "error", cerr)
		}
	}()

	start := time.Now()
	r := p.Process(ctx, pipeline.Request{
		Path:       flag.Arg(0),
		DocumentID: *docID,
		EnableAI:   cfg.AIEnabled && !*noAI,
	})
	for ev := range r.Events() {
		if !*quiet {
			fmt.Fprintf(os.Stderr, "[%3.0f%%] %-19s %s\n", ev.Progress*100, ev.Stage, ev.Message)
		}
	}
	res, err := r.Wait()
	if err != nil {
		logger.Error("conversion failed", "error", err, "error_type", pipeline.ErrorType(err))
		return 1
	}
	logger.Debug("conversion finished", "document_id", res.DocumentID, "duration_ms", time.Since(start).Milliseconds())

	if res.ArtifactPath != "" {
		fmt.Println(res.ArtifactPath)
	} else {
		fmt.Println(res.Markdown)
	}
	return 0
}
