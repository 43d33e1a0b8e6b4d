package pipeline

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tsawler/docmark/config"
	"github.com/tsawler/docmark/enrich"
	"github.com/tsawler/docmark/ocr"
	"github.com/tsawler/docmark/progress"
	"github.com/tsawler/docmark/tables"
	"github.com/tsawler/docmark/vision"
)

// FromConfig wires a pipeline from cfg: OCR engine, vision client, table
// engine, enrichment stage, file store and progress publisher. The vision
// client is only created when an API key is configured. Close the
// pipeline to release them.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []Option{WithLogger(logger), WithBufferSize(cfg.Progress.BufferSize)}

	engine, err := OCREngine(cfg.OCR, logger)
	if err != nil {
		return nil, err
	}
	if engine != nil {
		opts = append(opts, WithCloser(engine))
	}

	var client *vision.Client
	if cfg.AIEnabled && cfg.OpenAI.APIKey != "" {
		client, err = vision.New(vision.Config{
			APIKey:    cfg.OpenAI.APIKey,
			BaseURL:   cfg.OpenAI.BaseURL,
			Model:     cfg.OpenAI.Model,
			MaxTokens: cfg.OpenAI.MaxTokens,
			Timeout:   cfg.RequestTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithCloser(client))
	} else if cfg.AIEnabled {
		logger.Warn("vision.disabled", "reason", "no OpenAI API key configured")
	}

	topts := tables.DefaultOptions()
	topts.AIVisionFallback = cfg.AIVisionFallback
	topts.Timeout = cfg.RequestTimeout
	engineOpts := []tables.EngineOption{tables.WithLogger(logger)}
	if engine != nil {
		engineOpts = append(engineOpts, tables.WithOCR(engine))
	}
	if client != nil {
		engineOpts = append(engineOpts, tables.WithVision(client))
	}
	tableEngine := tables.NewEngine(topts, engineOpts...)

	opts = append(opts, WithParsers(DefaultParsers(ParserOptions{
		Tables:      tableEngine,
		Method:      cfg.Method(),
		ImageTables: cfg.ImageParserTables,
		Logger:      logger,
	})...))

	if cfg.AIEnabled {
		var annotator enrich.Annotator
		if client != nil {
			annotator = client
		}
		stageOpts := []enrich.Option{enrich.WithTables(tableEngine), enrich.WithLogger(logger)}
		if engine != nil {
			stageOpts = append(stageOpts, enrich.WithOCR(engine))
		}
		opts = append(opts, WithEnricher(enrich.New(enrich.Options{
			BatchSize:     cfg.BatchSize,
			MaxRetries:    cfg.MaxRetries,
			BaseDelay:     cfg.RetryBaseDelay,
			Timeout:       cfg.RequestTimeout,
			OCRFallback:   cfg.OCRFallbackEnabled,
			ExtractTables: cfg.TableExtractionEnabled,
			TableMethod:   cfg.Method(),
		}, annotator, stageOpts...)))
	}

	if cfg.MarkdownRoot != "" {
		opts = append(opts, WithStore(NewFileStore(cfg.MarkdownRoot)))
	}
	opts = append(opts, WithPublisher(Publisher(cfg.Progress, logger)))

	return New(opts...), nil
}

// OCREngine builds the configured OCR engine. "none" yields nil.
func OCREngine(cfg config.OCRConfig, logger *slog.Logger) (ocr.Engine, error) {
	switch cfg.Engine {
	case config.OCRNone:
		return nil, nil
	case config.OCRGosseract:
		c, err := ocr.NewClient(cfg.Languages...)
		if err != nil {
			return nil, fmt.Errorf("gosseract engine: %w", err)
		}
		return c, nil
	case config.OCRTesseract, "":
		return ocr.NewTesseract(ocr.TesseractConfig{
			Command:     cfg.Command,
			Languages:   strings.Join(cfg.Languages, "+"),
			TessdataDir: cfg.TessdataDir,
		}, nil, logger), nil
	}
	return nil, fmt.Errorf("unsupported OCR engine %q", cfg.Engine)
}

// Publisher builds the progress publisher: Redis broadcast when an address
// is set, webhooks as the fallback.
func Publisher(cfg config.ProgressConfig, logger *slog.Logger) *progress.Publisher {
	opts := []progress.PublisherOption{progress.WithLogger(logger)}
	if cfg.PublishTimeout > 0 {
		opts = append(opts, progress.WithTimeout(cfg.PublishTimeout))
	}
	if cfg.RedisAddr != "" {
		opts = append(opts, progress.WithBroadcaster(
			progress.NewRedisBroadcaster(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.Channel)))
	}
	if len(cfg.Webhooks) > 0 {
		opts = append(opts, progress.WithDeliverer(
			progress.NewWebhook(cfg.Webhooks, progress.WithWebhookLogger(logger))))
	}
	return progress.NewPublisher(opts...)
}
