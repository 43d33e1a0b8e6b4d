package docmark

import (
	"log/slog"

	"github.com/tsawler/docmark/config"
	"github.com/tsawler/docmark/enrich"
	"github.com/tsawler/docmark/ocr"
	"github.com/tsawler/docmark/progress"
	"github.com/tsawler/docmark/tables"
)

// convertOptions holds configuration for a conversion.
type convertOptions struct {
	// Collaborators
	annotator enrich.Annotator
	ocr       ocr.Engine
	sink      progress.Sink
	logger    *slog.Logger

	// Tuning
	method         tables.Method
	enrich         enrich.Options
	id             string
	imageTable     bool
	visionFallback bool
}

// defaultOptions returns the default conversion options: no AI, no OCR,
// automatic table detection.
func defaultOptions() convertOptions {
	return convertOptions{
		method: tables.Auto,
		enrich: enrich.DefaultOptions(),
	}
}

// fromConfig copies the tuning values of cfg.
func (o convertOptions) fromConfig(cfg *config.Config) convertOptions {
	o.method = cfg.Method()
	o.imageTable = cfg.ImageParserTables
	o.visionFallback = cfg.AIVisionFallback
	o.enrich = enrich.Options{
		BatchSize:     cfg.BatchSize,
		MaxRetries:    cfg.MaxRetries,
		BaseDelay:     cfg.RetryBaseDelay,
		Timeout:       cfg.RequestTimeout,
		OCRFallback:   cfg.OCRFallbackEnabled,
		ExtractTables: cfg.TableExtractionEnabled,
		TableMethod:   cfg.Method(),
	}
	return o
}

// enrichmentEnabled reports whether images can be described at all.
func (o convertOptions) enrichmentEnabled() bool {
	return o.annotator != nil || o.ocr != nil
}
