// Package docmark converts documents (PDF, DOCX, XLSX, PPTX, text and
// images) into markdown, optionally describing images with a vision model.
//
// Basic usage:
//
//	md, err := docmark.Open("report.docx").Markdown(ctx)
//	if err != nil {
//	    // handle error
//	}
//
// With AI descriptions and OCR:
//
//	client, _ := vision.New(vision.Config{APIKey: key}, nil)
//	md, err := docmark.Open("slides.pptx").
//	    WithAI(client).
//	    WithOCR(engine).
//	    WithTableMethod(tables.OCR).
//	    Markdown(ctx)
//
// For services, the pipeline package runs conversions with progress
// publishing and artifact storage.
package docmark

import (
	"context"
	"log/slog"

	"github.com/tsawler/docmark/config"
	"github.com/tsawler/docmark/enrich"
	"github.com/tsawler/docmark/model"
	"github.com/tsawler/docmark/ocr"
	"github.com/tsawler/docmark/parser"
	"github.com/tsawler/docmark/pipeline"
	"github.com/tsawler/docmark/progress"
	"github.com/tsawler/docmark/tables"
)

// Converter is a fluent, immutable conversion builder. Every With method
// returns a copy.
type Converter struct {
	path    string
	options convertOptions
}

// Open returns a Converter for the file at path. Nothing is read until a
// terminal operation such as Markdown is called.
func Open(path string) *Converter {
	return &Converter{path: path, options: defaultOptions()}
}

func (c *Converter) clone() *Converter {
	cp := *c
	return &cp
}

// WithAI describes images with a. When a also transcribes tables (as
// *vision.Client does) it serves the ai_vision table method; the auto
// method only falls back to it after WithVisionFallback.
func (c *Converter) WithAI(a enrich.Annotator) *Converter {
	n := c.clone()
	n.options.annotator = a
	return n
}

// WithVisionFallback lets the auto table method try the vision model
// after rule based detection and OCR both found nothing.
func (c *Converter) WithVisionFallback() *Converter {
	n := c.clone()
	n.options.visionFallback = true
	return n
}

// WithOCR sets the OCR engine used for table detection and as the image
// description fallback.
func (c *Converter) WithOCR(e ocr.Engine) *Converter {
	n := c.clone()
	n.options.ocr = e
	return n
}

// WithTableMethod selects how tables are found in PDFs and images.
func (c *Converter) WithTableMethod(m tables.Method) *Converter {
	n := c.clone()
	n.options.method = m
	n.options.enrich.TableMethod = m
	return n
}

// WithConfig applies the tuning values of cfg: batch size, retries,
// timeouts, fallbacks and table method. Collaborators are left alone.
func (c *Converter) WithConfig(cfg *config.Config) *Converter {
	n := c.clone()
	n.options = n.options.fromConfig(cfg)
	return n
}

// WithID sets the document id reported in the result.
func (c *Converter) WithID(id string) *Converter {
	n := c.clone()
	n.options.id = id
	return n
}

// WithProgress receives the conversion's progress events.
func (c *Converter) WithProgress(s progress.Sink) *Converter {
	n := c.clone()
	n.options.sink = s
	return n
}

// WithLogger sets the logger.
func (c *Converter) WithLogger(l *slog.Logger) *Converter {
	n := c.clone()
	n.options.logger = l
	return n
}

// Document parses the file without enrichment or rendering.
func (c *Converter) Document(ctx context.Context) (*model.Document, error) {
	p, err := parser.NewSelector(c.parsers()...).Select(c.path)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, c.path, c.options.sink)
}

// Markdown converts the file and returns the markdown.
func (c *Converter) Markdown(ctx context.Context) (string, error) {
	res, err := c.Convert(ctx)
	if err != nil {
		return "", err
	}
	return res.Markdown, nil
}

// Convert runs the full conversion. Images are enriched when an annotator
// or an OCR engine is set.
func (c *Converter) Convert(ctx context.Context) (*pipeline.Result, error) {
	o := c.options
	opts := []pipeline.Option{pipeline.WithParsers(c.parsers()...), pipeline.WithLogger(o.logger)}
	if o.enrichmentEnabled() {
		stageOpts := []enrich.Option{enrich.WithTables(c.tableEngine()), enrich.WithLogger(o.logger)}
		if o.ocr != nil {
			stageOpts = append(stageOpts, enrich.WithOCR(o.ocr))
		}
		opts = append(opts, pipeline.WithEnricher(enrich.New(o.enrich, o.annotator, stageOpts...)))
	}
	return pipeline.New(opts...).Convert(ctx, pipeline.Request{
		Path:       c.path,
		DocumentID: o.id,
		EnableAI:   o.enrichmentEnabled(),
	}, o.sink)
}

func (c *Converter) parsers() []parser.Parser {
	return pipeline.DefaultParsers(pipeline.ParserOptions{
		Tables:      c.tableEngine(),
		Method:      c.options.method,
		ImageTables: c.options.imageTable,
		Logger:      c.options.logger,
	})
}

func (c *Converter) tableEngine() *tables.Engine {
	o := c.options
	topts := tables.DefaultOptions()
	topts.Timeout = o.enrich.Timeout
	topts.AIVisionFallback = o.visionFallback
	engineOpts := []tables.EngineOption{tables.WithLogger(o.logger)}
	if o.ocr != nil {
		engineOpts = append(engineOpts, tables.WithOCR(o.ocr))
	}
	if t, ok := o.annotator.(tables.Transcriber); ok {
		engineOpts = append(engineOpts, tables.WithVision(t))
	}
	return tables.NewEngine(topts, engineOpts...)
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil. It is intended for use in scripts
// or tests where error handling would be cumbersome.
//
// Example:
//
//	md := docmark.Must(docmark.Open("notes.md").Markdown(ctx))
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}
