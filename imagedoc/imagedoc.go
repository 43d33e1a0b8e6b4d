// Package imagedoc turns a standalone image file into a one-image document,
// optionally looking for tables in it.
package imagedoc

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/tsawler/docmark/format"
	"github.com/tsawler/docmark/model"
	"github.com/tsawler/docmark/parser"
	"github.com/tsawler/docmark/progress"
	"github.com/tsawler/docmark/tables"
)

// Parser reads raster image files.
type Parser struct {
	tables *tables.Engine
	method tables.Method
	logger *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithTables runs the table engine on every image with method m.
func WithTables(e *tables.Engine, m tables.Method) Option {
	return func(p *Parser) {
		p.tables = e
		if m != "" {
			p.method = m
		}
	}
}

// WithLogger sets the parser logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// New returns an image parser. Table extraction is off unless WithTables
// is given.
func New(opts ...Option) *Parser {
	p := &Parser{method: tables.Auto, logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (*Parser) Name() string { return "image" }

func (*Parser) Supports(path string) bool { return format.Detect(path) == format.Image }

// Parse reads the image, records its dimensions and emits it with a
// placeholder description for the enrichment stage to replace.
func (p *Parser) Parse(ctx context.Context, path string, sink progress.Sink) (*model.Document, error) {
	sink = progress.OrDiscard(sink)
	if err := format.Verify(path); err != nil {
		return nil, parser.Errorf(path, err, "failed to parse image")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, parser.Errorf(path, err, "failed to parse image")
	}
	cfg, kind, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, parser.Errorf(path, err, "failed to parse image")
	}

	name := filepath.Base(path)
	doc := model.NewDocument(format.Image.String())
	doc.Metadata["image_format"] = strings.ToUpper(strings.TrimPrefix(filepath.Ext(name), "."))
	doc.Metadata["width"] = cfg.Width
	doc.Metadata["height"] = cfg.Height

	sink.Emit(ctx, progress.Event{Stage: progress.StageParsing, Progress: 0.5, Message: "Processing image content"})
	doc.Images = append(doc.Images, model.ImageBlock{
		ID:       uuid.NewString(),
		Data:     data,
		Format:   kind,
		AltText:  model.PlaceholderAltPrefix + " " + name,
		Source:   name,
		Page:     1,
		Location: model.At(1, model.NewBBox(0, 0, float64(cfg.Width), float64(cfg.Height))),
	})

	if p.tables != nil {
		sink.Emit(ctx, progress.Event{Stage: progress.StageParsing, Progress: 0.7, Message: "Extracting tables from image"})
		found, err := p.tables.Extract(ctx, tables.Raster{Data: data, Page: 1, Name: name}, p.method)
		switch {
		case err != nil:
			p.logger.Warn("image.tables.failed", "path", path, "error", err)
			sink.Emit(ctx, progress.Event{Stage: progress.StageParsing, Progress: 0.9, Message: "Table extraction failed: " + err.Error()})
		case len(found) > 0:
			doc.Tables = append(doc.Tables, found...)
			sink.Emit(ctx, progress.Event{Stage: progress.StageParsing, Progress: 0.9, Message: fmt.Sprintf("Found %d tables in image", len(found))})
		}
	}

	sink.Emit(ctx, progress.Event{Stage: progress.StageParsing, Progress: 1, Message: "Image parsing completed"})
	return doc, nil
}
