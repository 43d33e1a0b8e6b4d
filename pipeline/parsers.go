package pipeline

import (
	"log/slog"

	"github.com/tsawler/docmark/docx"
	"github.com/tsawler/docmark/format"
	"github.com/tsawler/docmark/imagedoc"
	"github.com/tsawler/docmark/parser"
	"github.com/tsawler/docmark/pdfdoc"
	"github.com/tsawler/docmark/pptx"
	"github.com/tsawler/docmark/tables"
	"github.com/tsawler/docmark/textdoc"
	"github.com/tsawler/docmark/xlsx"
)

// ParserOptions configures the default parsers.
type ParserOptions struct {
	// Tables is the engine used by the PDF parser, and by the image parser
	// when ImageTables is set. Nil gives the PDF parser a rule based and
	// OCR-less engine.
	Tables      *tables.Engine
	Method      tables.Method
	ImageTables bool
	Logger      *slog.Logger
}

// DefaultParsers returns the parsers in selection priority: PDF, DOCX,
// XLSX, PPTX, text, image.
func DefaultParsers(opts ParserOptions) []parser.Parser {
	pdfOpts := []pdfdoc.Option{pdfdoc.WithLogger(opts.Logger)}
	imageOpts := []imagedoc.Option{imagedoc.WithLogger(opts.Logger)}
	if opts.Tables != nil {
		pdfOpts = append(pdfOpts, pdfdoc.WithTables(opts.Tables, opts.Method))
		if opts.ImageTables {
			imageOpts = append(imageOpts, imagedoc.WithTables(opts.Tables, opts.Method))
		}
	}
	return []parser.Parser{
		pdfdoc.New(pdfOpts...),
		docx.New(),
		xlsx.New(),
		pptx.New(),
		textdoc.New(),
		imagedoc.New(imageOpts...),
	}
}

// Formats describes what the pipeline accepts and produces.
type Formats struct {
	Extensions   []string        `json:"supported_extensions"`
	Capabilities map[string]bool `json:"capabilities"`
}

// SupportedFormats lists the accepted extensions, sorted, and the
// pipeline's capabilities.
func SupportedFormats() Formats {
	return Formats{
		Extensions: format.Supported(),
		Capabilities: map[string]bool{
			"text_extraction":  true,
			"image_extraction": true,
			"table_extraction": true,
			"math_extraction":  true,
			"ai_enhancement":   true,
			"markdown_output":  true,
		},
	}
}
