// Package pdfdoc parses PDF files into the document model.
//
// Text comes from glyph geometry read with github.com/ledongthuc/pdf:
// glyphs are grouped into lines by baseline, split into fragments at wide
// gaps and classified by font. Embedded images and the document info
// dictionary come from pdfcpu. Tables are found per page by the table
// engine, falling back to a span alignment heuristic when the engine
// fails.
package pdfdoc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/tsawler/docmark/format"
	"github.com/tsawler/docmark/model"
	"github.com/tsawler/docmark/parser"
	"github.com/tsawler/docmark/progress"
	"github.com/tsawler/docmark/tables"
)

// Parser reads .pdf files.
type Parser struct {
	tables *tables.Engine
	method tables.Method
	logger *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithTables sets the table engine and the method run on every page.
func WithTables(e *tables.Engine, m tables.Method) Option {
	return func(p *Parser) {
		if e != nil {
			p.tables = e
		}
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

// New returns a PDF parser. Without WithTables it uses a rule based only
// engine in auto mode.
func New(opts ...Option) *Parser {
	p := &Parser{method: tables.Auto, logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	if p.tables == nil {
		p.tables = tables.NewEngine(tables.DefaultOptions(), tables.WithLogger(p.logger))
	}
	return p
}

func (*Parser) Name() string { return "pdf" }

func (*Parser) Supports(path string) bool { return format.Detect(path) == format.PDF }

// Parse extracts text blocks, images, tables and math page by page.
func (p *Parser) Parse(ctx context.Context, path string, sink progress.Sink) (*model.Document, error) {
	sink = progress.OrDiscard(sink)
	if err := format.Verify(path); err != nil {
		return nil, parser.Errorf(path, err, "failed to parse PDF")
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		if f != nil {
			f.Close()
		}
		return nil, parser.Errorf(path, err, "failed to parse PDF")
	}
	defer f.Close()

	total := r.NumPage()
	doc := model.NewDocument(format.PDF.String())
	doc.Metadata[model.MetaPages] = total

	extra, err := p.readAssets(path)
	if err != nil {
		p.logger.Warn("pdf.assets.failed", "path", path, "error", err)
	} else {
		doc.Metadata.SetString(model.MetaTitle, extra.title)
		doc.Metadata.SetString(model.MetaAuthor, extra.author)
		doc.Metadata.SetString(model.MetaSubject, extra.subject)
		doc.Metadata.SetString(model.MetaCreator, extra.creator)
	}

	for n := 1; n <= total; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sink.Emit(ctx, progress.Event{
			Stage:    progress.StageParsing,
			Progress: float64(n-1) / float64(total),
			Message:  fmt.Sprintf("Processing page %d of %d", n, total),
		})
		if err := p.parsePage(ctx, doc, r.Page(n), n, extra.images[n]); err != nil {
			return nil, parser.Errorf(path, err, "failed to parse PDF page %d", n)
		}
	}

	sink.Emit(ctx, progress.Event{Stage: progress.StageParsing, Progress: 1, Message: "PDF parsing completed"})
	return doc, nil
}

func (p *Parser) parsePage(ctx context.Context, doc *model.Document, page pdf.Page, n int, images []model.ImageBlock) error {
	content, err := pageContent(page)
	if err != nil {
		return err
	}

	lines := buildLines(content.Text)
	var (
		frags []model.Fragment
		texts []string
	)
	for _, l := range lines {
		b := classify(l)
		b.Location = model.At(n, l.BBox)
		doc.TextBlocks = append(doc.TextBlocks, b)
		frags = append(frags, l.Fragments...)
		texts = append(texts, l.Text)
	}

	raw := make([][]byte, 0, len(images))
	for _, img := range images {
		img.Index = len(doc.Images)
		doc.Images = append(doc.Images, img)
		raw = append(raw, img.Data)
	}

	src := tables.PDFPage{Number: n, Fragments: frags, Rulings: rulings(content.Rect), Images: raw}
	found, err := p.tables.Extract(ctx, src, p.method)
	if err != nil {
		p.logger.Warn("pdf.tables.fallback", "page", n, "error", err)
		found = spanTables(lines, n)
	}
	doc.Tables = append(doc.Tables, found...)

	doc.Math = append(doc.Math, extractMath(strings.Join(texts, "\n"), &model.Location{Page: n})...)
	return nil
}

// assets holds what pdfcpu contributes: the info dictionary and embedded
// images by page.
type assets struct {
	title, author, subject, creator string
	images                          map[int][]model.ImageBlock
}

func (p *Parser) readAssets(path string) (assets, error) {
	f, err := os.Open(path)
	if err != nil {
		return assets{}, err
	}
	defer f.Close()

	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	pctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return assets{}, fmt.Errorf("pdfcpu read: %w", err)
	}

	a := assets{
		title:   pctx.Title,
		author:  pctx.Author,
		subject: pctx.Subject,
		creator: pctx.Creator,
		images:  make(map[int][]model.ImageBlock),
	}
	for n := 1; n <= pctx.PageCount; n++ {
		imgs, err := pdfcpu.ExtractPageImages(pctx, n, false)
		if err != nil {
			p.logger.Warn("pdf.images.failed", "page", n, "error", err)
			continue
		}
		objNrs := make([]int, 0, len(imgs))
		for nr := range imgs {
			objNrs = append(objNrs, nr)
		}
		sort.Ints(objNrs)
		for _, nr := range objNrs {
			img := imgs[nr]
			data, err := io.ReadAll(img)
			if err != nil || len(data) == 0 {
				p.logger.Warn("pdf.image.unreadable", "page", n, "object", nr, "error", err)
				continue
			}
			a.images[n] = append(a.images[n], model.ImageBlock{
				ID:       uuid.NewString(),
				Data:     data,
				Format:   imageFormat(img.FileType, data),
				Source:   img.Name,
				Page:     n,
				Location: model.At(n, model.NewBBox(0, 0, float64(img.Width), float64(img.Height))),
			})
		}
	}
	return a, nil
}

// imageFormat prefers the magic bytes over pdfcpu's file type.
func imageFormat(fileType string, data []byte) string {
	if t := format.ImageType(data); t != "" {
		return t
	}
	switch ft := strings.ToLower(fileType); ft {
	case "jpg":
		return "jpeg"
	case "tif":
		return "tiff"
	default:
		return ft
	}
}
