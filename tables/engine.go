package tables

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tsawler/docmark/model"
	"github.com/tsawler/docmark/ocr"
)

// Method selects an extraction strategy.
type Method string

const (
	RuleBased Method = "rule_based"
	OCR       Method = "ocr"
	AIVision  Method = "ai_vision"
	Auto      Method = "auto"
)

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case RuleBased, OCR, AIVision, Auto:
		return m, nil
	case "":
		return Auto, nil
	}
	return "", fmt.Errorf("unknown table extraction method %q", s)
}

var (
	// ErrUnsupportedSource is returned when a method cannot read a source
	// kind, such as rule based extraction on a raster.
	ErrUnsupportedSource = errors.New("source not supported by method")
	// ErrNoEngine is returned when a method's backing service is not
	// configured.
	ErrNoEngine = errors.New("extraction backend not configured")
)

// ExtractionError wraps a failed extraction method.
type ExtractionError struct {
	Method Method
	Cause  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("table extraction (%s): %v", e.Method, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// Source is something tables can be extracted from: a PDFPage or a Raster.
type Source interface {
	PageNumber() int
}

// PDFPage is one page's positioned text, rulings and embedded images.
type PDFPage struct {
	Number    int
	Fragments []model.Fragment
	Rulings   []model.Ruling
	Images    [][]byte
}

func (p PDFPage) PageNumber() int { return p.Number }

// Raster is an encoded image. Page is the page the image came from, 0 when
// unknown.
type Raster struct {
	Data []byte
	Page int
	Name string
}

func (r Raster) PageNumber() int { return r.Page }

// Transcriber turns an image into a markdown table or "No table found".
type Transcriber interface {
	TranscribeTable(ctx context.Context, img []byte, mimeType string) (string, error)
}

// Engine runs table extraction methods.
type Engine struct {
	opts     Options
	detector *GeometricDetector
	ocr      ocr.Engine
	vision   Transcriber
	logger   *slog.Logger
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithOCR enables the OCR method.
func WithOCR(e ocr.Engine) EngineOption {
	return func(en *Engine) { en.ocr = e }
}

// WithVision enables the AI vision method.
func WithVision(t Transcriber) EngineOption {
	return func(en *Engine) { en.vision = t }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(en *Engine) {
		if l != nil {
			en.logger = l
		}
	}
}

// NewEngine creates an engine. Methods whose backend is missing fail with
// ErrNoEngine.
func NewEngine(opts Options, options ...EngineOption) *Engine {
	e := &Engine{
		opts:     opts,
		detector: NewGeometricDetector(opts.Detector),
		logger:   slog.Default(),
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Extract runs method against src. Auto tries rule based then OCR, and the
// vision model only when Options.AIVisionFallback is set. Auto fails only
// when every method it tried failed.
func (e *Engine) Extract(ctx context.Context, src Source, method Method) ([]model.TableBlock, error) {
	var (
		tables []model.TableBlock
		err    error
	)
	if method == Auto {
		tables, err = e.auto(ctx, src)
	} else {
		tables, err = e.run(ctx, src, method)
	}
	if err != nil {
		return nil, err
	}
	for i := range tables {
		if tables[i].Caption == "" {
			tables[i].Caption = caption(i+1, src.PageNumber())
		}
	}
	return tables, nil
}

func (e *Engine) auto(ctx context.Context, src Source) ([]model.TableBlock, error) {
	chain := []Method{RuleBased, OCR}
	if e.opts.AIVisionFallback {
		chain = append(chain, AIVision)
	}

	var errs []error
	for _, m := range chain {
		tables, err := e.run(ctx, src, m)
		if err != nil {
			e.logger.Debug("tables.method.failed", "method", m, "page", src.PageNumber(), "error", err)
			errs = append(errs, err)
			continue
		}
		if len(tables) > 0 {
			return tables, nil
		}
	}
	if len(errs) == len(chain) {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}

func (e *Engine) run(ctx context.Context, src Source, m Method) ([]model.TableBlock, error) {
	var (
		tables []model.TableBlock
		err    error
	)
	switch m {
	case RuleBased:
		tables, err = e.ruleBased(src)
	case OCR:
		tables, err = e.ocrTables(ctx, src)
	case AIVision:
		tables, err = e.visionTables(ctx, src)
	default:
		err = fmt.Errorf("unknown method %q", m)
	}
	if err != nil {
		e.logger.Warn("tables.method.failed", "method", m, "page", src.PageNumber(), "error", err)
		return nil, &ExtractionError{Method: m, Cause: err}
	}
	return tables, nil
}

func (e *Engine) ruleBased(src Source) ([]model.TableBlock, error) {
	page, ok := src.(PDFPage)
	if !ok {
		return nil, ErrUnsupportedSource
	}
	var out []model.TableBlock
	for _, d := range e.detector.Detect(page.Fragments, page.Rulings) {
		t := toTable(d.cells)
		t.Location = model.At(page.Number, d.bbox)
		t.Stamp(string(RuleBased), d.confidence)
		out = append(out, t)
	}
	return out, nil
}

// images returns the encoded rasters a source offers to image methods.
func images(src Source) [][]byte {
	switch s := src.(type) {
	case Raster:
		return [][]byte{s.Data}
	case PDFPage:
		return s.Images
	}
	return nil
}

func caption(n, page int) string {
	if page > 0 {
		return fmt.Sprintf("Table %d from page %d", n, page)
	}
	return fmt.Sprintf("Table %d", n)
}
