// Package enrich adds descriptions to extracted images and looks for
// tables inside them.
//
// Images are processed in fixed-size batches. Images in one batch run
// concurrently, batches run one after another, so at most BatchSize
// images are in flight. Per-image failures never stop the run: an image
// whose description fails falls back to OCR text and then to a fixed
// placeholder, so every visited image ends with alt text.
//
// The stage never modifies the images themselves. Results are returned as
// model.Enrichments keyed by image ID. Tables found inside images are
// appended to the document once each batch has finished.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tsawler/docmark/model"
	"github.com/tsawler/docmark/ocr"
	"github.com/tsawler/docmark/progress"
	"github.com/tsawler/docmark/tables"
	"github.com/tsawler/docmark/vision"
)

const (
	// OCRPrefix starts alt text recovered by OCR.
	OCRPrefix = "OCR Extracted Text: "
	// FailedAlt is the alt text of an image nothing could describe.
	FailedAlt = "Image (description failed)"
)

// Enrichment steps, used in EnrichmentError.
const (
	StepDescribe = "describe"
	StepOCR      = "ocr"
	StepTables   = "tables"
)

// ErrNoAnnotator is the describe failure when no annotator is configured.
var ErrNoAnnotator = errors.New("no image annotator configured")

// Substage names carried by the stage's progress events.
const (
	EventBatchProcessed = "ai_image_batch_processed"
	EventMathProcessed  = "ai_math_processing"
)

// Annotator produces a structured description of an image.
// *vision.Client implements it.
type Annotator interface {
	Annotate(ctx context.Context, img []byte, mimeType string, ic vision.ImageContext) (model.Annotation, error)
}

// Describer gives a plain description of an image. When the annotator
// also implements it, images whose annotation carries no usable text are
// described a second time in free form.
type Describer interface {
	Describe(ctx context.Context, img []byte, mimeType string) (string, error)
}

// EnrichmentError records a failed step for one image. It is logged and
// never returned from Run.
type EnrichmentError struct {
	ImageID string
	Step    string
	Cause   error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrich image %s (%s): %v", e.ImageID, e.Step, e.Cause)
}

func (e *EnrichmentError) Unwrap() error { return e.Cause }

// Options configures a Stage.
type Options struct {
	BatchSize   int
	MaxRetries  int
	BaseDelay   time.Duration
	Timeout     time.Duration
	OCRFallback bool
	// ExtractTables runs the table engine over every image.
	ExtractTables bool
	TableMethod   tables.Method
}

// DefaultOptions returns the stage defaults.
func DefaultOptions() Options {
	return Options{
		BatchSize:     3,
		MaxRetries:    3,
		BaseDelay:     time.Second,
		Timeout:       30 * time.Second,
		OCRFallback:   true,
		ExtractTables: true,
		TableMethod:   tables.Auto,
	}
}

// Stage is the enrichment stage.
type Stage struct {
	opts      Options
	annotator Annotator
	ocr       ocr.Engine
	tables    *tables.Engine
	retry     Retry
	logger    *slog.Logger
}

// Option customizes a Stage.
type Option func(*Stage)

// WithOCR sets the engine used for the OCR fallback.
func WithOCR(e ocr.Engine) Option {
	return func(s *Stage) { s.ocr = e }
}

// WithTables sets the engine used to find tables inside images.
func WithTables(e *tables.Engine) Option {
	return func(s *Stage) { s.tables = e }
}

// WithSleep replaces the retry wait, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Stage) { s.retry.Sleep = sleep }
}

// WithLogger sets the stage logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Stage) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a stage. A nil annotator sends every image straight to the
// fallbacks.
func New(opts Options, annotator Annotator, options ...Option) *Stage {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.TableMethod == "" {
		opts.TableMethod = tables.Auto
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	s := &Stage{
		opts:      opts,
		annotator: annotator,
		retry:     Retry{MaxRetries: opts.MaxRetries, BaseDelay: opts.BaseDelay},
		logger:    slog.Default(),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

type imageResult struct {
	id         string
	enrichment *model.ImageEnrichment
	tables     []model.TableBlock
}

// Run enriches every image of doc and retags text math as latex. Tables
// found in images are appended to doc.Tables. The only error returned is
// the context's, checked between batches; the enrichments gathered so far
// are returned with it.
func (s *Stage) Run(ctx context.Context, doc *model.Document, sink progress.Sink) (model.Enrichments, error) {
	sink = progress.OrDiscard(sink)
	out := make(model.Enrichments, len(doc.Images))
	total := len(doc.Images)

	for start := 0; start < total; start += s.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		batch := doc.Images[start:min(start+s.opts.BatchSize, total)]
		results := make([]imageResult, len(batch))

		var g errgroup.Group
		g.SetLimit(s.opts.BatchSize)
		for i, img := range batch {
			i, img := i, img
			g.Go(func() error {
				results[i] = s.image(ctx, img)
				return nil
			})
		}
		_ = g.Wait()

		for _, r := range results {
			if r.enrichment != nil {
				out[r.id] = *r.enrichment
			}
			doc.Tables = append(doc.Tables, r.tables...)
		}

		done := start + len(batch)
		sink.Emit(ctx, progress.Event{
			Stage:    EventBatchProcessed,
			Progress: float64(done) / float64(total),
			Message:  fmt.Sprintf("Batch of %d images processed (%d/%d total images)", len(batch), done, total),
			Details:  map[string]any{"processed": done, "total": total},
		})
	}

	if n := retagMath(doc); len(doc.Math) > 0 {
		sink.Emit(ctx, progress.Event{
			Stage:    EventMathProcessed,
			Progress: 1,
			Message:  fmt.Sprintf("Processed %d math blocks", len(doc.Math)),
			Details:  map[string]any{"retagged": n},
		})
	}
	return out, nil
}

// image runs every step for one image. It owns img for its lifetime.
func (s *Stage) image(ctx context.Context, img model.ImageBlock) imageResult {
	r := imageResult{id: img.ID}
	if !img.HasDescription() {
		e := s.describe(ctx, img)
		r.enrichment = &e
	}
	if s.opts.ExtractTables && s.tables != nil {
		r.tables = s.findTables(ctx, img)
	}
	return r
}

func (s *Stage) describe(ctx context.Context, img model.ImageBlock) model.ImageEnrichment {
	err := ErrNoAnnotator
	if s.annotator != nil {
		var ann model.Annotation
		retry := s.retry
		retry.OnRetry = func(attempt int, delay time.Duration, err error) {
			s.logger.Warn("enrich.describe.retry", "image_id", img.ID, "attempt", attempt, "delay", delay, "error", err)
		}
		err = retry.Do(ctx, func(ctx context.Context) error {
			a, err := s.annotator.Annotate(ctx, img.Data, img.MIMEType(), imageContext(img))
			if err != nil {
				return err
			}
			if a == nil {
				return errors.New("empty annotation")
			}
			ann = a
			return nil
		})
		if err == nil {
			alt := ann.AltText()
			if alt == model.NoDescriptionAlt {
				alt = s.plainDescription(ctx, img, alt)
			}
			return model.ImageEnrichment{AltText: alt, Annotation: ann, Origin: model.OriginModel}
		}
	}
	s.logger.Warn("enrich.describe.failed", "error", &EnrichmentError{ImageID: img.ID, Step: StepDescribe, Cause: err})

	if s.opts.OCRFallback && s.ocr != nil {
		text, err := s.ocrText(ctx, img.Data)
		if err == nil {
			return model.ImageEnrichment{AltText: OCRPrefix + text, Origin: model.OriginOCR}
		}
		s.logger.Warn("enrich.ocr.failed", "error", &EnrichmentError{ImageID: img.ID, Step: StepOCR, Cause: err})
	}
	return model.ImageEnrichment{AltText: FailedAlt, Origin: model.OriginPlaceholder}
}

// plainDescription asks a Describer for free text, keeping fallback when
// it is unavailable, fails or answers nothing.
func (s *Stage) plainDescription(ctx context.Context, img model.ImageBlock, fallback string) string {
	d, ok := s.annotator.(Describer)
	if !ok {
		return fallback
	}
	text, err := d.Describe(ctx, img.Data, img.MIMEType())
	if err != nil {
		s.logger.Warn("enrich.describe.plain.failed", "error", &EnrichmentError{ImageID: img.ID, Step: StepDescribe, Cause: err})
		return fallback
	}
	if text = strings.TrimSpace(text); text == "" {
		return fallback
	}
	return text
}

func (s *Stage) ocrText(ctx context.Context, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timeout)
	defer cancel()
	text, err := s.ocr.Text(ctx, data)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("no text extracted from image")
	}
	return text, nil
}

// findTables extracts tables from img. They keep the image's page.
func (s *Stage) findTables(ctx context.Context, img model.ImageBlock) []model.TableBlock {
	found, err := s.tables.Extract(ctx, tables.Raster{Data: img.Data, Page: img.Page, Name: img.Source}, s.opts.TableMethod)
	if err != nil {
		s.logger.Warn("enrich.tables.failed", "error", &EnrichmentError{ImageID: img.ID, Step: StepTables, Cause: err})
		return nil
	}
	for i := range found {
		if found[i].Location == nil {
			found[i].Location = &model.Location{}
		}
		found[i].Location.Page = img.Page
	}
	return found
}

func imageContext(img model.ImageBlock) vision.ImageContext {
	ic := vision.ImageContext{
		ID:       img.ID,
		Filename: img.Source,
		Page:     img.Page,
		Section:  img.Section,
		Caption:  img.Caption,
	}
	if ic.Filename == "" {
		ic.Filename = "embedded_image"
	}
	if img.Location != nil {
		ic.Location = img.Location.BBox
	}
	return ic
}

// retagMath marks text equations as latex and returns how many changed.
func retagMath(doc *model.Document) int {
	n := 0
	for i := range doc.Math {
		if doc.Math[i].Format == model.MathText {
			doc.Math[i].Format = model.MathLatex
			n++
		}
	}
	return n
}
