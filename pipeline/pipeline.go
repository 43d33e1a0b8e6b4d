// Package pipeline converts one file into markdown. A run moves through
// initialization, parsing, AI enrichment and rendering to completion; any
// failure ends it in the error state. Every stage boundary emits a progress
// event to the caller and to external listeners.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tsawler/docmark/enrich"
	"github.com/tsawler/docmark/markdown"
	"github.com/tsawler/docmark/model"
	"github.com/tsawler/docmark/parser"
	"github.com/tsawler/docmark/progress"
	"github.com/tsawler/docmark/tables"
)

// Enricher adds image descriptions to a parsed document.
// *enrich.Stage implements it.
type Enricher interface {
	Run(ctx context.Context, doc *model.Document, sink progress.Sink) (model.Enrichments, error)
}

// Request is one conversion.
type Request struct {
	Path string
	// DocumentID keys the artifact and external progress. A random id is
	// used when empty.
	DocumentID string
	EnableAI   bool
}

// Result is a finished conversion.
type Result struct {
	DocumentID   string
	Parser       string
	Document     *model.Document
	Enrichments  model.Enrichments
	Markdown     string
	ArtifactPath string
}

// Pipeline runs conversions. It is safe for concurrent use when its
// collaborators are.
type Pipeline struct {
	selector   *parser.Selector
	enricher   Enricher
	store      ArtifactStore
	publisher  *progress.Publisher
	bufferSize int
	closers    []io.Closer
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithParsers replaces the parser priority list.
func WithParsers(parsers ...parser.Parser) Option {
	return func(p *Pipeline) { p.selector = parser.NewSelector(parsers...) }
}

// WithEnricher sets the AI enrichment stage. Without one, AI processing
// is always skipped.
func WithEnricher(e Enricher) Option {
	return func(p *Pipeline) { p.enricher = e }
}

// WithStore sets where artifacts are saved. Without one nothing is
// persisted.
func WithStore(s ArtifactStore) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithPublisher forwards every event to external listeners.
func WithPublisher(pub *progress.Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithBufferSize bounds the event stream returned by Process.
func WithBufferSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.bufferSize = n
		}
	}
}

// WithCloser registers a resource released by Close.
func WithCloser(c io.Closer) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.closers = append(p.closers, c)
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a pipeline with the default parsers and no enrichment.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{bufferSize: 64, logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	if p.selector == nil {
		p.selector = parser.NewSelector(DefaultParsers(ParserOptions{Logger: p.logger})...)
	}
	return p
}

// Close releases the publisher and registered resources.
func (p *Pipeline) Close() error {
	var errs []error
	if p.publisher != nil {
		errs = append(errs, p.publisher.Close())
	}
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Convert runs one conversion, sending events to sink and the publisher.
// On failure an error event is emitted before the error is returned.
func (p *Pipeline) Convert(ctx context.Context, req Request, sink progress.Sink) (*Result, error) {
	id := req.DocumentID
	if id == "" {
		id = uuid.NewString()
	}
	sinks := []progress.Sink{sink}
	if p.publisher != nil {
		sinks = append(sinks, p.publisher.For(id))
	}
	out := progress.Monotonic(progress.Multi(sinks...))
	emit := func(stage string, pct float64, msg string, details map[string]any) {
		out.Emit(ctx, progress.Event{Stage: stage, Progress: pct, Message: msg, Details: details})
	}
	log := p.logger.With("document_id", id, "path", req.Path)

	res, err := p.convert(ctx, req, id, emit, out)
	if err != nil {
		log.Error("pipeline.failed", "error", err, "error_type", ErrorType(err))
		// Monotonic raises the progress to the last emitted value.
		emit(progress.StageError, 0, "Processing failed: "+err.Error(), map[string]any{"error_type": ErrorType(err)})
		return nil, err
	}
	log.Info("pipeline.completed", "parser", res.Parser, "markdown_path", res.ArtifactPath, "output_length", len(res.Markdown))
	out.Emit(ctx, progress.Event{
		Stage:    progress.StageCompletion,
		Progress: 1,
		Message:  "Document processing completed",
		Details: map[string]any{
			"output_length":  len(res.Markdown),
			"total_elements": res.Document.ElementCount(),
			"markdown_path":  res.ArtifactPath,
		},
		Result: res.Markdown,
	})
	return res, nil
}

func (p *Pipeline) convert(ctx context.Context, req Request, id string, emit func(string, float64, string, map[string]any), out progress.Sink) (*Result, error) {
	emit(progress.StageInitialization, 0, "Starting processing of "+filepath.Base(req.Path), map[string]any{"file_path": req.Path})

	prs, err := p.selector.Select(req.Path)
	if err != nil {
		return nil, err
	}
	emit(progress.StageParsing, 0.1, "Parsing document structure", map[string]any{"parser": prs.Name()})

	doc, err := prs.Parse(ctx, req.Path, progress.Scale(out, progress.StageParsing, 0.1, 0.4))
	if err != nil {
		return nil, err
	}
	emit(progress.StageParsing, 0.4, "Document parsing completed", map[string]any{
		"text_blocks": len(doc.TextBlocks),
		"images":      len(doc.Images),
		"tables":      len(doc.Tables),
		"math_blocks": len(doc.Math),
	})

	var enrichments model.Enrichments
	if req.EnableAI && p.enricher != nil && doc.NeedsEnrichment() {
		emit(progress.StageAIProcessing, 0.5, "Starting AI enhancement", map[string]any{"ai_enabled": true})
		enrichments, err = p.enricher.Run(ctx, doc, progress.Scale(out, progress.StageAIProcessing, 0.5, 0.8))
		if err != nil {
			return nil, err
		}
		emit(progress.StageAIProcessing, 0.8, "AI enhancement completed", map[string]any{"ai_enabled": true, "enriched_images": len(enrichments)})
	} else {
		emit(progress.StageAIProcessing, 0.8, "AI processing skipped", map[string]any{"ai_enabled": false})
	}

	emit(progress.StageMarkdownGeneration, 0.9, "Generating Markdown output", nil)
	md := markdown.Render(doc, enrichments)

	res := &Result{DocumentID: id, Parser: prs.Name(), Document: doc, Enrichments: enrichments, Markdown: md}
	if p.store != nil {
		if res.ArtifactPath, err = p.store.Save(ctx, id, req.Path, md); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Run is a conversion in progress.
type Run struct {
	stream *progress.Stream
	done   chan struct{}
	result *Result
	err    error
}

// Process starts Convert in the background. Events are delivered through
// a bounded stream that drops events the caller does not read in time;
// an unread stream never stalls the conversion.
func (p *Pipeline) Process(ctx context.Context, req Request) *Run {
	r := &Run{stream: progress.NewStream(p.bufferSize, p.logger), done: make(chan struct{})}
	go func() {
		defer close(r.done)
		defer r.stream.Close()
		r.result, r.err = p.Convert(ctx, req, r.stream)
	}()
	return r
}

// Events returns the run's events. The channel closes when the run ends.
func (r *Run) Events() <-chan progress.Event { return r.stream.Events() }

// Wait blocks until the run ends.
func (r *Run) Wait() (*Result, error) {
	<-r.done
	return r.result, r.err
}

// ErrorType names an error for the error event's error_type detail.
func ErrorType(err error) string {
	var (
		pe *parser.ParseError
		xe *tables.ExtractionError
		ee *enrich.EnrichmentError
		de *progress.DeliveryError
	)
	switch {
	case errors.As(err, &pe):
		return "ParseError"
	case errors.As(err, &xe):
		return "ExtractionError"
	case errors.As(err, &ee):
		return "EnrichmentError"
	case errors.As(err, &de):
		return "ProgressDeliveryError"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "DeadlineExceeded"
	}
	name := strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
