package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tsawler/docmark/config"
	"github.com/tsawler/docmark/enrich"
	"github.com/tsawler/docmark/model"
	"github.com/tsawler/docmark/parser"
	"github.com/tsawler/docmark/progress"
	"github.com/tsawler/docmark/tables"
)

type recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorder) Emit(_ context.Context, ev progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) last() progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// fakeEnricher describes every image as alt.
type fakeEnricher struct {
	alt   string
	err   error
	calls atomic.Int32
}

func (f *fakeEnricher) Run(ctx context.Context, doc *model.Document, sink progress.Sink) (model.Enrichments, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := model.Enrichments{}
	for _, img := range doc.Images {
		out[img.ID] = model.ImageEnrichment{AltText: f.alt, Origin: model.OriginModel}
	}
	sink.Emit(ctx, progress.Event{Stage: enrich.EventBatchProcessed, Progress: 1, Message: "done"})
	return out, nil
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func checkMonotonic(t *testing.T, events []progress.Event) {
	t.Helper()
	prev := 0.0
	for i, ev := range events {
		if ev.Progress < prev || ev.Progress > 1 {
			t.Errorf("event %d (%s) progress %v after %v", i, ev.Stage, ev.Progress, prev)
		}
		prev = ev.Progress
	}
}

func TestConvert_TextDocument(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("# Title\nThe paragraph\n"))
	root := t.TempDir()
	p := New(WithStore(NewFileStore(root)))
	rec := &recorder{}

	res, err := p.Convert(context.Background(), Request{Path: path, DocumentID: "doc-1"}, rec)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	doc := res.Document
	if len(doc.TextBlocks) != 2 {
		t.Fatalf("got %d text blocks, want 2", len(doc.TextBlocks))
	}
	if b := doc.TextBlocks[0]; b.Kind != model.KindHeading || b.Level != 1 || b.Content != "Title" {
		t.Errorf("block 0 = %+v, want level 1 heading", b)
	}
	if b := doc.TextBlocks[1]; b.Kind != model.KindParagraph {
		t.Errorf("block 1 = %+v, want paragraph", b)
	}
	if !strings.HasSuffix(res.Markdown, "# Title\n\nThe paragraph") {
		t.Errorf("Markdown = %q", res.Markdown)
	}
	if res.Parser != "text" {
		t.Errorf("Parser = %q, want text", res.Parser)
	}

	want := filepath.Join(root, "doc-1", "notes.md")
	if res.ArtifactPath != want {
		t.Errorf("ArtifactPath = %q, want %q", res.ArtifactPath, want)
	}
	saved, err := os.ReadFile(want)
	if err != nil || string(saved) != res.Markdown {
		t.Errorf("saved artifact = %q, %v", saved, err)
	}

	checkMonotonic(t, rec.events)
	first := rec.events[0]
	if first.Stage != progress.StageInitialization || first.Progress != 0 || first.Details["file_path"] != path {
		t.Errorf("first event = %+v", first)
	}
	last := rec.last()
	if last.Stage != progress.StageCompletion || last.Progress != 1 || last.Result != res.Markdown {
		t.Errorf("last event = %+v", last)
	}
	if last.Details["markdown_path"] != want || last.Details["total_elements"] != 2 {
		t.Errorf("completion details = %v", last.Details)
	}

	var skipped bool
	for _, ev := range rec.events {
		if ev.Stage == progress.StageAIProcessing {
			skipped = ev.Details["ai_enabled"] == false && ev.Progress == 0.8
		}
	}
	if !skipped {
		t.Error("missing AI skipped event")
	}
}

func TestConvert_AIDisabledLeavesImagesAlone(t *testing.T) {
	path := writeFile(t, "photo.png", pngBytes(t))
	enricher := &fakeEnricher{alt: "A white square"}
	rec := &recorder{}

	res, err := New(WithEnricher(enricher)).Convert(context.Background(), Request{Path: path, EnableAI: false}, rec)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if enricher.calls.Load() != 0 {
		t.Error("enricher ran with AI disabled")
	}
	if len(res.Enrichments) != 0 {
		t.Errorf("Enrichments = %v, want none", res.Enrichments)
	}
	if res.Document.Images[0].AltText != "Image from photo.png" {
		t.Errorf("AltText = %q", res.Document.Images[0].AltText)
	}
	if !strings.Contains(res.Markdown, "![Image from photo.png](data:image/png;base64,") {
		t.Errorf("Markdown = %q", res.Markdown)
	}
	found := false
	for _, ev := range rec.events {
		if ev.Stage == progress.StageAIProcessing && ev.Details["ai_enabled"] == false {
			found = true
		}
	}
	if !found {
		t.Error("missing ai_enabled=false event")
	}
	if res.DocumentID == "" {
		t.Error("a document id should be generated")
	}
}

func TestConvert_AIEnabled(t *testing.T) {
	path := writeFile(t, "photo.png", pngBytes(t))
	enricher := &fakeEnricher{alt: "A white square"}
	rec := &recorder{}

	res, err := New(WithEnricher(enricher)).Convert(context.Background(), Request{Path: path, EnableAI: true}, rec)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if !strings.Contains(res.Markdown, "![A white square](") {
		t.Errorf("Markdown = %q", res.Markdown)
	}
	checkMonotonic(t, rec.events)

	var ai []progress.Event
	for _, ev := range rec.events {
		if ev.Stage == progress.StageAIProcessing {
			ai = append(ai, ev)
		}
	}
	if len(ai) != 3 {
		t.Fatalf("got %d ai_processing events, want 3", len(ai))
	}
	if ai[0].Progress != 0.5 || ai[0].Details["ai_enabled"] != true {
		t.Errorf("start event = %+v", ai[0])
	}
	if ai[1].Progress != 0.8 || ai[1].Details["substage"] != enrich.EventBatchProcessed {
		t.Errorf("scaled stage event = %+v", ai[1])
	}
	if ai[2].Message != "AI enhancement completed" {
		t.Errorf("end event = %+v", ai[2])
	}
}

func TestConvert_TextOnlySkipsEnrichment(t *testing.T) {
	path := writeFile(t, "a.md", []byte("just text"))
	enricher := &fakeEnricher{alt: "x"}
	if _, err := New(WithEnricher(enricher)).Convert(context.Background(), Request{Path: path, EnableAI: true}, nil); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if enricher.calls.Load() != 0 {
		t.Error("enricher should not run without images or math")
	}
}

func TestConvert_Errors(t *testing.T) {
	tests := []struct {
		name         string
		file         string
		data         []byte
		enricher     Enricher
		wantType     string
		wantProgress float64
	}{
		{"unsupported", "data.xyz", []byte("?"), nil, "ParseError", 0},
		{"corrupt docx", "report.docx", []byte("not a zip"), nil, "ParseError", 0.1},
		{"enrichment", "photo.png", nil, &fakeEnricher{err: context.DeadlineExceeded}, "DeadlineExceeded", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.data
			if data == nil {
				data = pngBytes(t)
			}
			path := writeFile(t, tt.file, data)
			opts := []Option{}
			if tt.enricher != nil {
				opts = append(opts, WithEnricher(tt.enricher))
			}
			rec := &recorder{}
			res, err := New(opts...).Convert(context.Background(), Request{Path: path, EnableAI: true}, rec)
			if err == nil || res != nil {
				t.Fatalf("Convert() = %v, %v, want error", res, err)
			}
			if tt.wantType == "ParseError" {
				var pe *parser.ParseError
				if !errors.As(err, &pe) {
					t.Errorf("error = %T, want *parser.ParseError", err)
				}
			}
			last := rec.last()
			if last.Stage != progress.StageError {
				t.Fatalf("last stage = %q, want error", last.Stage)
			}
			if last.Details["error_type"] != tt.wantType {
				t.Errorf("error_type = %v, want %s", last.Details["error_type"], tt.wantType)
			}
			if last.Progress != tt.wantProgress {
				t.Errorf("error progress = %v, want %v", last.Progress, tt.wantProgress)
			}
			if !strings.HasPrefix(last.Message, "Processing failed: ") {
				t.Errorf("Message = %q", last.Message)
			}
			checkMonotonic(t, rec.events)
		})
	}
}

func TestConvert_StoreRejectsBadID(t *testing.T) {
	path := writeFile(t, "a.txt", []byte("hi"))
	p := New(WithStore(NewFileStore(t.TempDir())))
	_, err := p.Convert(context.Background(), Request{Path: path, DocumentID: "../escape"}, nil)
	if !errors.Is(err, ErrInvalidDocumentID) {
		t.Errorf("Convert() error = %v, want ErrInvalidDocumentID", err)
	}
}

func TestFileStore(t *testing.T) {
	root := t.TempDir()
	s := NewFileStore(root)
	got, err := s.Save(context.Background(), "abc", "/uploads/Quarterly Report.v2.pdf", "# hi")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if want := filepath.Join(root, "abc", "Quarterly Report.v2.md"); got != want {
		t.Errorf("Save() = %q, want %q", got, want)
	}
	for _, id := range []string{"", ".", "..", "a/b", `a\b`} {
		if _, err := s.Save(context.Background(), id, "x.txt", ""); !errors.Is(err, ErrInvalidDocumentID) {
			t.Errorf("Save(%q) error = %v, want ErrInvalidDocumentID", id, err)
		}
	}
}

func TestProcess(t *testing.T) {
	path := writeFile(t, "a.txt", []byte("# Heading\nbody"))
	run := New().Process(context.Background(), Request{Path: path})

	var events []progress.Event
	for ev := range run.Events() {
		events = append(events, ev)
	}
	res, err := run.Wait()
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if len(events) == 0 || events[len(events)-1].Stage != progress.StageCompletion {
		t.Fatalf("events = %+v, want completion last", events)
	}
	if events[len(events)-1].Result != res.Markdown {
		t.Error("completion event should carry the artifact")
	}
	checkMonotonic(t, events)
}

func TestProcess_UnreadStreamDoesNotBlock(t *testing.T) {
	path := writeFile(t, "a.txt", []byte(strings.Repeat("line\n", 500)))
	run := New(WithBufferSize(1)).Process(context.Background(), Request{Path: path})
	if _, err := run.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	var last progress.Event
	for ev := range run.Events() {
		last = ev
	}
	if last.Stage != progress.StageCompletion {
		t.Errorf("last buffered event = %q, want completion", last.Stage)
	}
}

func TestConvert_PublishesToWebhook(t *testing.T) {
	var (
		mu       sync.Mutex
		messages []progress.Message
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var m progress.Message
		if err := json.Unmarshal(body, &m); err == nil {
			mu.Lock()
			messages = append(messages, m)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pub := Publisher(config.ProgressConfig{Webhooks: []string{srv.URL}}, nil)
	p := New(WithPublisher(pub))
	defer p.Close()

	path := writeFile(t, "a.txt", []byte("hello"))
	if _, err := p.Convert(context.Background(), Request{Path: path, DocumentID: "doc-9"}, nil); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(messages) == 0 {
		t.Fatal("no progress delivered")
	}
	first, last := messages[0], messages[len(messages)-1]
	if first.DocumentID != "doc-9" || first.Stage != "uploading" {
		t.Errorf("first message = %+v", first)
	}
	if last.Stage != "complete" || last.Progress != 100 {
		t.Errorf("last message = %+v", last)
	}
}

func TestDefaultParsersOrder(t *testing.T) {
	var names []string
	for _, p := range DefaultParsers(ParserOptions{}) {
		names = append(names, p.Name())
	}
	if got := strings.Join(names, ","); got != "pdf,docx,xlsx,pptx,text,image" {
		t.Errorf("DefaultParsers() = %s", got)
	}

	sel := parser.NewSelector(DefaultParsers(ParserOptions{})...)
	for file, want := range map[string]string{"a.PDF": "pdf", "b.docx": "docx", "c.xlsx": "xlsx", "d.pptx": "pptx", "e.md": "text", "f.webp": "image"} {
		p, err := sel.Select(file)
		if err != nil || p.Name() != want {
			t.Errorf("Select(%q) = %v, %v, want %s", file, p, err, want)
		}
	}
}

func TestSupportedFormats(t *testing.T) {
	f := SupportedFormats()
	if !sort.StringsAreSorted(f.Extensions) {
		t.Errorf("Extensions not sorted: %v", f.Extensions)
	}
	for _, ext := range []string{".pdf", ".docx", ".xlsx", ".pptx", ".txt", ".md", ".png"} {
		found := false
		for _, e := range f.Extensions {
			found = found || e == ext
		}
		if !found {
			t.Errorf("missing extension %s", ext)
		}
	}
	if len(f.Capabilities) != 6 || !f.Capabilities["ai_enhancement"] {
		t.Errorf("Capabilities = %v", f.Capabilities)
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{parser.Errorf("x", nil, "bad"), "ParseError"},
		{fmt.Errorf("wrap: %w", &tables.ExtractionError{Method: tables.OCR, Cause: tables.ErrNoEngine}), "ExtractionError"},
		{&enrich.EnrichmentError{ImageID: "a", Step: enrich.StepDescribe, Cause: errors.New("x")}, "EnrichmentError"},
		{&progress.DeliveryError{DocumentID: "d", Cause: progress.ErrNoPath}, "ProgressDeliveryError"},
		{context.Canceled, "Canceled"},
		{&os.PathError{Op: "open", Path: "x", Err: os.ErrNotExist}, "PathError"},
	}
	for _, tt := range tests {
		if got := ErrorType(tt.err); got != tt.want {
			t.Errorf("ErrorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.OCR.Engine = config.OCRNone
	cfg.OpenAI.APIKey = ""
	cfg.MarkdownRoot = t.TempDir()

	p, err := FromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	defer p.Close()

	path := writeFile(t, "photo.png", pngBytes(t))
	res, err := p.Convert(context.Background(), Request{Path: path, DocumentID: "cfg", EnableAI: true}, nil)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	// No vision client and no OCR: the image gets the failure placeholder.
	if got := res.Enrichments.AltText(res.Document.Images[0]); got != enrich.FailedAlt {
		t.Errorf("AltText = %q, want %q", got, enrich.FailedAlt)
	}
	if res.ArtifactPath != filepath.Join(cfg.MarkdownRoot, "cfg", "photo.md") {
		t.Errorf("ArtifactPath = %q", res.ArtifactPath)
	}
}
