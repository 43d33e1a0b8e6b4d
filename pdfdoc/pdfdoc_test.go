package pdfdoc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"

	"github.com/tsawler/docmark/model"
	"github.com/tsawler/docmark/parser"
)

func TestBuildLines(t *testing.T) {
	glyphs := []pdf.Text{
		{Font: "Helvetica", FontSize: 10, X: 200, Y: 680, W: 15, S: "Age"},
		{Font: "Helvetica-Bold", FontSize: 24, X: 72, Y: 700, W: 50, S: "Hello"},
		{Font: "Helvetica", FontSize: 10, X: 72, Y: 680.3, W: 20, S: "Name"},
		{Font: "Helvetica", FontSize: 10, X: 92, Y: 680, W: 3, S: " "},
		{Font: "Helvetica", FontSize: 10, X: 72, Y: 660, W: 15, S: "foo"},
		{Font: "Helvetica", FontSize: 10, X: 91, Y: 660, W: 15, S: "bar"},
		{Font: "Helvetica", FontSize: 10, X: 106, Y: 660, W: 5, S: "s"},
		{Font: "Helvetica", FontSize: 10, X: 300, Y: 640, W: 0, S: ""},
	}
	lines := buildLines(glyphs)
	if len(lines) != 3 {
		t.Fatalf("buildLines() = %d lines, want 3: %+v", len(lines), lines)
	}

	if lines[0].Text != "Hello" || lines[0].Size != 24 || !lines[0].Bold {
		t.Errorf("line 0 = {%q %v %v}, want bold 24pt Hello", lines[0].Text, lines[0].Size, lines[0].Bold)
	}
	if got := len(lines[1].Fragments); got != 2 {
		t.Fatalf("line 1 fragments = %d, want 2", got)
	}
	if lines[1].Fragments[0].Text != "Name" || lines[1].Fragments[1].Text != "Age" {
		t.Errorf("line 1 fragments = %q, %q", lines[1].Fragments[0].Text, lines[1].Fragments[1].Text)
	}
	if lines[1].Text != "Name Age" {
		t.Errorf("line 1 text = %q, want %q", lines[1].Text, "Name Age")
	}
	if lines[2].Text != "foo bars" {
		t.Errorf("line 2 text = %q, want %q", lines[2].Text, "foo bars")
	}
	if box := lines[2].BBox; box.X != 72 || box.Right() != 111 {
		t.Errorf("line 2 bbox = %+v, want x 72..111", box)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		line  line
		kind  model.BlockKind
		level int
	}{
		{"bullet", line{Text: "• item", Size: 30}, model.KindListItem, 0},
		{"numbered", line{Text: "2. step", Size: 11}, model.KindListItem, 0},
		{"courier", line{Text: "x := 1", Font: "CourierNew", Size: 10}, model.KindCode, 0},
		{"mono", line{Text: "func main()", Font: "DejaVuSansMono", Size: 18}, model.KindCode, 0},
		{"large", line{Text: "Chapter", Size: 24}, model.KindHeading, 1},
		{"medium", line{Text: "Section", Size: 18.5}, model.KindHeading, 3},
		{"bold body", line{Text: "Note", Size: 11, Bold: true}, model.KindHeading, 6},
		{"exactly 14", line{Text: "Plain", Size: 14}, model.KindParagraph, 0},
		{"body", line{Text: "Some text.", Size: 11}, model.KindParagraph, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := classify(tt.line)
			if b.Kind != tt.kind || b.Level != tt.level {
				t.Errorf("classify() = {%s %d}, want {%s %d}", b.Kind, b.Level, tt.kind, tt.level)
			}
			if _, ok := b.Style["font"]; !ok {
				t.Error("style should carry the font")
			}
		})
	}
}

func TestHeadingLevel(t *testing.T) {
	tests := map[float64]int{30: 1, 24: 1, 22: 2, 20: 2, 19: 3, 16.5: 4, 14.2: 5, 12: 6}
	for size, want := range tests {
		if got := headingLevel(size); got != want {
			t.Errorf("headingLevel(%v) = %d, want %d", size, got, want)
		}
	}
}

func TestExtractMath(t *testing.T) {
	text := "Intro $x^2$ and\n$$\\int f$$\ny = 2x + 1\nNote = something\n\\begin{align}a\\end{align}"
	loc := &model.Location{Page: 3}
	got := extractMath(text, loc)

	want := []model.MathBlock{
		{Content: "x^2", Format: model.MathLatex, Inline: true},
		{Content: `\int f`, Format: model.MathLatex, Inline: false},
		{Content: "y = 2x + 1", Format: model.MathText, Inline: true},
		{Content: `\begin{align}a\end{align}`, Format: model.MathLatex, Inline: false},
	}
	if len(got) != len(want) {
		t.Fatalf("extractMath() = %+v, want %d blocks", got, len(want))
	}
	for i, w := range want {
		g := got[i]
		if g.Content != w.Content || g.Format != w.Format || g.Inline != w.Inline {
			t.Errorf("block %d = {%q %s %v}, want {%q %s %v}", i, g.Content, g.Format, g.Inline, w.Content, w.Format, w.Inline)
		}
		if g.Location != loc {
			t.Errorf("block %d location = %v, want page 3", i, g.Location)
		}
	}
}

func frags(texts ...string) line {
	l := line{Text: strings.Join(texts, " ")}
	for i, s := range texts {
		box := model.NewBBox(float64(72+100*i), 500, 40, 10)
		l.Fragments = append(l.Fragments, model.Fragment{Text: s, BBox: box, FontSize: 10})
		l.BBox = l.BBox.Union(box)
	}
	return l
}

func TestSpanTables(t *testing.T) {
	lines := []line{
		frags("Name", "Qty"),
		frags("Pen", "2"),
		frags("Cup", "1", "extra"),
		frags("Paragraph text"),
		frags("Lonely", "row"),
	}
	got := spanTables(lines, 4)
	if len(got) != 1 {
		t.Fatalf("spanTables() = %d tables, want 1", len(got))
	}
	tb := got[0]
	if strings.Join(tb.Headers, ",") != "Name,Qty" {
		t.Errorf("Headers = %v", tb.Headers)
	}
	if len(tb.Rows) != 2 || strings.Join(tb.Rows[1], ",") != "Cup,1" {
		t.Errorf("Rows = %v, want 2 rows truncated to 2 columns", tb.Rows)
	}
	if tb.Location == nil || tb.Location.Page != 4 {
		t.Errorf("Location = %+v, want page 4", tb.Location)
	}
}

func TestRulings(t *testing.T) {
	got := rulings([]pdf.Rect{{Min: pdf.Point{X: 10, Y: 20}, Max: pdf.Point{X: 110, Y: 21}}})
	if len(got) != 1 || !got[0].Horizontal() || got[0].BBox.Width != 100 {
		t.Errorf("rulings() = %+v", got)
	}
}

func TestImageFormat(t *testing.T) {
	tests := []struct {
		fileType string
		data     []byte
		want     string
	}{
		{"jpg", nil, "jpeg"},
		{"tif", []byte("xx"), "tiff"},
		{"png", []byte("\x89PNG\r\n\x1a\n"), "png"},
		{"", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "jpeg"},
	}
	for _, tt := range tests {
		if got := imageFormat(tt.fileType, tt.data); got != tt.want {
			t.Errorf("imageFormat(%q) = %q, want %q", tt.fileType, got, tt.want)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := New().Parse(context.Background(), path, nil)
	var pe *parser.ParseError
	if !errors.As(err, &pe) {
		t.Errorf("Parse() error = %v, want *parser.ParseError", err)
	}
}

func TestSupports(t *testing.T) {
	p := New()
	if !p.Supports("paper.PDF") || p.Supports("paper.docx") {
		t.Error("Supports() should accept only .pdf")
	}
}
