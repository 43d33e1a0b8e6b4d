package markdown

import (
	"reflect"
	"strings"
	"testing"

	"github.com/tsawler/docmark/model"
)

func TestRender_TextOnly(t *testing.T) {
	doc := &model.Document{
		TextBlocks: []model.TextBlock{
			model.Heading("Title", 1),
			model.Paragraph("The paragraph"),
		},
	}
	if got, want := Render(doc, nil), "# Title\n\nThe paragraph"; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_Order(t *testing.T) {
	doc := &model.Document{
		Metadata:   model.Metadata{model.MetaTitle: "Doc", model.MetaFormat: "PDF", "producer": "ignored"},
		TextBlocks: []model.TextBlock{model.Paragraph("text")},
		Images:     []model.ImageBlock{{ID: "i1", Data: []byte("abc"), Format: "png", AltText: "Image from a.png"}},
		Tables:     []model.TableBlock{model.NewTable([]string{"A"}, [][]string{{"1"}})},
		Math:       []model.MathBlock{{Content: "x^2", Format: model.MathLatex, Inline: true}},
	}
	got := Render(doc, model.Enrichments{"i1": {AltText: "A described image"}})

	idx := func(s string) int {
		i := strings.Index(got, s)
		if i < 0 {
			t.Fatalf("output missing %q:\n%s", s, got)
		}
		return i
	}
	order := []int{idx("---\ntitle: Doc\nformat: PDF\n---"), idx("text"), idx("![A described image]"), idx("| A |"), idx("$x^2$")}
	for i := 1; i < len(order); i++ {
		if order[i] <= order[i-1] {
			t.Errorf("section %d out of order in:\n%s", i, got)
		}
	}
	if strings.Contains(got, "producer") {
		t.Error("frontmatter should only contain allowlisted keys")
	}
}

func TestFrontmatter(t *testing.T) {
	tests := []struct {
		name string
		meta model.Metadata
		want string
	}{
		{"empty", model.Metadata{}, ""},
		{"blank values", model.Metadata{model.MetaTitle: "", model.MetaPages: 0}, ""},
		{"pages", model.Metadata{model.MetaPages: 3}, "---\npages: 3\n---"},
		{"sheets", model.Metadata{model.MetaSheets: []string{"Sheet1", "Data"}}, "---\nsheets: [Sheet1, Data]\n---"},
		{"order", model.Metadata{model.MetaSlides: 2, model.MetaTitle: "T"}, "---\ntitle: T\nslides: 2\n---"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Frontmatter(tt.meta); got != tt.want {
				t.Errorf("Frontmatter() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTextBlock(t *testing.T) {
	tests := []struct {
		block model.TextBlock
		want  string
	}{
		{model.Heading("Intro", 2), "## Intro"},
		{model.TextBlock{Kind: model.KindListItem, Content: "item"}, "- item"},
		{model.TextBlock{Kind: model.KindListItem, Content: "* item"}, "* item"},
		{model.TextBlock{Kind: model.KindListItem, Content: "3. third"}, "3. third"},
		{model.TextBlock{Kind: model.KindCode, Content: "x := 1"}, "```\nx := 1\n```"},
		{model.TextBlock{Kind: model.KindQuote, Content: "said"}, "> said"},
		{model.TextBlock{Kind: model.KindQuote, Content: "> said"}, "> said"},
		{model.Paragraph("  "), ""},
	}
	for _, tt := range tests {
		if got := TextBlock(tt.block); got != tt.want {
			t.Errorf("TextBlock(%+v) = %q, want %q", tt.block, got, tt.want)
		}
	}
}

func TestImage(t *testing.T) {
	img := model.ImageBlock{Data: make([]byte, 100), Format: "JPEG", Caption: "Figure 1"}
	got := Image(img, "line one\nline [two]")
	want := "![line one line (two)](data:image/jpeg;base64," + strings.Repeat("A", 50) + "...)\n\n*Figure 1*"
	if got != want {
		t.Errorf("Image() = %q, want %q", got, want)
	}
	if got := Image(model.ImageBlock{}, ""); !strings.HasPrefix(got, "![Image](data:image/png;base64,...)") {
		t.Errorf("Image(empty) = %q", got)
	}
}

func TestTable(t *testing.T) {
	tb := model.NewTable([]string{"Name", "A|B"}, [][]string{{"x\ny", "1"}, {"only"}})
	tb.Caption = "Table 1 from page 2"
	tb.Stamp("rule_based", 0.8712)

	want := "**Table 1 from page 2**\n\n" +
		"| Name | A\\|B |\n" +
		"| ---- | ---- |\n" +
		"| x y | 1 |\n" +
		"| only |  |\n\n" +
		"<!-- Table extracted using rule_based (confidence: 0.87) -->"
	if got := Table(tb); got != want {
		t.Errorf("Table() =\n%s\nwant\n%s", got, want)
	}
}

func TestTable_SyntheticHeaders(t *testing.T) {
	got := Table(model.TableBlock{Rows: [][]string{{"a", "b"}}})
	if !strings.HasPrefix(got, "| Column 1 | Column 2 |\n| -------- | -------- |") {
		t.Errorf("Table() = %q", got)
	}
	if Table(model.TableBlock{}) != "" {
		t.Error("empty table should render nothing")
	}
}

func TestMath(t *testing.T) {
	tests := []struct {
		m    model.MathBlock
		want string
	}{
		{model.MathBlock{Content: "$E=mc^2$", Format: model.MathLatex, Inline: true}, "$E=mc^2$"},
		{model.MathBlock{Content: `\sum x`, Format: model.MathLatex}, "$$\n\\sum x\n$$"},
		{model.MathBlock{Content: "a = b", Format: model.MathText}, "```math\na = b\n```"},
	}
	for _, tt := range tests {
		if got := Math(tt.m); got != tt.want {
			t.Errorf("Math() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseTable(t *testing.T) {
	reply := "Here is the table:\n\n| Item | Qty |\n|:-----|----:|\n| Apple | 3 |\n| Pear |\n| A \\| B | 1 | extra |\n\nDone."
	got, ok := ParseTable(reply)
	if !ok {
		t.Fatal("ParseTable() = false, want true")
	}
	if !reflect.DeepEqual(got.Headers, []string{"Item", "Qty"}) {
		t.Errorf("Headers = %v", got.Headers)
	}
	want := [][]string{{"Apple", "3"}, {"Pear", ""}, {"A | B", "1"}}
	if !reflect.DeepEqual(got.Rows, want) {
		t.Errorf("Rows = %v, want %v", got.Rows, want)
	}
}

func TestParseTable_Rejects(t *testing.T) {
	for _, s := range []string{
		"",
		"no table here",
		"| A | B |\n| --- | --- |",
		"| A | B |\n| x | y |",
	} {
		if _, ok := ParseTable(s); ok {
			t.Errorf("ParseTable(%q) = true, want false", s)
		}
	}
}

func TestParseTable_RoundTrip(t *testing.T) {
	orig := model.NewTable([]string{"Name", "Note"}, [][]string{{"Alice", "a|b"}, {"Bob", ""}})
	parsed, ok := ParseTable(Table(orig))
	if !ok {
		t.Fatal("ParseTable(Table()) = false")
	}
	if Table(parsed) != Table(orig) {
		t.Errorf("round trip mismatch:\n%s\nvs\n%s", Table(parsed), Table(orig))
	}
}

func TestParseTable_DashRowsAreData(t *testing.T) {
	orig := model.NewTable([]string{"Item", "Qty"}, [][]string{{"a", "1"}, {"---", "-"}, {"b", "2"}})
	parsed, ok := ParseTable(Table(orig))
	if !ok {
		t.Fatal("ParseTable(Table()) = false")
	}
	if !reflect.DeepEqual(parsed.Rows, orig.Rows) {
		t.Errorf("Rows = %v, want %v", parsed.Rows, orig.Rows)
	}
}
