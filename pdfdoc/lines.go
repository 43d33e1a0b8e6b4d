package pdfdoc

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/tsawler/docmark/model"
)

// Gap thresholds as fractions of the font size.
const (
	wordGap     = 0.2
	fragmentGap = 1.0
)

// line is one baseline of text on a page, split into fragments wherever the
// horizontal gap is wide enough to separate table cells.
type line struct {
	Text      string
	Font      string
	Size      float64
	Bold      bool
	BBox      model.BBox
	Fragments []model.Fragment
}

// pageContent reads a page's glyphs and drawn rectangles. The pdf package
// panics on some malformed content streams; that becomes an error.
func pageContent(p pdf.Page) (c pdf.Content, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading page content: %v", r)
		}
	}()
	if p.V.IsNull() {
		return pdf.Content{}, nil
	}
	return p.Content(), nil
}

// buildLines groups glyphs into lines by baseline, top of the page first,
// and joins each line's glyphs left to right.
func buildLines(glyphs []pdf.Text) []line {
	sorted := make([]pdf.Text, 0, len(glyphs))
	for _, g := range glyphs {
		if g.S != "" {
			sorted = append(sorted, g)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var (
		out   []line
		group []pdf.Text
	)
	flush := func() {
		if l, ok := joinLine(group); ok {
			out = append(out, l)
		}
		group = group[:0]
	}
	for _, g := range sorted {
		if len(group) > 0 {
			base := group[0]
			tol := max(1, 0.4*max(base.FontSize, g.FontSize))
			if base.Y-g.Y > tol {
				flush()
			}
		}
		group = append(group, g)
	}
	flush()
	return out
}

// joinLine assembles one baseline's glyphs into words and fragments.
func joinLine(glyphs []pdf.Text) (line, bool) {
	gs := append([]pdf.Text(nil), glyphs...)
	sort.SliceStable(gs, func(i, j int) bool { return gs[i].X < gs[j].X })

	var (
		l       line
		cur     *model.Fragment
		sb      strings.Builder
		right   float64
		spacing bool
	)
	closeFragment := func() {
		if cur == nil {
			return
		}
		cur.Text = strings.TrimSpace(sb.String())
		if cur.Text != "" {
			l.Fragments = append(l.Fragments, *cur)
		}
		cur = nil
		sb.Reset()
	}

	for _, g := range gs {
		if strings.TrimSpace(g.S) == "" {
			spacing = true
			continue
		}
		size := g.FontSize
		if size <= 0 {
			size = 10
		}
		if l.Font == "" {
			l.Font = g.Font
			l.Size = g.FontSize
		}
		box := model.NewBBox(g.X, g.Y, g.W, size)

		gap := g.X - right
		switch {
		case cur != nil && gap > fragmentGap*size:
			closeFragment()
		case cur != nil && (spacing || gap > wordGap*size):
			sb.WriteByte(' ')
		}
		if cur == nil {
			cur = &model.Fragment{BBox: box, FontSize: size}
		} else {
			cur.BBox = cur.BBox.Union(box)
		}
		sb.WriteString(g.S)
		right = g.X + g.W
		spacing = false
	}
	closeFragment()

	if len(l.Fragments) == 0 {
		return line{}, false
	}
	texts := make([]string, len(l.Fragments))
	for i, f := range l.Fragments {
		texts[i] = f.Text
		l.BBox = l.BBox.Union(f.BBox)
	}
	l.Text = strings.Join(texts, " ")
	l.Bold = boldFont(l.Font)
	return l, true
}

func boldFont(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "bold") || strings.Contains(lower, "black") || strings.Contains(lower, "heavy")
}

func monospaceFont(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "mono") || strings.Contains(lower, "courier") || strings.Contains(lower, "code")
}

var listMarker = regexp.MustCompile(`^\s*([•\-*]|\d+\.)\s+`)

// classify assigns a block kind: list marker, then monospace font, then
// size or weight for headings, else paragraph.
func classify(l line) model.TextBlock {
	var b model.TextBlock
	switch {
	case listMarker.MatchString(l.Text):
		b = model.TextBlock{Kind: model.KindListItem, Content: l.Text}
	case monospaceFont(l.Font):
		b = model.TextBlock{Kind: model.KindCode, Content: l.Text}
	case l.Size > 14 || l.Bold:
		b = model.Heading(l.Text, headingLevel(l.Size))
	default:
		b = model.Paragraph(l.Text)
	}
	b.Style = map[string]any{"font": l.Font, "size": l.Size, "bold": l.Bold}
	return b
}

func headingLevel(size float64) int {
	switch {
	case size >= 24:
		return 1
	case size >= 20:
		return 2
	case size >= 18:
		return 3
	case size >= 16:
		return 4
	case size >= 14:
		return 5
	}
	return 6
}

// rulings converts drawn rectangles to table rulings.
func rulings(rects []pdf.Rect) []model.Ruling {
	out := make([]model.Ruling, 0, len(rects))
	for _, r := range rects {
		out = append(out, model.Ruling{BBox: model.BBoxFromCorners(r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)})
	}
	return out
}
