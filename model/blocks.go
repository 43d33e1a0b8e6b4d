package model

import "strings"

// BlockKind classifies a text block.
type BlockKind string

const (
	KindParagraph BlockKind = "paragraph"
	KindHeading   BlockKind = "heading"
	KindListItem  BlockKind = "list_item"
	KindQuote     BlockKind = "quote"
	KindCode      BlockKind = "code"
)

// TextBlock is one unit of text. Level is meaningful for headings only and
// lies in 1..6.
type TextBlock struct {
	Kind     BlockKind
	Content  string
	Level    int
	Style    map[string]any
	Location *Location
}

// Heading returns a heading block with level clamped to 1..6.
func Heading(content string, level int) TextBlock {
	return TextBlock{Kind: KindHeading, Content: content, Level: ClampLevel(level)}
}

// Paragraph returns a plain paragraph block.
func Paragraph(content string) TextBlock {
	return TextBlock{Kind: KindParagraph, Content: content}
}

// ClampLevel bounds a heading level to 1..6.
func ClampLevel(level int) int {
	switch {
	case level < 1:
		return 1
	case level > 6:
		return 6
	}
	return level
}

// PlaceholderAltPrefix marks alt text that parsers generate when the source
// carries no description.
const PlaceholderAltPrefix = "Image from"

// ImageBlock is an image as extracted by a parser. It is never modified
// after parsing; descriptions live in an ImageEnrichment keyed by ID.
type ImageBlock struct {
	ID       string
	Data     []byte
	Format   string
	Location *Location
	Caption  string
	AltText  string
	Source   string
	Page     int
	Section  string
	Index    int
}

// HasDescription reports whether the parser already supplied a real
// description, as opposed to nothing or a generated placeholder.
func (b ImageBlock) HasDescription() bool {
	alt := strings.TrimSpace(b.AltText)
	return alt != "" && !strings.HasPrefix(alt, PlaceholderAltPrefix)
}

// MIMEType returns the image media type derived from Format.
func (b ImageBlock) MIMEType() string {
	switch f := strings.ToLower(b.Format); f {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "tif":
		return "image/tiff"
	case "":
		return "image/png"
	default:
		return "image/" + f
	}
}

// MathFormat is the notation of a math block.
type MathFormat string

const (
	MathLatex MathFormat = "latex"
	MathML    MathFormat = "mathml"
	MathText  MathFormat = "text"
)

// MathBlock is a formula found in the source.
type MathBlock struct {
	Content  string
	Format   MathFormat
	Inline   bool
	Location *Location
}
