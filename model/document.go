package model

// Metadata keys shared by parsers and the renderer.
const (
	MetaTitle   = "title"
	MetaAuthor  = "author"
	MetaSubject = "subject"
	MetaCreator = "creator"
	MetaFormat  = "format"
	MetaPages   = "pages"
	MetaSheets  = "sheets"
	MetaSlides  = "slides"
)

// Metadata is free-form document information. Values are strings, ints or
// string slices.
type Metadata map[string]any

// String returns the value under key when it is a non-empty string.
func (m Metadata) String(key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// SetString stores value under key unless it is empty.
func (m Metadata) SetString(key, value string) {
	if value != "" {
		m[key] = value
	}
}

// Document is the parsed form of one input file.
type Document struct {
	TextBlocks []TextBlock
	Images     []ImageBlock
	Tables     []TableBlock
	Math       []MathBlock
	Metadata   Metadata
}

// NewDocument returns an empty document with initialized metadata.
func NewDocument(format string) *Document {
	return &Document{Metadata: Metadata{MetaFormat: format}}
}

// ElementCount is the number of blocks across all collections.
func (d *Document) ElementCount() int {
	return len(d.TextBlocks) + len(d.Images) + len(d.Tables) + len(d.Math)
}

// NeedsEnrichment reports whether the document has anything the AI stage
// can work on.
func (d *Document) NeedsEnrichment() bool {
	return len(d.Images) > 0 || len(d.Math) > 0
}
