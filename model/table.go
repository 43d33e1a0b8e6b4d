package model

import "fmt"

// Table style keys.
const (
	StyleExtractionMethod = "extraction_method"
	StyleConfidence       = "confidence"
)

// TableBlock is a table with one header row. After Normalize every row has
// exactly len(Headers) cells.
type TableBlock struct {
	Headers  []string
	Rows     [][]string
	Location *Location
	Caption  string
	Style    map[string]any
}

// NewTable builds a normalized table.
func NewTable(headers []string, rows [][]string) TableBlock {
	t := TableBlock{Headers: headers, Rows: rows}
	t.Normalize()
	return t
}

// Normalize pads short rows with empty cells and truncates long ones.
func (t *TableBlock) Normalize() {
	width := t.ColCount()
	for i, row := range t.Rows {
		switch {
		case len(row) < width:
			padded := make([]string, width)
			copy(padded, row)
			t.Rows[i] = padded
		case len(row) > width:
			t.Rows[i] = row[:width]
		}
	}
}

// ColCount is the table width.
func (t TableBlock) ColCount() int { return len(t.Headers) }

// Stamp records how the table was produced.
func (t *TableBlock) Stamp(method string, confidence float64) {
	if t.Style == nil {
		t.Style = map[string]any{}
	}
	t.Style[StyleExtractionMethod] = method
	t.Style[StyleConfidence] = confidence
}

// ExtractionMethod returns the method that produced the table, if recorded.
func (t TableBlock) ExtractionMethod() string {
	s, _ := t.Style[StyleExtractionMethod].(string)
	return s
}

// Confidence returns the recorded extraction confidence.
func (t TableBlock) Confidence() (float64, bool) {
	switch v := t.Style[StyleConfidence].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// SyntheticHeaders returns "Column 1".."Column n".
func SyntheticHeaders(n int) []string {
	headers := make([]string, n)
	for i := range headers {
		headers[i] = fmt.Sprintf("Column %d", i+1)
	}
	return headers
}
