package tables

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tsawler/docmark/model"
)

var headerKeywords = []string{
	"name", "date", "time", "id", "type", "status", "amount",
	"total", "description", "quantity", "price", "number", "code", "category",
}

var titleCaser = cases.Title(language.Und)

// isHeaderRow reports whether more than half the row's score comes from
// header-like cells. A cell scores once for containing a keyword and once
// for being upper or title case.
func isHeaderRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	score := 0
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		lower := strings.ToLower(cell)
		for _, kw := range headerKeywords {
			if strings.Contains(lower, kw) {
				score++
				break
			}
		}
		if isUpper(cell) || isTitle(cell) {
			score++
		}
	}
	return float64(score) > float64(len(row))*0.5
}

func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

func isTitle(s string) bool {
	hasLetter := strings.IndexFunc(s, unicode.IsLetter) >= 0
	return hasLetter && titleCaser.String(s) == s
}

// toTable picks a header row and builds a normalized table.
func toTable(cells [][]string) model.TableBlock {
	if len(cells) == 0 {
		return model.TableBlock{}
	}
	if len(cells) > 1 && isHeaderRow(cells[0]) {
		return model.NewTable(cells[0], cells[1:])
	}
	width := 0
	for _, row := range cells {
		width = max(width, len(row))
	}
	return model.NewTable(model.SyntheticHeaders(width), cells)
}
