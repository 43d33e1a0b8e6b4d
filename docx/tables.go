package docx

import (
	"strconv"
	"strings"

	"github.com/tsawler/docmark/model"
)

// tableGrid flattens a w:tbl into rows of cell text. Horizontally merged
// cells (gridSpan) are expanded so columns line up; the text goes in the
// first column of the span. Vertical merge continuations are empty.
func tableGrid(tbl tableXML) [][]string {
	grid := make([][]string, 0, len(tbl.Rows))
	for _, tr := range tbl.Rows {
		var row []string
		for _, tc := range tr.Cells {
			span := 1
			if n, err := strconv.Atoi(tc.Properties.GridSpan.Val); err == nil && n > 1 {
				span = n
			}
			text := ""
			if !continuesMerge(tc) {
				text = cellText(tc)
			}
			row = append(row, text)
			for i := 1; i < span; i++ {
				row = append(row, "")
			}
		}
		grid = append(grid, row)
	}
	return grid
}

func continuesMerge(tc tableCellXML) bool {
	return tc.Properties.VMerge != nil && tc.Properties.VMerge.Val != "restart"
}

func cellText(tc tableCellXML) string {
	var parts []string
	for _, p := range tc.Paragraphs {
		if t := strings.TrimSpace(paragraphText(p)); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// tableBlock converts a flattened grid. The first row becomes the header
// only when it has content and data rows follow; otherwise synthetic
// headers are used and every row is data. Empty grids yield false.
func tableBlock(grid [][]string) (model.TableBlock, bool) {
	width := 0
	for _, row := range grid {
		width = max(width, len(row))
	}
	if width == 0 {
		return model.TableBlock{}, false
	}

	var headers []string
	rows := grid
	if len(grid) > 1 && hasContent(grid[0]) {
		headers = pad(grid[0], width)
		rows = grid[1:]
	} else {
		headers = model.SyntheticHeaders(width)
	}
	return model.NewTable(headers, rows), true
}

func hasContent(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return true
		}
	}
	return false
}

func pad(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}
