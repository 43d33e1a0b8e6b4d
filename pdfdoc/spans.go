package pdfdoc

import "github.com/tsawler/docmark/model"

// spanTables is the fallback detector used when the table engine fails:
// every run of two or more consecutive lines that each hold at least two
// fragments is a table, with the first line as the header.
func spanTables(lines []line, page int) []model.TableBlock {
	var (
		out []model.TableBlock
		run []line
	)
	flush := func() {
		if len(run) >= 2 {
			out = append(out, spanTable(run, page))
		}
		run = nil
	}
	for _, l := range lines {
		if len(l.Fragments) < 2 {
			flush()
			continue
		}
		run = append(run, l)
	}
	flush()
	return out
}

func spanTable(run []line, page int) model.TableBlock {
	cells := func(l line) []string {
		row := make([]string, len(l.Fragments))
		for i, f := range l.Fragments {
			row[i] = f.Text
		}
		return row
	}
	var box model.BBox
	rows := make([][]string, 0, len(run)-1)
	for i, l := range run {
		box = box.Union(l.BBox)
		if i > 0 {
			rows = append(rows, cells(l))
		}
	}
	t := model.NewTable(cells(run[0]), rows)
	t.Location = model.At(page, box)
	return t
}
