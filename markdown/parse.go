package markdown

import (
	"regexp"
	"strings"

	"github.com/tsawler/docmark/model"
)

var separatorCell = regexp.MustCompile(`^:?-+:?$`)

// ParseTable reads the first pipe table in s. The first table line is the
// header and the line right after it must be a separator; the table then
// runs until the first line without a pipe. Rows are padded or truncated
// to the header width. It reports false when no table with at least one
// data row is found.
func ParseTable(s string) (model.TableBlock, bool) {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	for i := 0; i+2 < len(lines); i++ {
		if !strings.Contains(lines[i], "|") || !strings.Contains(lines[i+1], "|") {
			continue
		}
		if !isSeparator(splitRow(lines[i+1])) {
			continue
		}
		headers := splitRow(lines[i])
		var rows [][]string
		for _, ln := range lines[i+2:] {
			if !strings.Contains(ln, "|") {
				break
			}
			rows = append(rows, splitRow(ln))
		}
		if len(rows) == 0 {
			return model.TableBlock{}, false
		}
		return model.NewTable(headers, rows), true
	}
	return model.TableBlock{}, false
}

func isSeparator(cells []string) bool {
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if !separatorCell.MatchString(strings.ReplaceAll(c, " ", "")) {
			return false
		}
	}
	return true
}

// splitRow splits a table line on unescaped pipes, dropping the outer
// pipes and unescaping \|.
func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	if strings.HasSuffix(line, "|") && !strings.HasSuffix(line, `\|`) {
		line = strings.TrimSuffix(line, "|")
	}

	var cells []string
	var cur strings.Builder
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\\' && i+1 < len(line) && line[i+1] == '|':
			cur.WriteByte('|')
			i++
		case line[i] == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(line[i])
		}
	}
	return append(cells, strings.TrimSpace(cur.String()))
}
