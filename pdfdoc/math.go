package pdfdoc

import (
	"regexp"
	"sort"
	"strings"

	"github.com/tsawler/docmark/model"
)

var (
	displayMath  = regexp.MustCompile(`\$\$([^$]+)\$\$`)
	environment  = regexp.MustCompile(`(?s)\\begin\{[^}]+\}.*?\\end\{[^}]+\}`)
	inlineMath   = regexp.MustCompile(`\$([^$\n]+)\$`)
	equationLine = regexp.MustCompile(`(?m)^[ \t]*[A-Za-z][A-Za-z0-9_]*[ \t]*=[ \t]*([-+*/^().0-9A-Za-z \t]+?)[ \t]*$`)
)

type mathMatch struct {
	start, end int
	block      model.MathBlock
}

// extractMath finds formulas in page text: $$..$$ and \begin..\end
// environments as display latex, $..$ as inline latex, and lines of the
// form "name = expression" as inline text. Earlier patterns win where
// matches overlap.
func extractMath(text string, loc *model.Location) []model.MathBlock {
	var found []mathMatch
	overlaps := func(s, e int) bool {
		for _, m := range found {
			if s < m.end && e > m.start {
				return true
			}
		}
		return false
	}
	add := func(s, e int, content string, f model.MathFormat, inline bool) {
		content = strings.TrimSpace(content)
		if content == "" || overlaps(s, e) {
			return
		}
		found = append(found, mathMatch{s, e, model.MathBlock{Content: content, Format: f, Inline: inline, Location: loc}})
	}

	for _, m := range displayMath.FindAllStringSubmatchIndex(text, -1) {
		add(m[0], m[1], text[m[2]:m[3]], model.MathLatex, false)
	}
	for _, m := range environment.FindAllStringIndex(text, -1) {
		add(m[0], m[1], text[m[0]:m[1]], model.MathLatex, false)
	}
	for _, m := range inlineMath.FindAllStringSubmatchIndex(text, -1) {
		add(m[0], m[1], text[m[2]:m[3]], model.MathLatex, true)
	}
	for _, m := range equationLine.FindAllStringSubmatchIndex(text, -1) {
		if strings.ContainsAny(text[m[2]:m[3]], "0123456789+-*/^()") {
			add(m[0], m[1], text[m[0]:m[1]], model.MathText, true)
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].start < found[j].start })
	out := make([]model.MathBlock, len(found))
	for i, m := range found {
		out[i] = m.block
	}
	return out
}
