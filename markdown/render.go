// Package markdown renders a Document Model as canonical Markdown and reads
// markdown tables back.
package markdown

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tsawler/docmark/model"
)

// frontmatterKeys lists, in order, the metadata keys copied into the YAML
// header.
var frontmatterKeys = []string{
	model.MetaTitle,
	model.MetaAuthor,
	model.MetaSubject,
	model.MetaFormat,
	model.MetaPages,
	model.MetaSheets,
	model.MetaSlides,
}

var listPrefix = regexp.MustCompile(`^([-*+•]|\d+[.)])\s`)

// Render produces the Markdown for doc, taking image descriptions from
// enrichments where present. Output order is frontmatter, text, images,
// tables, math; fragments are separated by one blank line.
func Render(doc *model.Document, enrichments model.Enrichments) string {
	var parts []string
	add := func(s string) {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}

	add(Frontmatter(doc.Metadata))
	for _, b := range doc.TextBlocks {
		add(TextBlock(b))
	}
	for _, img := range doc.Images {
		add(Image(img, enrichments.AltText(img)))
	}
	for _, t := range doc.Tables {
		add(Table(t))
	}
	for _, m := range doc.Math {
		add(Math(m))
	}
	return strings.Join(parts, "\n\n")
}

// Frontmatter returns the YAML header for the allowlisted metadata keys
// with non-empty values, or "" when there are none.
func Frontmatter(meta model.Metadata) string {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range frontmatterKeys {
		v, ok := meta[key]
		if !ok || isEmpty(v) {
			continue
		}
		var val yaml.Node
		if err := val.Encode(v); err != nil {
			continue
		}
		if val.Kind == yaml.SequenceNode {
			val.Style = yaml.FlowStyle
		}
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, &val)
	}
	if len(root.Content) == 0 {
		return ""
	}
	out, err := yaml.Marshal(root)
	if err != nil {
		return ""
	}
	return "---\n" + string(out) + "---"
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case int:
		return x == 0
	case int64:
		return x == 0
	case float64:
		return x == 0
	case []string:
		return len(x) == 0
	case []any:
		return len(x) == 0
	case bool:
		return !x
	}
	return false
}

// TextBlock renders one text block.
func TextBlock(b model.TextBlock) string {
	content := strings.TrimSpace(b.Content)
	if content == "" {
		return ""
	}
	switch b.Kind {
	case model.KindHeading:
		return strings.Repeat("#", model.ClampLevel(b.Level)) + " " + content
	case model.KindListItem:
		if listPrefix.MatchString(content) {
			return content
		}
		return "- " + content
	case model.KindCode:
		return "```\n" + strings.TrimRight(b.Content, "\n") + "\n```"
	case model.KindQuote:
		if strings.HasPrefix(content, ">") {
			return content
		}
		return "> " + content
	}
	return content
}

// Image renders an image reference with a truncated data URI preview.
func Image(img model.ImageBlock, alt string) string {
	alt = strings.Join(strings.Fields(alt), " ")
	alt = strings.NewReplacer("[", "(", "]", ")").Replace(alt)
	if alt == "" {
		alt = "Image"
	}
	format := strings.ToLower(img.Format)
	if format == "" {
		format = "png"
	}
	data := base64.StdEncoding.EncodeToString(img.Data)
	if len(data) > 50 {
		data = data[:50]
	}
	md := fmt.Sprintf("![%s](data:image/%s;base64,%s...)", alt, format, data)
	if img.Caption != "" {
		md += "\n\n*" + img.Caption + "*"
	}
	return md
}

// Table renders a pipe table with an optional bold caption and a trailing
// comment naming the extraction method.
func Table(t model.TableBlock) string {
	headers := t.Headers
	if len(headers) == 0 {
		width := 0
		for _, row := range t.Rows {
			width = max(width, len(row))
		}
		if width == 0 {
			return ""
		}
		headers = model.SyntheticHeaders(width)
	}

	var sb strings.Builder
	if t.Caption != "" {
		sb.WriteString("**" + t.Caption + "**\n\n")
	}

	escaped := make([]string, len(headers))
	seps := make([]string, len(headers))
	for i, h := range headers {
		escaped[i] = escapeCell(h)
		seps[i] = strings.Repeat("-", max(3, len([]rune(escaped[i]))))
	}
	sb.WriteString("| " + strings.Join(escaped, " | ") + " |\n")
	sb.WriteString("| " + strings.Join(seps, " | ") + " |")

	for _, row := range t.Rows {
		cells := make([]string, len(headers))
		for i := range cells {
			if i < len(row) {
				cells[i] = escapeCell(row[i])
			}
		}
		sb.WriteString("\n| " + strings.Join(cells, " | ") + " |")
	}

	if method := t.ExtractionMethod(); method != "" {
		if c, ok := t.Confidence(); ok {
			fmt.Fprintf(&sb, "\n\n<!-- Table extracted using %s (confidence: %.2f) -->", method, c)
		} else {
			fmt.Fprintf(&sb, "\n\n<!-- Table extracted using %s -->", method)
		}
	}
	return sb.String()
}

var cellReplacer = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ")

func escapeCell(s string) string {
	return strings.TrimSpace(cellReplacer.Replace(s))
}

// Math renders a formula: latex as $..$ or a $$ display block, anything
// else as a fenced math block.
func Math(m model.MathBlock) string {
	content := strings.TrimSpace(m.Content)
	if content == "" {
		return ""
	}
	if m.Format != model.MathLatex {
		return "```math\n" + content + "\n```"
	}
	content = strings.Trim(content, "$")
	if m.Inline {
		return "$" + content + "$"
	}
	return "$$\n" + content + "\n$$"
}
