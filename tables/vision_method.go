package tables

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/tsawler/docmark/format"
	"github.com/tsawler/docmark/markdown"
	"github.com/tsawler/docmark/model"
)

// ErrNoTable marks a vision reply that declares no table.
var ErrNoTable = errors.New("no table found")

// visionTables asks the vision model to transcribe each raster of src.
func (e *Engine) visionTables(ctx context.Context, src Source) ([]model.TableBlock, error) {
	if e.vision == nil {
		return nil, ErrNoEngine
	}
	var out []model.TableBlock
	for _, data := range images(src) {
		mime := "image/png"
		if kind := format.ImageType(data); kind != "" {
			mime = "image/" + kind
		}
		reply, err := e.vision.TranscribeTable(ctx, data, mime)
		if err != nil {
			return nil, err
		}
		t, err := ParseReply(reply)
		if errors.Is(err, ErrNoTable) {
			continue
		}
		if err != nil {
			return nil, err
		}
		t.Location = &model.Location{Page: src.PageNumber()}
		t.Stamp(string(AIVision), e.opts.VisionConfidence)
		out = append(out, t)
	}
	return out, nil
}

// ParseReply reads a model reply holding a markdown or HTML table. Replies
// containing "no table found" in any case, and replies without a parsable
// table, yield ErrNoTable.
func ParseReply(reply string) (model.TableBlock, error) {
	if strings.Contains(strings.ToLower(reply), "no table found") {
		return model.TableBlock{}, ErrNoTable
	}
	if strings.Contains(strings.ToLower(reply), "<table") {
		if t, ok := parseHTMLTable(reply); ok {
			return t, nil
		}
	}
	if t, ok := markdown.ParseTable(reply); ok {
		return t, nil
	}
	return model.TableBlock{}, ErrNoTable
}

// parseHTMLTable reads the first <table>: the first row is the header.
func parseHTMLTable(s string) (model.TableBlock, bool) {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return model.TableBlock{}, false
	}
	table := findElement(doc, atom.Table)
	if table == nil {
		return model.TableBlock{}, false
	}

	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			var row []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
					row = append(row, strings.Join(strings.Fields(textContent(c)), " "))
				}
			}
			if len(row) > 0 {
				rows = append(rows, row)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)

	if len(rows) < 2 {
		return model.TableBlock{}, false
	}
	return model.NewTable(rows[0], rows[1:]), true
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
		sb.WriteByte(' ')
	}
	return sb.String()
}
