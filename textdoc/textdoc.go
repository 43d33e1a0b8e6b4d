// Package textdoc parses plain text and markdown files line by line.
package textdoc

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tsawler/docmark/format"
	"github.com/tsawler/docmark/model"
	"github.com/tsawler/docmark/parser"
	"github.com/tsawler/docmark/progress"
)

const progressEvery = 100

var listItem = regexp.MustCompile(`^\s*([-*+]|\d+\.)\s+`)

// Parser reads .txt, .md and .markdown files.
type Parser struct{}

// New returns a text parser.
func New() *Parser { return &Parser{} }

func (*Parser) Name() string { return "text" }

func (*Parser) Supports(path string) bool { return format.Detect(path) == format.Text }

// Parse classifies every non-blank line as a heading, list item, code,
// quote or paragraph.
func (p *Parser) Parse(ctx context.Context, path string, sink progress.Sink) (*model.Document, error) {
	sink = progress.OrDiscard(sink)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, parser.Errorf(path, err, "failed to read text file")
	}
	text, encoding, err := decode(data)
	if err != nil {
		return nil, parser.Errorf(path, err, "failed to decode text file")
	}

	doc := model.NewDocument(format.Text.String())
	doc.Metadata["encoding"] = encoding

	lines := strings.Split(text, "\n")
	doc.Metadata["lines"] = len(lines)

	var fence []string
	inFence := false
	for i, raw := range lines {
		if i%progressEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if i > 0 {
				sink.Emit(ctx, progress.Event{
					Stage:    progress.StageParsing,
					Progress: float64(i) / float64(len(lines)),
					Message:  fmt.Sprintf("Processed %d/%d lines", i, len(lines)),
				})
			}
		}
		raw = strings.TrimRight(raw, "\r")

		if strings.HasPrefix(strings.TrimSpace(raw), "```") {
			if inFence {
				doc.TextBlocks = append(doc.TextBlocks, model.TextBlock{Kind: model.KindCode, Content: strings.Join(fence, "\n")})
				fence = nil
			}
			inFence = !inFence
			continue
		}
		if inFence {
			fence = append(fence, raw)
			continue
		}

		if b, ok := classify(raw); ok {
			doc.TextBlocks = append(doc.TextBlocks, b)
		}
	}
	if inFence && len(fence) > 0 {
		doc.TextBlocks = append(doc.TextBlocks, model.TextBlock{Kind: model.KindCode, Content: strings.Join(fence, "\n")})
	}

	sink.Emit(ctx, progress.Event{Stage: progress.StageParsing, Progress: 1, Message: fmt.Sprintf("Processed %d lines", len(lines))})
	return doc, nil
}

// classify turns one line into a block. Blank lines yield false.
func classify(raw string) (model.TextBlock, bool) {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return model.TextBlock{}, false
	case strings.HasPrefix(trimmed, "#"):
		n := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
		content := strings.TrimSpace(trimmed[n:])
		if content == "" {
			return model.TextBlock{}, false
		}
		return model.Heading(content, n), true
	case listItem.MatchString(raw):
		return model.TextBlock{Kind: model.KindListItem, Content: trimmed}, true
	case strings.HasPrefix(raw, "\t") || strings.HasPrefix(raw, "    "):
		content := strings.TrimPrefix(raw, "\t")
		if content == raw {
			content = raw[4:]
		}
		return model.TextBlock{Kind: model.KindCode, Content: content}, true
	case strings.HasPrefix(trimmed, ">"):
		return model.TextBlock{Kind: model.KindQuote, Content: strings.TrimSpace(strings.TrimLeft(trimmed, ">"))}, true
	}
	return model.Paragraph(trimmed), true
}

var boms = [][]byte{{0xEF, 0xBB, 0xBF}, {0xFE, 0xFF}, {0xFF, 0xFE}}

// decode returns data as NFC-normalized UTF-8 and the name of the source
// encoding. Byte order marks select UTF-8 or UTF-16; other non-UTF-8 input
// is sniffed.
func decode(data []byte) (string, string, error) {
	name := "utf-8"
	switch {
	case hasBOM(data):
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return "", "", err
		}
		if !bytes.HasPrefix(data, boms[0]) {
			name = "utf-16"
		}
		data = out
	case !utf8.Valid(data):
		enc, encName, _ := charset.DetermineEncoding(data, "text/plain")
		out, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return "", "", err
		}
		name = encName
		data = out
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return norm.NFC.String(text), name, nil
}

func hasBOM(data []byte) bool {
	for _, b := range boms {
		if bytes.HasPrefix(data, b) {
			return true
		}
	}
	return false
}
