package docx

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tsawler/docmark/format"
	"github.com/tsawler/docmark/model"
	"github.com/tsawler/docmark/parser"
	"github.com/tsawler/docmark/progress"
)

// Parser reads .docx files.
type Parser struct{}

// New returns a DOCX parser.
func New() *Parser { return &Parser{} }

func (*Parser) Name() string { return "docx" }

func (*Parser) Supports(p string) bool { return format.Detect(p) == format.DOCX }

// Parse extracts paragraphs, headings, list items, tables and every image
// part the document references.
func (p *Parser) Parse(ctx context.Context, filename string, sink progress.Sink) (*model.Document, error) {
	sink = progress.OrDiscard(sink)
	if err := format.Verify(filename); err != nil {
		return nil, parser.Errorf(filename, err, "failed to parse DOCX")
	}
	r, err := Open(filename)
	if err != nil {
		return nil, parser.Errorf(filename, err, "failed to parse DOCX")
	}
	defer r.Close()

	doc := model.NewDocument(format.DOCX.String())
	if r.core != nil {
		doc.Metadata.SetString(model.MetaTitle, r.core.Title)
		doc.Metadata.SetString(model.MetaAuthor, r.core.Creator)
		doc.Metadata.SetString(model.MetaSubject, r.core.Subject)
		doc.Metadata.SetString("created", r.core.Created)
		doc.Metadata.SetString("modified", r.core.Modified)
	}

	paras := r.paragraphs()
	lists := newNumbering(r.numbering)
	for i, para := range paras {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if b, ok := r.block(para, lists); ok {
			doc.TextBlocks = append(doc.TextBlocks, b)
		}
		if (i+1)%50 == 0 {
			sink.Emit(ctx, progress.Event{
				Stage:    progress.StageParsing,
				Progress: 0.7 * float64(i+1) / float64(len(paras)),
				Message:  fmt.Sprintf("Parsed paragraph %d/%d", i+1, len(paras)),
			})
		}
	}
	sink.Emit(ctx, progress.Event{Stage: progress.StageParsing, Progress: 0.7, Message: fmt.Sprintf("Parsed %d paragraphs", len(paras))})

	for _, tbl := range r.tables() {
		if t, ok := tableBlock(tableGrid(tbl)); ok {
			doc.Tables = append(doc.Tables, t)
		}
	}
	sink.Emit(ctx, progress.Event{Stage: progress.StageParsing, Progress: 0.8, Message: fmt.Sprintf("Extracted %d tables", len(doc.Tables))})

	doc.Images, err = r.images()
	if err != nil {
		return nil, parser.Errorf(filename, err, "failed to extract DOCX images")
	}
	sink.Emit(ctx, progress.Event{Stage: progress.StageParsing, Progress: 1, Message: "DOCX parsing completed"})
	return doc, nil
}

// block converts one paragraph. Empty paragraphs yield false.
func (r *Reader) block(para paragraphXML, lists *numbering) (model.TextBlock, bool) {
	text := strings.TrimSpace(paragraphText(para))
	if text == "" {
		return model.TextBlock{}, false
	}
	if level := r.headingLevel(para); level > 0 {
		b := model.Heading(text, level)
		b.Style = map[string]any{"style": r.styleName(para.Properties.Style.Val)}
		return b, true
	}
	if numID := para.Properties.NumPr.NumID.Val; isList(numID) {
		ilvl, _ := strconv.Atoi(para.Properties.NumPr.ILvl.Val)
		return model.TextBlock{
			Kind:    model.KindListItem,
			Content: lists.prefix(numID, ilvl) + " " + text,
			Style:   map[string]any{"list_level": ilvl},
		}, true
	}
	b := model.Paragraph(text)
	if bold, italic := emphasis(para); bold || italic {
		b.Style = map[string]any{"bold": bold, "italic": italic}
	}
	return b, true
}

// emphasis reports whether every text-bearing run is bold or italic.
func emphasis(para paragraphXML) (bold, italic bool) {
	bold, italic = true, true
	seen := false
	for _, run := range para.Runs {
		if strings.TrimSpace(runText(run)) == "" {
			continue
		}
		seen = true
		bold = bold && on(run.Properties.Bold)
		italic = italic && on(run.Properties.Italic)
	}
	return bold && seen, italic && seen
}

func on(v *valXML) bool {
	return v != nil && v.Val != "false" && v.Val != "0"
}

// images extracts every internal image part referenced from the document
// relationships, whether or not a drawing places it.
func (r *Reader) images() ([]model.ImageBlock, error) {
	frames := r.drawings()
	var out []model.ImageBlock
	for _, rel := range r.imageParts() {
		data, err := r.read(rel.Target)
		if err != nil {
			return nil, err
		}
		img := model.ImageBlock{
			ID:     uuid.NewString(),
			Data:   data,
			Format: imageFormat(rel.Target, data),
			Source: path.Base(rel.Target),
			Index:  len(out),
		}
		if f, ok := frames[rel.ID]; ok {
			img.AltText = strings.TrimSpace(f.DocPr.Descr)
			img.Caption = strings.TrimSpace(f.DocPr.Title)
		}
		out = append(out, img)
	}
	return out, nil
}

// imageFormat prefers the magic bytes and falls back to the extension.
func imageFormat(name string, data []byte) string {
	if t := format.ImageType(data); t != "" {
		return t
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "jpg" {
		return "jpeg"
	}
	return ext
}
