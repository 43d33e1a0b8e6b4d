package pptx

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/tsawler/docmark/format"
	"github.com/tsawler/docmark/model"
	"github.com/tsawler/docmark/parser"
	"github.com/tsawler/docmark/progress"
)

// emuPerPoint converts EMUs to PDF-style points.
const emuPerPoint = 12700

// Parser reads .pptx presentations.
type Parser struct{}

// New returns a presentation parser.
func New() *Parser { return &Parser{} }

func (*Parser) Name() string { return "pptx" }

func (*Parser) Supports(p string) bool { return format.Detect(p) == format.PPTX }

// Parse walks every slide. Title placeholders become level 1 headings,
// other text becomes paragraphs or list items, pictures become images and
// table frames become tables, all located on their slide number.
func (p *Parser) Parse(ctx context.Context, filename string, sink progress.Sink) (*model.Document, error) {
	sink = progress.OrDiscard(sink)
	if err := format.Verify(filename); err != nil {
		return nil, parser.Errorf(filename, err, "failed to parse PPTX")
	}
	r, err := Open(filename)
	if err != nil {
		return nil, parser.Errorf(filename, err, "failed to parse PPTX")
	}
	defer r.Close()

	total := r.SlideCount()
	doc := model.NewDocument(format.PPTX.String())
	doc.Metadata[model.MetaSlides] = total
	if r.core != nil {
		doc.Metadata.SetString(model.MetaTitle, r.core.Title)
		doc.Metadata.SetString(model.MetaAuthor, r.core.Creator)
		doc.Metadata.SetString(model.MetaSubject, r.core.Subject)
	}

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sink.Emit(ctx, progress.Event{
			Stage:    progress.StageParsing,
			Progress: float64(i) / float64(total),
			Message:  fmt.Sprintf("Processing slide %d of %d", i+1, total),
		})
		slide, err := r.Slide(i)
		if err != nil {
			return nil, parser.Errorf(filename, err, "failed to parse PPTX")
		}
		if err := r.collect(doc, slide, slide.Tree); err != nil {
			return nil, parser.Errorf(filename, err, "failed to extract slide %d", slide.Number)
		}
	}

	sink.Emit(ctx, progress.Event{Stage: progress.StageParsing, Progress: 1, Message: "PPTX parsing completed"})
	return doc, nil
}

// collect appends the content of one shape tree, recursing into groups.
func (r *Reader) collect(doc *model.Document, slide *Slide, tree shapeTreeXML) error {
	for _, sp := range tree.Sp {
		doc.TextBlocks = append(doc.TextBlocks, shapeBlocks(sp, slide.Number)...)
	}
	for _, gf := range tree.GraphicFrame {
		if gf.Graphic.GraphicData.Tbl == nil {
			continue
		}
		if t, ok := tableBlock(*gf.Graphic.GraphicData.Tbl); ok {
			t.Location = location(slide.Number, gf.Xfrm)
			doc.Tables = append(doc.Tables, t)
		}
	}
	for _, pic := range tree.Pic {
		img, ok, err := r.picture(pic, slide)
		if err != nil {
			return err
		}
		if ok {
			img.Index = len(doc.Images)
			doc.Images = append(doc.Images, img)
		}
	}
	for _, grp := range tree.GrpSp {
		if err := r.collect(doc, slide, grp); err != nil {
			return err
		}
	}
	return nil
}

// shapeBlocks turns each non-empty paragraph of a shape into a block.
func shapeBlocks(sp spXML, page int) []model.TextBlock {
	if sp.TxBody == nil {
		return nil
	}
	title := false
	if ph := sp.NvSpPr.NvPr.Ph; ph != nil {
		title = ph.Type == "title" || ph.Type == "ctrTitle"
	}
	loc := location(page, sp.SpPr.Xfrm)

	var out []model.TextBlock
	for _, para := range sp.TxBody.P {
		text := paragraphText(para)
		if text == "" {
			continue
		}
		var b model.TextBlock
		switch {
		case title:
			b = model.Heading(text, 1)
		case bulleted(para):
			b = model.TextBlock{Kind: model.KindListItem, Content: text, Style: map[string]any{"list_level": para.PPr.Lvl}}
		default:
			b = model.Paragraph(text)
		}
		b.Location = loc
		out = append(out, b)
	}
	return out
}

func paragraphText(p pXML) string {
	var sb strings.Builder
	for _, r := range p.R {
		sb.WriteString(r.T)
	}
	for _, f := range p.Fld {
		sb.WriteString(f.T)
	}
	return strings.TrimSpace(sb.String())
}

// bulleted reports an explicit bullet or auto-number on the paragraph.
func bulleted(p pXML) bool {
	return p.PPr != nil && p.PPr.BuNone == nil && (p.PPr.BuChar != nil || p.PPr.BuAutoNum != nil)
}

// picture resolves a p:pic through the slide relationships.
func (r *Reader) picture(pic picXML, slide *Slide) (model.ImageBlock, bool, error) {
	rel, ok := slide.Rels[pic.BlipFill.Blip.Embed]
	if !ok || rel.Type != relTypeImage || rel.TargetMode == "External" {
		return model.ImageBlock{}, false, nil
	}
	data, err := r.read(rel.Target)
	if err != nil {
		return model.ImageBlock{}, false, err
	}
	name := path.Base(rel.Target)
	ft := format.ImageType(data)
	if ft == "" {
		ft = strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	}
	return model.ImageBlock{
		ID:       uuid.NewString(),
		Data:     data,
		Format:   ft,
		AltText:  strings.TrimSpace(pic.NvPicPr.CNvPr.Descr),
		Source:   name,
		Page:     slide.Number,
		Section:  fmt.Sprintf("Slide %d", slide.Number),
		Location: location(slide.Number, pic.SpPr.Xfrm),
	}, true, nil
}

// tableBlock converts a DrawingML table; the first row is the header.
// Merge continuation cells are empty.
func tableBlock(tbl tblXML) (model.TableBlock, bool) {
	var grid [][]string
	width := 0
	for _, tr := range tbl.Tr {
		row := make([]string, 0, len(tr.Tc))
		for _, tc := range tr.Tc {
			row = append(row, cellText(tc))
		}
		width = max(width, len(row))
		grid = append(grid, row)
	}
	if len(grid) == 0 || width == 0 {
		return model.TableBlock{}, false
	}
	headers := make([]string, width)
	copy(headers, grid[0])
	return model.NewTable(headers, grid[1:]), true
}

func cellText(tc tcXML) string {
	if tc.TxBody == nil || truthy(tc.HMerge) || truthy(tc.VMerge) {
		return ""
	}
	var parts []string
	for _, p := range tc.TxBody.P {
		if t := paragraphText(p); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func truthy(v string) bool { return v == "1" || v == "true" }

// location places a shape on its slide, converting EMUs to points.
func location(page int, x *xfrmXML) *model.Location {
	if x == nil {
		return &model.Location{Page: page}
	}
	return model.At(page, model.NewBBox(
		float64(x.Off.X)/emuPerPoint,
		float64(x.Off.Y)/emuPerPoint,
		float64(x.Ext.Cx)/emuPerPoint,
		float64(x.Ext.Cy)/emuPerPoint,
	))
}
