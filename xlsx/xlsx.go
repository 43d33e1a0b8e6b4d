// Package xlsx parses Excel workbooks into tables, one per sheet.
package xlsx

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tsawler/docmark/format"
	"github.com/tsawler/docmark/markdown"
	"github.com/tsawler/docmark/model"
	"github.com/tsawler/docmark/parser"
	"github.com/tsawler/docmark/progress"
)

// MarkdownKeyPrefix prefixes the metadata key holding each sheet's
// markdown rendering.
const MarkdownKeyPrefix = "markdown_"

// Parser reads .xlsx workbooks.
type Parser struct{}

// New returns a workbook parser.
func New() *Parser { return &Parser{} }

func (*Parser) Name() string { return "xlsx" }

func (*Parser) Supports(path string) bool { return format.Detect(path) == format.XLSX }

// Parse turns every non-empty sheet into a table captioned with the sheet
// name. Cell values are the formatted values excelize reports.
func (p *Parser) Parse(ctx context.Context, path string, sink progress.Sink) (*model.Document, error) {
	sink = progress.OrDiscard(sink)
	if err := format.Verify(path); err != nil {
		return nil, parser.Errorf(path, err, "failed to parse XLSX")
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, parser.Errorf(path, err, "failed to parse XLSX")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	doc := model.NewDocument(format.XLSX.String())
	doc.Metadata[model.MetaSheets] = sheets
	if props, err := f.GetDocProps(); err == nil {
		doc.Metadata.SetString(model.MetaTitle, props.Title)
		doc.Metadata.SetString(model.MetaAuthor, props.Creator)
		doc.Metadata.SetString(model.MetaSubject, props.Subject)
	}

	for i, name := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sink.Emit(ctx, progress.Event{
			Stage:    progress.StageParsing,
			Progress: float64(i) / float64(len(sheets)),
			Message:  "Processing sheet: " + name,
		})

		rows, err := f.GetRows(name)
		if err != nil {
			return nil, parser.Errorf(path, err, "failed to read sheet %q", name)
		}
		t, ok := sheetTable(rows)
		if !ok {
			continue
		}
		doc.Metadata[MarkdownKeyPrefix+name] = markdown.Table(t)
		t.Caption = "Sheet: " + name
		doc.Tables = append(doc.Tables, t)
	}

	sink.Emit(ctx, progress.Event{
		Stage:    progress.StageParsing,
		Progress: 1,
		Message:  fmt.Sprintf("XLSX parsing completed: %d sheets, %d tables", len(sheets), len(doc.Tables)),
	})
	return doc, nil
}

// sheetTable builds a table from raw sheet rows. The first non-empty row is
// the header, padded to the widest row; fully empty rows are dropped. A
// sheet with no content yields false.
func sheetTable(rows [][]string) (model.TableBlock, bool) {
	var kept [][]string
	width := 0
	for _, row := range rows {
		if blank(row) {
			continue
		}
		kept = append(kept, row)
		width = max(width, len(row))
	}
	if len(kept) == 0 {
		return model.TableBlock{}, false
	}

	headers := make([]string, width)
	copy(headers, kept[0])
	return model.NewTable(headers, kept[1:]), true
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
