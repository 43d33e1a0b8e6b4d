package tables

import (
	"context"
	"image"
	"math"
	"sort"
	"strings"

	"github.com/tsawler/docmark/model"
	"github.com/tsawler/docmark/ocr"
)

// ocrTables detects table regions in every raster of src, recognizes the
// words inside each and clusters them into rows.
func (e *Engine) ocrTables(ctx context.Context, src Source) ([]model.TableBlock, error) {
	if e.ocr == nil {
		return nil, ErrNoEngine
	}
	var out []model.TableBlock
	for _, data := range images(src) {
		img, err := decodeImage(data)
		if err != nil {
			return nil, err
		}
		regions := tableRegions(img, e.opts.MaxDimension, e.opts.MinRegionArea)
		if len(regions) == 0 {
			regions = []image.Rectangle{img.Bounds()}
		}
		for _, r := range regions {
			crop, err := cropPNG(img, r)
			if err != nil {
				return nil, err
			}
			words, err := e.words(ctx, crop)
			if err != nil {
				return nil, err
			}
			t, ok := e.tableFromWords(words)
			if !ok {
				continue
			}
			t.Location = model.At(src.PageNumber(), model.NewBBox(
				float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy())))
			out = append(out, t)
		}
	}
	return out, nil
}

// words runs OCR on a detached context with its own timeout.
func (e *Engine) words(ctx context.Context, img []byte) ([]ocr.Word, error) {
	timeout := e.opts.Timeout
	if timeout <= 0 {
		timeout = DefaultOptions().Timeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return e.ocr.Words(ctx, img)
}

// tableFromWords clusters OCR tokens into rows by vertical center and orders
// each row by horizontal center. The first row is the header. Confidence is
// the mean confidence of the tokens used.
func (e *Engine) tableFromWords(words []ocr.Word) (model.TableBlock, bool) {
	var kept []ocr.Word
	for _, w := range words {
		if w.Confidence >= e.opts.MinWordConfidence && strings.TrimSpace(w.Text) != "" {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		return model.TableBlock{}, false
	}

	sort.SliceStable(kept, func(i, j int) bool { return centerY(kept[i]) < centerY(kept[j]) })

	var rows [][]ocr.Word
	anchor := math.Inf(-1)
	for _, w := range kept {
		cy := centerY(w)
		if len(rows) == 0 || math.Abs(cy-anchor) > float64(e.opts.RowTolerance) {
			rows = append(rows, []ocr.Word{w})
			anchor = cy
			continue
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], w)
	}
	if len(rows) < 2 {
		return model.TableBlock{}, false
	}

	cells := make([][]string, len(rows))
	sum := 0.0
	for i, row := range rows {
		sort.SliceStable(row, func(a, b int) bool { return centerX(row[a]) < centerX(row[b]) })
		cells[i] = mergeWords(row)
		for _, w := range row {
			sum += w.Confidence
		}
	}

	t := model.NewTable(cells[0], cells[1:])
	t.Stamp(string(OCR), sum/float64(len(kept)))
	return t, true
}

// mergeWords joins neighbours separated by less than the word height into
// one cell.
func mergeWords(row []ocr.Word) []string {
	var cells []string
	for i, w := range row {
		if i > 0 {
			prev := row[i-1]
			gap := w.Box.Min.X - prev.Box.Max.X
			if gap < max(prev.Box.Dy(), w.Box.Dy()) {
				cells[len(cells)-1] += " " + w.Text
				continue
			}
		}
		cells = append(cells, w.Text)
	}
	return cells
}

func centerY(w ocr.Word) float64 { return float64(w.Box.Min.Y+w.Box.Max.Y) / 2 }
func centerX(w ocr.Word) float64 { return float64(w.Box.Min.X+w.Box.Max.X) / 2 }
