package tables

import (
	"math"
	"sort"

	"github.com/tsawler/docmark/model"
)

// tableGrid holds cell boundaries. Rows are Y coordinates sorted descending
// (PDF space, top is larger); Cols are X coordinates sorted ascending.
type tableGrid struct {
	Rows      []float64
	Cols      []float64
	HasHLines []bool
	HasVLines []bool
}

func (g *tableGrid) RowCount() int { return max(len(g.Rows)-1, 0) }
func (g *tableGrid) ColCount() int { return max(len(g.Cols)-1, 0) }

// BBox is the outer rectangle of the grid.
func (g *tableGrid) BBox() model.BBox {
	if g.RowCount() == 0 || g.ColCount() == 0 {
		return model.BBox{}
	}
	return model.BBoxFromCorners(g.Cols[0], g.Rows[len(g.Rows)-1], g.Cols[len(g.Cols)-1], g.Rows[0])
}

// findCell returns the cell containing p, or -1, -1 outside the grid.
func (g *tableGrid) findCell(p model.Point) (row, col int) {
	row, col = -1, -1
	for i := 0; i < g.RowCount(); i++ {
		if p.Y <= g.Rows[i] && p.Y >= g.Rows[i+1] {
			row = i
			break
		}
	}
	for i := 0; i < g.ColCount(); i++ {
		if p.X >= g.Cols[i] && p.X <= g.Cols[i+1] {
			col = i
			break
		}
	}
	return row, col
}

// rulingLines splits rulings into horizontal Y positions and vertical X
// positions. Thin rectangles count as one line, cell rectangles as four.
func rulingLines(rulings []model.Ruling, minLength float64) (hs, vs []float64) {
	const thin = 2.0
	for _, r := range rulings {
		b := r.BBox
		switch {
		case b.Height <= thin && b.Width >= minLength:
			hs = append(hs, b.Y+b.Height/2)
		case b.Width <= thin && b.Height >= minLength:
			vs = append(vs, b.X+b.Width/2)
		case b.Width >= minLength && b.Height >= minLength:
			hs = append(hs, b.Bottom(), b.Top())
			vs = append(vs, b.Left(), b.Right())
		}
	}
	return hs, vs
}

// gridFromRulings builds a grid when the rulings describe at least the
// minimum table size. It returns nil otherwise.
func gridFromRulings(rulings []model.Ruling, cfg Config) *tableGrid {
	hs, vs := rulingLines(rulings, cfg.MinRulingLength)
	if len(hs) == 0 || len(vs) == 0 {
		return nil
	}
	sort.Float64s(hs)
	sort.Float64s(vs)
	tol := math.Max(cfg.AlignmentTolerance, 3)
	rows := clusterValues(hs, tol)
	cols := clusterValues(vs, tol)
	if len(rows) < cfg.MinRows+1 || len(cols) < cfg.MinCols+1 {
		return nil
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(rows)))

	g := &tableGrid{Rows: rows, Cols: cols}
	g.HasHLines = make([]bool, len(rows))
	g.HasVLines = make([]bool, len(cols))
	for i := range g.HasHLines {
		g.HasHLines[i] = true
	}
	for i := range g.HasVLines {
		g.HasVLines[i] = true
	}
	return g
}

// gridFromAlignment builds a grid from fragment positions alone: rows from
// clustered vertical centers, columns from left edges shared by at least
// MinRows rows.
func gridFromAlignment(frags []model.Fragment, cfg Config) *tableGrid {
	if len(frags) == 0 {
		return nil
	}

	heights := make([]float64, len(frags))
	for i, f := range frags {
		heights[i] = f.BBox.Height
	}
	rowTol := math.Max(cfg.AlignmentTolerance, mean(heights)/2)

	centers := make([]float64, len(frags))
	for i, f := range frags {
		centers[i] = f.BBox.Center().Y
	}
	sort.Float64s(centers)
	rowCenters := clusterValues(centers, rowTol)
	if len(rowCenters) < cfg.MinRows {
		return nil
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(rowCenters)))

	top, bottom := math.Inf(-1), math.Inf(1)
	left, right := math.Inf(1), math.Inf(-1)
	for _, f := range frags {
		top = math.Max(top, f.BBox.Top())
		bottom = math.Min(bottom, f.BBox.Bottom())
		left = math.Min(left, f.BBox.Left())
		right = math.Max(right, f.BBox.Right())
	}

	rows := []float64{top}
	for i := 0; i+1 < len(rowCenters); i++ {
		rows = append(rows, (rowCenters[i]+rowCenters[i+1])/2)
	}
	rows = append(rows, bottom)

	colTol := cfg.AlignmentTolerance * 3
	lefts := make([]float64, len(frags))
	for i, f := range frags {
		lefts[i] = f.BBox.Left()
	}
	sort.Float64s(lefts)
	var cols []float64
	for _, x := range clusterValues(lefts, colTol) {
		if rowsSharingLeft(frags, x, colTol, rowCenters, rowTol) >= cfg.MinRows {
			cols = append(cols, x-colTol)
		}
	}
	if len(cols) < cfg.MinCols {
		return nil
	}
	cols[0] = math.Min(cols[0], left)
	cols = append(cols, right)

	return &tableGrid{
		Rows:      rows,
		Cols:      cols,
		HasHLines: make([]bool, len(rows)),
		HasVLines: make([]bool, len(cols)),
	}
}

func rowsSharingLeft(frags []model.Fragment, x, tol float64, rowCenters []float64, rowTol float64) int {
	seen := map[int]bool{}
	for _, f := range frags {
		if math.Abs(f.BBox.Left()-x) > tol {
			continue
		}
		cy := f.BBox.Center().Y
		for i, c := range rowCenters {
			if math.Abs(cy-c) <= rowTol {
				seen[i] = true
				break
			}
		}
	}
	return len(seen)
}

// markRulings flags grid boundaries that coincide with drawn lines.
func (g *tableGrid) markRulings(rulings []model.Ruling, cfg Config) {
	hs, vs := rulingLines(rulings, cfg.MinRulingLength)
	tol := math.Max(cfg.AlignmentTolerance, 3)
	for i, y := range g.Rows {
		for _, h := range hs {
			if math.Abs(h-y) < tol {
				g.HasHLines[i] = true
				break
			}
		}
	}
	for i, x := range g.Cols {
		for _, v := range vs {
			if math.Abs(v-x) < tol {
				g.HasVLines[i] = true
				break
			}
		}
	}
}

// clusterValues merges sorted values closer than tolerance, averaging each
// cluster center as it grows.
func clusterValues(values []float64, tolerance float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	clustered := []float64{values[0]}
	for i := 1; i < len(values); i++ {
		last := clustered[len(clustered)-1]
		if values[i]-last > tolerance {
			clustered = append(clustered, values[i])
		} else {
			clustered[len(clustered)-1] = (last + values[i]) / 2
		}
	}
	return clustered
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}
