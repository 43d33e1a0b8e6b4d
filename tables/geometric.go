package tables

import (
	"math"
	"sort"
	"strings"

	"github.com/tsawler/docmark/model"
)

// GeometricDetector finds tables from the positions of text fragments and
// drawn rulings on one page.
type GeometricDetector struct {
	config Config
}

// NewGeometricDetector creates a detector with cfg.
func NewGeometricDetector(cfg Config) *GeometricDetector {
	return &GeometricDetector{config: cfg}
}

// detected is a table before header selection.
type detected struct {
	cells      [][]string
	bbox       model.BBox
	confidence float64
}

// Detect returns the tables found on a page, top to bottom.
func (d *GeometricDetector) Detect(frags []model.Fragment, rulings []model.Ruling) []detected {
	if len(frags) == 0 {
		return nil
	}

	var found []detected
	rest := frags
	if grid := gridFromRulings(rulings, d.config); grid != nil {
		var inside []model.Fragment
		rest = nil
		box := grid.BBox().Expand(d.config.AlignmentTolerance)
		for _, f := range frags {
			if box.Contains(f.BBox.Center()) {
				inside = append(inside, f)
			} else {
				rest = append(rest, f)
			}
		}
		if t, ok := d.fromGrid(grid, inside); ok {
			found = append(found, t)
		}
	}

	for _, cluster := range d.clusterFragments(rest) {
		if len(cluster) < d.config.MinRows*d.config.MinCols {
			continue
		}
		grid := gridFromAlignment(cluster, d.config)
		if grid == nil {
			continue
		}
		grid.markRulings(rulings, d.config)
		if t, ok := d.fromGrid(grid, cluster); ok {
			found = append(found, t)
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].bbox.Top() > found[j].bbox.Top()
	})
	return found
}

// clusterFragments groups fragments separated by less than ClusterGap
// vertically.
func (d *GeometricDetector) clusterFragments(frags []model.Fragment) [][]model.Fragment {
	if len(frags) == 0 {
		return nil
	}
	sorted := append([]model.Fragment(nil), frags...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].BBox.Y > sorted[j].BBox.Y
	})

	var clusters [][]model.Fragment
	current := []model.Fragment{sorted[0]}
	for _, f := range sorted[1:] {
		last := current[len(current)-1].BBox
		if last.Y-f.BBox.Top() > d.config.ClusterGap {
			clusters = append(clusters, current)
			current = []model.Fragment{f}
			continue
		}
		current = append(current, f)
	}
	return append(clusters, current)
}

func (d *GeometricDetector) fromGrid(grid *tableGrid, frags []model.Fragment) (detected, bool) {
	if grid.RowCount() < d.config.MinRows || grid.ColCount() < d.config.MinCols {
		return detected{}, false
	}
	confidence := d.calculateConfidence(grid, frags)
	if confidence < d.config.MinConfidence {
		return detected{}, false
	}

	cells := assignFragments(grid, frags)
	cells = dropEmpty(cells)
	if len(cells) < d.config.MinRows || len(cells[0]) < d.config.MinCols {
		return detected{}, false
	}
	return detected{cells: cells, bbox: grid.BBox(), confidence: confidence}, true
}

// calculateConfidence combines grid regularity (30%), alignment quality
// (30%), line presence (20%) and cell occupancy (20%).
func (d *GeometricDetector) calculateConfidence(grid *tableGrid, frags []model.Fragment) float64 {
	score := d.gridRegularity(grid)*0.3 +
		d.alignmentQuality(frags, grid)*0.3 +
		lineScore(grid)*0.2 +
		cellOccupancy(frags, grid)*0.2
	return math.Min(score, 1)
}

// gridRegularity is one minus the coefficient of variation of row heights
// and column widths, averaged.
func (d *GeometricDetector) gridRegularity(grid *tableGrid) float64 {
	if grid.RowCount() < 2 || grid.ColCount() < 2 {
		return 0
	}
	heights := make([]float64, grid.RowCount())
	for i := range heights {
		heights[i] = grid.Rows[i] - grid.Rows[i+1]
	}
	widths := make([]float64, grid.ColCount())
	for i := range widths {
		widths[i] = grid.Cols[i+1] - grid.Cols[i]
	}
	rowCV := math.Sqrt(variance(heights)) / mean(heights)
	colCV := math.Sqrt(variance(widths)) / mean(widths)
	return (math.Max(0, 1-rowCV) + math.Max(0, 1-colCV)) / 2
}

// alignmentQuality is the fraction of fragments with at least two edges on
// grid lines.
func (d *GeometricDetector) alignmentQuality(frags []model.Fragment, grid *tableGrid) float64 {
	if len(frags) == 0 {
		return 0
	}
	aligned := 0
	for _, f := range frags {
		edges := 0
		for _, hit := range []bool{
			d.nearLine(f.BBox.Left(), grid.Cols),
			d.nearLine(f.BBox.Right(), grid.Cols),
			d.nearLine(f.BBox.Top(), grid.Rows),
			d.nearLine(f.BBox.Bottom(), grid.Rows),
		} {
			if hit {
				edges++
			}
		}
		if edges >= 2 {
			aligned++
		}
	}
	return float64(aligned) / float64(len(frags))
}

func (d *GeometricDetector) nearLine(v float64, lines []float64) bool {
	for _, l := range lines {
		if math.Abs(v-l) < d.config.AlignmentTolerance*2 {
			return true
		}
	}
	return false
}

func lineScore(grid *tableGrid) float64 {
	if len(grid.HasHLines) == 0 || len(grid.HasVLines) == 0 {
		return 0
	}
	return (fraction(grid.HasHLines) + fraction(grid.HasVLines)) / 2
}

func fraction(flags []bool) float64 {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return float64(n) / float64(len(flags))
}

func cellOccupancy(frags []model.Fragment, grid *tableGrid) float64 {
	total := grid.RowCount() * grid.ColCount()
	if total == 0 {
		return 0
	}
	occupied := map[[2]int]bool{}
	for _, f := range frags {
		r, c := grid.findCell(f.BBox.Center())
		if r >= 0 && c >= 0 {
			occupied[[2]int{r, c}] = true
		}
	}
	return float64(len(occupied)) / float64(total)
}

// assignFragments places fragments in reading order into the cell holding
// their center.
func assignFragments(grid *tableGrid, frags []model.Fragment) [][]string {
	sorted := append([]model.Fragment(nil), frags...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].BBox, sorted[j].BBox
		if math.Abs(a.Top()-b.Top()) > 1 {
			return a.Top() > b.Top()
		}
		return a.X < b.X
	})

	cells := make([][]string, grid.RowCount())
	for i := range cells {
		cells[i] = make([]string, grid.ColCount())
	}
	for _, f := range sorted {
		r, c := grid.findCell(f.BBox.Center())
		if r < 0 || c < 0 {
			continue
		}
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		if cells[r][c] != "" {
			cells[r][c] += " "
		}
		cells[r][c] += text
	}
	return cells
}

// dropEmpty removes rows and columns without any text.
func dropEmpty(cells [][]string) [][]string {
	var rows [][]string
	for _, row := range cells {
		for _, c := range row {
			if c != "" {
				rows = append(rows, row)
				break
			}
		}
	}
	if len(rows) == 0 {
		return nil
	}
	var keep []int
	for c := range rows[0] {
		for _, row := range rows {
			if row[c] != "" {
				keep = append(keep, c)
				break
			}
		}
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = make([]string, len(keep))
		for j, c := range keep {
			out[i][j] = row[c]
		}
	}
	return out
}
