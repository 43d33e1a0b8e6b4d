package model

import "math"

// Point is a position in page space.
type Point struct {
	X, Y float64
}

// BBox is an axis-aligned rectangle. Y is the bottom edge for PDF sources
// and the top edge for raster sources; callers within one source never mix
// the two.
type BBox struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// NewBBox creates a bounding box from an origin and a size.
func NewBBox(x, y, width, height float64) BBox {
	return BBox{X: x, Y: y, Width: width, Height: height}
}

// BBoxFromCorners creates the smallest box holding both corners.
func BBoxFromCorners(x0, y0, x1, y1 float64) BBox {
	return BBox{
		X:      math.Min(x0, x1),
		Y:      math.Min(y0, y1),
		Width:  math.Abs(x1 - x0),
		Height: math.Abs(y1 - y0),
	}
}

func (b BBox) Left() float64   { return b.X }
func (b BBox) Right() float64  { return b.X + b.Width }
func (b BBox) Bottom() float64 { return b.Y }
func (b BBox) Top() float64    { return b.Y + b.Height }
func (b BBox) Area() float64   { return b.Width * b.Height }

// Center returns the midpoint of the box.
func (b BBox) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Contains reports whether p lies inside the box, edges included.
func (b BBox) Contains(p Point) bool {
	return p.X >= b.Left() && p.X <= b.Right() &&
		p.Y >= b.Bottom() && p.Y <= b.Top()
}

// Intersects reports whether the boxes share any point.
func (b BBox) Intersects(other BBox) bool {
	return b.Right() >= other.Left() && b.Left() <= other.Right() &&
		b.Top() >= other.Bottom() && b.Bottom() <= other.Top()
}

// Union returns the smallest box covering both boxes. An empty receiver
// yields other unchanged.
func (b BBox) Union(other BBox) BBox {
	if b.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return b
	}
	return BBoxFromCorners(
		math.Min(b.Left(), other.Left()),
		math.Min(b.Bottom(), other.Bottom()),
		math.Max(b.Right(), other.Right()),
		math.Max(b.Top(), other.Top()),
	)
}

// Expand grows the box by margin on every side.
func (b BBox) Expand(margin float64) BBox {
	return BBox{
		X:      b.X - margin,
		Y:      b.Y - margin,
		Width:  b.Width + 2*margin,
		Height: b.Height + 2*margin,
	}
}

// OverlapRatio is the intersection area divided by the smaller area, in [0,1].
func (b BBox) OverlapRatio(other BBox) float64 {
	if !b.Intersects(other) {
		return 0
	}
	w := math.Min(b.Right(), other.Right()) - math.Max(b.Left(), other.Left())
	h := math.Min(b.Top(), other.Top()) - math.Max(b.Bottom(), other.Bottom())
	minArea := math.Min(b.Area(), other.Area())
	if minArea <= 0 || w <= 0 || h <= 0 {
		return 0
	}
	return (w * h) / minArea
}

// IsEmpty reports whether the box has no area.
func (b BBox) IsEmpty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Location places a block on a page. Pages are numbered from 1.
type Location struct {
	Page int
	BBox BBox
}

// At returns a Location on page with the given box.
func At(page int, box BBox) *Location {
	return &Location{Page: page, BBox: box}
}
