package model

// Fragment is a run of text on a page with its box, used by layout-based
// table detection.
type Fragment struct {
	Text     string
	BBox     BBox
	FontSize float64
}

// Ruling is a drawn rectangle or line segment on a page.
type Ruling struct {
	BBox BBox
}

// Horizontal reports whether the ruling is wider than tall.
func (r Ruling) Horizontal() bool { return r.BBox.Width >= r.BBox.Height }
