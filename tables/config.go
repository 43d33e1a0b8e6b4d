package tables

import "time"

// Config holds rule based detector parameters.
type Config struct {
	// Minimum rows for a valid table
	MinRows int

	// Minimum columns for a valid table
	MinCols int

	// Minimum confidence threshold (0-1)
	MinConfidence float64

	// Tolerance for row/column alignment (points)
	AlignmentTolerance float64

	// Vertical gap that separates fragment clusters (points)
	ClusterGap float64

	// Rulings shorter than this are ignored (points)
	MinRulingLength float64
}

// DefaultConfig returns default detector configuration.
func DefaultConfig() Config {
	return Config{
		MinRows:            2,
		MinCols:            2,
		MinConfidence:      0.5,
		AlignmentTolerance: 2.0,
		ClusterGap:         50,
		MinRulingLength:    10,
	}
}

// Options configures an Engine.
type Options struct {
	Detector Config

	// AIVisionFallback lets Auto try the vision method after rule based
	// and OCR both found nothing.
	AIVisionFallback bool

	// MinWordConfidence drops OCR tokens below it (0-1).
	MinWordConfidence float64

	// RowTolerance is the vertical distance in pixels within which OCR
	// tokens share a row.
	RowTolerance int

	// MinRegionArea is the smallest table region kept, in pixels.
	MinRegionArea int

	// MaxDimension bounds the working image used for region detection.
	MaxDimension int

	// VisionConfidence is stamped on tables transcribed by the model.
	VisionConfidence float64

	// Timeout bounds each OCR call. It is measured from the call, not
	// from the caller's context, which may be cancelled meanwhile.
	Timeout time.Duration
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		Detector:          DefaultConfig(),
		MinWordConfidence: 0.5,
		RowTolerance:      20,
		MinRegionArea:     5000,
		MaxDimension:      2000,
		VisionConfidence:  0.9,
		Timeout:           30 * time.Second,
	}
}
