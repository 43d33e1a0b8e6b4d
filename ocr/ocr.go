// Package ocr recognizes text in raster images.
//
// Two engines implement [Engine]:
//
//   - [Tesseract] shells out to the tesseract binary and is always available
//     when the binary is installed.
//   - [Client] binds libtesseract through gosseract. It is compiled only with
//     the "ocr" build tag; without it [NewClient] returns [ErrOCRNotEnabled].
//
// On Ubuntu/Debian install the engine with:
//
//	apt-get install tesseract-ocr
package ocr

import (
	"context"
	"errors"
	"image"
)

// ErrOCRNotEnabled is returned when the gosseract engine was not compiled in.
// Rebuild with -tags ocr to enable it.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// Word is one recognized token. Confidence is in [0,1].
type Word struct {
	Text       string
	Box        image.Rectangle
	Confidence float64
}

// Engine recognizes text in encoded images (PNG, JPEG, TIFF, ...).
type Engine interface {
	// Text returns the recognized text, trimmed.
	Text(ctx context.Context, img []byte) (string, error)
	// Words returns word tokens with pixel boxes and confidences.
	Words(ctx context.Context, img []byte) ([]Word, error)
	Close() error
}
