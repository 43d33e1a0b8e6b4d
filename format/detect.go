// Package format maps file names and leading bytes to the document formats
// the pipeline accepts.
package format

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrContentMismatch reports a file whose content is not the format its
// extension names.
var ErrContentMismatch = errors.New("content does not match file extension")

// Format is an input family.
type Format int

const (
	// Unknown indicates an unsupported file.
	Unknown Format = iota
	// PDF documents.
	PDF
	// DOCX word-processor documents.
	DOCX
	// XLSX spreadsheets.
	XLSX
	// PPTX slide decks.
	PPTX
	// Text covers plain text and markdown.
	Text
	// Image covers raster images.
	Image
)

var extensions = map[Format][]string{
	PDF:   {".pdf"},
	DOCX:  {".docx"},
	XLSX:  {".xlsx"},
	PPTX:  {".pptx"},
	Text:  {".txt", ".md", ".markdown"},
	Image: {".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".webp"},
}

// String returns the format tag stored in document metadata.
func (f Format) String() string {
	switch f {
	case PDF:
		return "PDF"
	case DOCX:
		return "DOCX"
	case XLSX:
		return "XLSX"
	case PPTX:
		return "PPTX"
	case Text:
		return "TXT"
	case Image:
		return "IMAGE"
	default:
		return "Unknown"
	}
}

// Extensions returns the extensions accepted for the format, lower case
// with the leading dot.
func (f Format) Extensions() []string {
	return append([]string(nil), extensions[f]...)
}

// Detect determines the format from the file name extension.
func Detect(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	for f, exts := range extensions {
		for _, e := range exts {
			if e == ext {
				return f
			}
		}
	}
	return Unknown
}

// Supported returns every accepted extension, sorted.
func Supported() []string {
	var all []string
	for f := range extensions {
		all = append(all, f.Extensions()...)
	}
	sort.Strings(all)
	return all
}

var imageMagic = []struct {
	prefix []byte
	name   string
}{
	{[]byte{0x89, 'P', 'N', 'G'}, "png"},
	{[]byte{0xFF, 0xD8, 0xFF}, "jpeg"},
	{[]byte("GIF8"), "gif"},
	{[]byte("BM"), "bmp"},
	{[]byte{'I', 'I', 0x2A, 0x00}, "tiff"},
	{[]byte{'M', 'M', 0x00, 0x2A}, "tiff"},
}

// ImageType returns the image encoding named by the leading bytes, or ""
// when data is not a recognized raster.
func ImageType(data []byte) string {
	for _, m := range imageMagic {
		if bytes.HasPrefix(data, m.prefix) {
			return m.name
		}
	}
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "webp"
	}
	return ""
}

// DetectFromMagic classifies data by its leading bytes. ZIP containers
// return Unknown; use DetectFromReader to tell them apart.
func DetectFromMagic(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return PDF
	case ImageType(data) != "":
		return Image
	}
	return Unknown
}

// DetectFromReader inspects content, opening ZIP containers to find the
// Office Open XML part that identifies them.
func DetectFromReader(r io.ReaderAt, size int64) (Format, error) {
	magic := make([]byte, 16)
	n, err := r.ReadAt(magic, 0)
	if err != nil && err != io.EOF {
		return Unknown, err
	}
	magic = magic[:n]

	if bytes.HasPrefix(magic, []byte{'P', 'K', 0x03, 0x04}) {
		return detectZIPFormat(r, size)
	}
	return DetectFromMagic(magic), nil
}

func detectZIPFormat(r io.ReaderAt, size int64) (Format, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Unknown, err
	}
	for _, f := range zr.File {
		switch {
		case strings.HasPrefix(f.Name, "word/"):
			return DOCX, nil
		case strings.HasPrefix(f.Name, "xl/"):
			return XLSX, nil
		case strings.HasPrefix(f.Name, "ppt/"):
			return PPTX, nil
		}
	}
	return Unknown, nil
}

// Verify checks that the file at path holds the format its extension
// names. Text has no signature and always passes, as do unknown
// extensions.
func Verify(path string) error {
	want := Detect(path)
	if want == Unknown || want == Text {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	got, err := DetectFromReader(f, info.Size())
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrContentMismatch, want, err)
	}
	if got != want {
		return fmt.Errorf("%w: want %s, found %s", ErrContentMismatch, want, got)
	}
	return nil
}
