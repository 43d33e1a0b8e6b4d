package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// TesseractConfig configures the command-line engine.
type TesseractConfig struct {
	Command     string // default "tesseract"
	Languages   string // "eng+fra" form, default "eng"
	PSM         int    // page segmentation mode, 0 keeps tesseract's default
	TessdataDir string
}

// Tesseract runs the tesseract binary on a temporary copy of each image.
type Tesseract struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

// NewTesseract returns a command-line engine. A nil runner executes the
// real binary; a nil logger uses slog.Default().
func NewTesseract(cfg TesseractConfig, runner Runner, logger *slog.Logger) *Tesseract {
	if cfg.Command == "" {
		cfg.Command = "tesseract"
	}
	if cfg.Languages == "" {
		cfg.Languages = "eng"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = execRunner{logger: logger}
	}
	return &Tesseract{cfg: cfg, runner: runner, logger: logger}
}

// Close is a no-op; each call starts its own process.
func (t *Tesseract) Close() error { return nil }

// Text recognizes the whole image.
func (t *Tesseract) Text(ctx context.Context, img []byte) (string, error) {
	out, err := t.run(ctx, img)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Words recognizes word tokens from tesseract's TSV output.
func (t *Tesseract) Words(ctx context.Context, img []byte) ([]Word, error) {
	out, err := t.run(ctx, img, "tsv")
	if err != nil {
		return nil, err
	}
	return parseTSV(string(out)), nil
}

func (t *Tesseract) run(ctx context.Context, img []byte, extra ...string) ([]byte, error) {
	f, err := os.CreateTemp("", "docmark-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("ocr temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(img); err != nil {
		f.Close()
		return nil, fmt.Errorf("ocr temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("ocr temp file: %w", err)
	}

	// tesseract <file> stdout -l <lang> [--psm N] [--tessdata-dir D] [tsv]
	args := []string{f.Name(), "stdout", "-l", t.cfg.Languages}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	args = append(args, extra...)

	out, errb, err := t.runner.Run(ctx, t.cfg.Command, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	return out, nil
}

// parseTSV reads word rows (level 5) from tesseract TSV output:
// level page block par line word left top width height conf text
func parseTSV(out string) []Word {
	var words []Word
	for i, ln := range strings.Split(out, "\n") {
		if i == 0 || ln == "" {
			continue
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(cols[11])
		conf, err := strconv.ParseFloat(cols[10], 64)
		if text == "" || err != nil || conf < 0 {
			continue
		}
		left, _ := strconv.Atoi(cols[6])
		top, _ := strconv.Atoi(cols[7])
		width, _ := strconv.Atoi(cols[8])
		height, _ := strconv.Atoi(cols[9])
		words = append(words, Word{
			Text:       text,
			Box:        image.Rect(left, top, left+width, top+height),
			Confidence: conf / 100,
		})
	}
	return words
}
