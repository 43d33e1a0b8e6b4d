package ocr

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
)

type fakeRunner struct {
	stdout string
	err    error
	calls  [][]string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return nil, []byte("boom"), f.err
	}
	return []byte(f.stdout), nil, nil
}

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t640\t480\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t20\t50\t12\t96.5\tName\n" +
	"5\t1\t1\t1\t1\t2\t120\t20\t40\t12\t91\tAge\n" +
	"5\t1\t1\t1\t1\t3\t200\t20\t5\t12\t-1\t \n"

func TestParseTSV(t *testing.T) {
	words := parseTSV(sampleTSV)
	if len(words) != 2 {
		t.Fatalf("parseTSV() returned %d words, want 2", len(words))
	}
	if words[0].Text != "Name" || words[0].Box != image.Rect(10, 20, 60, 32) {
		t.Errorf("words[0] = %+v", words[0])
	}
	if words[1].Confidence != 0.91 {
		t.Errorf("words[1].Confidence = %v, want 0.91", words[1].Confidence)
	}
}

func TestTesseractWords(t *testing.T) {
	r := &fakeRunner{stdout: sampleTSV}
	eng := NewTesseract(TesseractConfig{Languages: "eng+fra", PSM: 6}, r, nil)

	words, err := eng.Words(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("Words() error = %v", err)
	}
	if len(words) != 2 {
		t.Errorf("Words() returned %d words, want 2", len(words))
	}
	if len(r.calls) != 1 {
		t.Fatalf("runner called %d times, want 1", len(r.calls))
	}
	args := strings.Join(r.calls[0], " ")
	for _, want := range []string{"tesseract ", " stdout -l eng+fra", "--psm 6", " tsv"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestTesseractText(t *testing.T) {
	eng := NewTesseract(TesseractConfig{}, &fakeRunner{stdout: "  hello world \n"}, nil)
	got, err := eng.Text(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if got != "hello world" {
		t.Errorf("Text() = %q, want %q", got, "hello world")
	}
}

func TestTesseractError(t *testing.T) {
	eng := NewTesseract(TesseractConfig{}, &fakeRunner{err: errors.New("exit status 1")}, nil)
	if _, err := eng.Text(context.Background(), []byte("img")); err == nil {
		t.Error("Text() should fail when the command fails")
	}
}

func TestEnginesSatisfyInterface(t *testing.T) {
	var _ Engine = (*Tesseract)(nil)
	var _ Engine = (*Client)(nil)
}
