// Package pptx parses PowerPoint presentations (Office Open XML) into the
// document model.
package pptx

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
)

const (
	relTypeSlide = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	relTypeImage = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

// Reader provides access to the parts of a PPTX package.
type Reader struct {
	zr     *zip.ReadCloser
	files  map[string]*zip.File
	slides []string
	core   *corePropertiesXML
}

// Slide is one parsed slide with its relationships resolved to part names.
type Slide struct {
	Number int
	Tree   shapeTreeXML
	Rels   map[string]relationshipXML
}

// Open opens a PPTX file and resolves the slide order.
func Open(filename string) (*Reader, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("opening ZIP archive: %w", err)
	}
	r := &Reader{zr: zr, files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		r.files[f.Name] = f
	}

	if _, ok := r.files["ppt/presentation.xml"]; !ok {
		zr.Close()
		return nil, fmt.Errorf("missing required file: ppt/presentation.xml")
	}
	r.slides = r.slideOrder()
	if len(r.slides) == 0 {
		zr.Close()
		return nil, fmt.Errorf("no slides found in presentation")
	}

	var core corePropertiesXML
	if err := r.unmarshal("docProps/core.xml", &core); err == nil {
		r.core = &core
	}
	return r, nil
}

// Close releases the archive.
func (r *Reader) Close() error {
	if r.zr == nil {
		return nil
	}
	err := r.zr.Close()
	r.zr = nil
	return err
}

// SlideCount returns the number of slides.
func (r *Reader) SlideCount() int { return len(r.slides) }

func (r *Reader) read(name string) ([]byte, error) {
	f, ok := r.files[name]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (r *Reader) unmarshal(name string, v any) error {
	data, err := r.read(name)
	if err != nil {
		return err
	}
	return xml.Unmarshal(data, v)
}

// slideOrder lists slide part names in presentation order. The slide id
// list is authoritative; without it slides are sorted by file number.
func (r *Reader) slideOrder() []string {
	var pres presentationXML
	rels := r.rels("ppt/presentation.xml")
	if err := r.unmarshal("ppt/presentation.xml", &pres); err == nil && len(rels) > 0 {
		var order []string
		for _, id := range pres.SlideIDList.SlideIDs {
			rel, ok := rels[id.RID]
			if !ok || rel.Type != relTypeSlide {
				continue
			}
			if _, exists := r.files[rel.Target]; exists {
				order = append(order, rel.Target)
			}
		}
		if len(order) > 0 {
			return order
		}
	}

	var order []string
	for name := range r.files {
		if strings.HasPrefix(name, "ppt/slides/slide") && strings.HasSuffix(name, ".xml") {
			order = append(order, name)
		}
	}
	sort.Slice(order, func(i, j int) bool {
		return slideNumber(order[i]) < slideNumber(order[j])
	})
	return order
}

func slideNumber(name string) int {
	n, _ := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml"))
	return n
}

// rels reads the relationships of part, keyed by id, with internal targets
// resolved relative to the part's directory.
func (r *Reader) rels(part string) map[string]relationshipXML {
	var rels relationshipsXML
	relsPath := path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
	if err := r.unmarshal(relsPath, &rels); err != nil {
		return nil
	}
	out := make(map[string]relationshipXML, len(rels.Relationship))
	for _, rel := range rels.Relationship {
		if rel.TargetMode != "External" {
			rel.Target = resolveTarget(path.Dir(part), rel.Target)
		}
		out[rel.ID] = rel
	}
	return out
}

func resolveTarget(base, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(base, target))
}

// Slide parses the slide at index (0-based).
func (r *Reader) Slide(index int) (*Slide, error) {
	if index < 0 || index >= len(r.slides) {
		return nil, fmt.Errorf("slide index %d out of range", index)
	}
	part := r.slides[index]
	var s slideXML
	if err := r.unmarshal(part, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", part, err)
	}
	return &Slide{Number: index + 1, Tree: s.CSld.SpTree, Rels: r.rels(part)}, nil
}
