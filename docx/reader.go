// Package docx parses Word documents (Office Open XML) into the document
// model.
package docx

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
)

const relTypeImage = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"

// Reader provides access to the parts of a DOCX package.
type Reader struct {
	zr        *zip.ReadCloser
	files     map[string]*zip.File
	document  *documentXML
	styles    map[string]styleDefXML
	numbering *numberingXML
	rels      []relationshipXML
	core      *corePropertiesXML
}

// Open opens a DOCX file and parses its document, styles, numbering,
// relationships and core properties. Only word/document.xml is required.
func Open(filename string) (*Reader, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("opening ZIP archive: %w", err)
	}

	r := &Reader{zr: zr, files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		r.files[f.Name] = f
	}

	r.document = &documentXML{}
	if err := r.unmarshal("word/document.xml", r.document); err != nil {
		zr.Close()
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	var rels relationshipsXML
	if err := r.unmarshal("word/_rels/document.xml.rels", &rels); err == nil {
		r.rels = rels.Relationships
	}

	r.styles = make(map[string]styleDefXML)
	var styles stylesXML
	if err := r.unmarshal("word/styles.xml", &styles); err == nil {
		for _, s := range styles.Styles {
			r.styles[s.StyleID] = s
		}
	}

	var numbering numberingXML
	if err := r.unmarshal("word/numbering.xml", &numbering); err == nil {
		r.numbering = &numbering
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

var errPartNotFound = errors.New("part not found")

// read returns the content of one part of the package.
func (r *Reader) read(name string) ([]byte, error) {
	f, ok := r.files[strings.TrimPrefix(name, "/")]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errPartNotFound, name)
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
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshaling %s: %w", name, err)
	}
	return nil
}

// paragraphs returns the top-level body paragraphs.
func (r *Reader) paragraphs() []paragraphXML {
	if r.document.Body == nil {
		return nil
	}
	return r.document.Body.Paragraphs
}

// tables returns the top-level body tables.
func (r *Reader) tables() []tableXML {
	if r.document.Body == nil {
		return nil
	}
	return r.document.Body.Tables
}

// imageParts lists internal image relationships in package order, with
// targets resolved to part names.
func (r *Reader) imageParts() []relationshipXML {
	var out []relationshipXML
	for _, rel := range r.rels {
		if rel.Type != relTypeImage || rel.TargetMode == "External" {
			continue
		}
		rel.Target = resolveTarget("word", rel.Target)
		out = append(out, rel)
	}
	return out
}

// resolveTarget turns a relationship target relative to base into a part
// name. Absolute targets are package-rooted.
func resolveTarget(base, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(base, target))
}

// styleName resolves a paragraph style id to its display name, falling back
// to the id itself.
func (r *Reader) styleName(id string) string {
	if s, ok := r.styles[id]; ok && s.Name.Val != "" {
		return s.Name.Val
	}
	return id
}

// headingLevel returns the heading level for a paragraph, or 0 when it is
// not a heading. Style names "Heading N" map to N, with 6 when N is missing
// or unreadable; "Title" is level 1. An explicit outline level on the
// paragraph or its style applies when the name says nothing.
func (r *Reader) headingLevel(p paragraphXML) int {
	id := p.Properties.Style.Val
	if id != "" {
		if level := levelFromStyleName(r.styleName(id)); level > 0 {
			return level
		}
	}
	if level := outlineLevel(p.Properties.OutlineLvl.Val); level > 0 {
		return level
	}
	if s, ok := r.styles[id]; ok {
		return outlineLevel(s.PPr.OutlineLvl.Val)
	}
	return 0
}

func levelFromStyleName(name string) int {
	lower := strings.ToLower(strings.TrimSpace(name))
	switch {
	case lower == "title":
		return 1
	case strings.HasPrefix(lower, "heading"):
		n, err := strconv.Atoi(strings.TrimSpace(lower[len("heading"):]))
		if err != nil || n < 1 || n > 6 {
			return 6
		}
		return n
	}
	return 0
}

// outlineLevel converts a 0-based w:outlineLvl to a heading level. Level 9
// means body text.
func outlineLevel(val string) int {
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 || n > 8 {
		return 0
	}
	return min(n+1, 6)
}

// paragraphText concatenates the visible text of a paragraph's runs.
func paragraphText(p paragraphXML) string {
	var sb strings.Builder
	for _, run := range p.Runs {
		sb.WriteString(runText(run))
	}
	return sb.String()
}

func runText(run runXML) string {
	var sb strings.Builder
	for _, t := range run.Text {
		sb.WriteString(t.Value)
	}
	for _, ac := range run.AlternateContent {
		for _, t := range ac.Fallback.Text {
			sb.WriteString(t.Value)
		}
	}
	for range run.Tabs {
		sb.WriteString("\t")
	}
	for _, br := range run.Breaks {
		if br.Type == "page" {
			sb.WriteString("\n\n")
		} else {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// drawings returns every drawing frame in the body, including those inside
// tables, keyed by the relationship id of its picture.
func (r *Reader) drawings() map[string]frameXML {
	out := make(map[string]frameXML)
	var visit func(ps []paragraphXML, ts []tableXML)
	visit = func(ps []paragraphXML, ts []tableXML) {
		for _, p := range ps {
			for _, run := range p.Runs {
				for _, d := range run.Drawing {
					for _, f := range []*frameXML{d.Inline, d.Anchor} {
						if f == nil || f.Blip == nil || f.Blip.Embed == "" {
							continue
						}
						if _, seen := out[f.Blip.Embed]; !seen {
							out[f.Blip.Embed] = *f
						}
					}
				}
			}
		}
		for _, t := range ts {
			for _, row := range t.Rows {
				for _, c := range row.Cells {
					visit(c.Paragraphs, c.Tables)
				}
			}
		}
	}
	visit(r.paragraphs(), r.tables())
	return out
}

// UnmarshalXML decodes a paragraph keeping hyperlink runs in reading order
// with the plain runs around them.
func (p *paragraphXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr":
				if err := d.DecodeElement(&p.Properties, &t); err != nil {
					return err
				}
			case "r":
				var run runXML
				if err := d.DecodeElement(&run, &t); err != nil {
					return err
				}
				p.Runs = append(p.Runs, run)
			case "hyperlink", "smartTag", "ins":
				var wrapped struct {
					Runs []runXML `xml:"r"`
				}
				if err := d.DecodeElement(&wrapped, &t); err != nil {
					return err
				}
				p.Runs = append(p.Runs, wrapped.Runs...)
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			return nil
		}
	}
}
