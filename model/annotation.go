package model

import "strings"

// Annotation is the structured description of an image returned by the
// vision model. Implementations are *ImageMetadata and *MinimalAnnotation.
type Annotation interface {
	// AltText resolves the best available one-line description.
	AltText() string
	annotation()
}

// ImageSource locates an image inside its document.
type ImageSource struct {
	Filename        string `json:"filename"`
	Page            int    `json:"page"`
	DocumentSection string `json:"documentSection"`
}

// ImageRegion is the placement of an image on its page.
type ImageRegion struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// LinkedEntity is a named thing the image refers to.
type LinkedEntity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// TextReference is a passage in the document that mentions the image.
type TextReference struct {
	Text    string `json:"text"`
	Section string `json:"section"`
	Page    int    `json:"page"`
}

// AIAnnotations carries model-derived observations.
type AIAnnotations struct {
	ObjectsDetected      []string `json:"objectsDetected"`
	OCRText              string   `json:"ocrText"`
	Language             string   `json:"language"`
	ExplanationGenerated string   `json:"explanationGenerated"`
}

// Relations links the image to other document parts.
type Relations struct {
	Explains     []string `json:"explains"`
	ReferencedBy []string `json:"referencedBy"`
}

// ImageMetadata is the schema-valid annotation record.
type ImageMetadata struct {
	ID                string          `json:"id"`
	Type              string          `json:"type"`
	Title             string          `json:"title"`
	Caption           string          `json:"caption"`
	Source            ImageSource     `json:"source"`
	Location          ImageRegion     `json:"location"`
	Description       string          `json:"description"`
	ContextualSummary string          `json:"contextualSummary"`
	LinkedEntities    []LinkedEntity  `json:"linkedEntities"`
	TextReferences    []TextReference `json:"textReferences"`
	SemanticTags      []string        `json:"semanticTags"`
	AIAnnotations     AIAnnotations   `json:"aiAnnotations"`
	Relations         Relations       `json:"relations"`
}

func (*ImageMetadata) annotation() {}

// AltText prefers the description, then the generated explanation, then a
// prefix of any OCR text.
func (m *ImageMetadata) AltText() string {
	if d := strings.TrimSpace(m.Description); d != "" {
		return d
	}
	if e := strings.TrimSpace(m.AIAnnotations.ExplanationGenerated); e != "" {
		return e
	}
	if o := strings.TrimSpace(m.AIAnnotations.OCRText); o != "" {
		if t := truncateRunes(o, 200); t != o {
			return "Text in image: " + t + "..."
		}
		return "Text in image: " + o
	}
	return NoDescriptionAlt
}

// NoDescriptionAlt is used when an annotation carries no usable text.
const NoDescriptionAlt = "Image (no description available)"

// MinimalAnnotation is built when a model reply fails schema validation.
type MinimalAnnotation struct {
	Description string
	Reason      string
}

func (*MinimalAnnotation) annotation() {}

// AltText returns the raw description or the no-description marker.
func (m *MinimalAnnotation) AltText() string {
	if d := strings.TrimSpace(m.Description); d != "" {
		return d
	}
	return NoDescriptionAlt
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
