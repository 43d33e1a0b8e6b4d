package model

// EnrichmentOrigin records which path produced an image description.
type EnrichmentOrigin string

const (
	OriginModel       EnrichmentOrigin = "model"
	OriginOCR         EnrichmentOrigin = "ocr"
	OriginPlaceholder EnrichmentOrigin = "placeholder"
)

// ImageEnrichment is the description produced for one image.
type ImageEnrichment struct {
	AltText    string
	Annotation Annotation
	Origin     EnrichmentOrigin
}

// Enrichments maps ImageBlock.ID to its enrichment.
type Enrichments map[string]ImageEnrichment

// AltText returns the alt text to render for img: the enrichment when one
// exists, else the parser's own alt text.
func (e Enrichments) AltText(img ImageBlock) string {
	if rec, ok := e[img.ID]; ok && rec.AltText != "" {
		return rec.AltText
	}
	return img.AltText
}
