// Package model defines the Document Model every parser produces and every
// later stage consumes.
//
// A [Document] holds four ordered collections, one per block kind:
//
//   - [TextBlock] - paragraphs, headings, list items, quotes and code
//   - [ImageBlock] - raw image bytes with page placement and alt text
//   - [TableBlock] - header row plus data rows, normalized to a fixed width
//   - [MathBlock] - formulas in latex, mathml or plain text
//
// Blocks are immutable once a parser returns them. Image descriptions are
// produced later as [Enrichments], a record keyed by [ImageBlock.ID], and
// merged with the snapshot only at render time. Structured annotations are
// a closed set of variants: the schema-valid [ImageMetadata] and the
// [MinimalAnnotation] fallback.
//
// # Geometry
//
// [BBox] and [Point] carry page coordinates; [Location] pairs a box with a
// 1-based page number.
package model
