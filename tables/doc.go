// Package tables finds tabular data in PDF pages and raster images.
//
// An [Engine] runs one of four methods against a [Source]:
//
//   - [RuleBased] - geometric analysis of positioned text and drawn rulings
//     (PDF pages only)
//   - [OCR] - morphological region detection followed by word recognition
//     and row clustering
//   - [AIVision] - transcription by a vision model, parsed from markdown or
//     HTML
//   - [Auto] - rule based first, OCR when that found nothing. The vision
//     method joins the chain only when [Options.AIVisionFallback] is set.
//
// Every returned table carries its method and confidence in the
// "extraction_method" and "confidence" style keys.
//
// # Geometric Detection
//
// The rule based detector:
//
//  1. Splits fragments into vertical clusters
//  2. Builds a grid from rulings when enough of them exist, otherwise from
//     fragment baselines and shared left edges
//  3. Assigns fragments to cells by center point
//  4. Scores the grid: regularity (30%), alignment (30%), drawn lines (20%)
//     and occupancy (20%)
//  5. Picks a header row by keyword and capitalization heuristics
package tables
