/**
 * Document Types - Shared data structures for extraction results
 *
 * Common types passed between the preprocessor, OCR engines, the model
 * adapter and the exporters. All coordinates are pixels in the processed
 * image, origin at the top-left corner.
 */

package document

import "math"

// ModelVersion identifies the entity extraction model family carried in
// result metadata.
const ModelVersion = "layoutlmv3-funsd-v1"

// BoundingBox is an axis-aligned rectangle. (X1, Y1) is the top-left
// corner, (X2, Y2) the bottom-right corner.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Valid reports whether the box has positive area.
func (b BoundingBox) Valid() bool {
	return b.X2 > b.X1 && b.Y2 > b.Y1
}

// Width returns the horizontal extent in pixels.
func (b BoundingBox) Width() int {
	return b.X2 - b.X1
}

// Height returns the vertical extent in pixels.
func (b BoundingBox) Height() int {
	return b.Y2 - b.Y1
}

// Union returns the smallest box covering both b and other.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	return BoundingBox{
		X1: min(b.X1, other.X1),
		Y1: min(b.Y1, other.Y1),
		X2: max(b.X2, other.X2),
		Y2: max(b.Y2, other.Y2),
	}
}

// Entity is a labeled span of text located on a page. Label holds the
// simplified form (HEADER, QUESTION, ANSWER); background spans are never
// emitted as entities.
type Entity struct {
	Text       string      `json:"text"`
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
}

// PageResult groups the entities found on a single page. Page numbers are
// 1-based.
type PageResult struct {
	Page     int      `json:"page"`
	Entities []Entity `json:"entities"`
}

// Metadata describes how a result was produced. ImageSize is [width,
// height] for single-image results; TotalPages is set for PDF results.
type Metadata struct {
	ModelVersion string `json:"model_version"`
	OCREngine    string `json:"ocr_engine"`
	ImageSize    []int  `json:"image_size,omitempty"`
	TotalPages   int    `json:"total_pages,omitempty"`
}

// ProcessingResult is the top-level outcome of one pipeline run. Status is
// "success" or "error". Failed batch items carry only Status and Error;
// successful results always carry Results and Metadata.
type ProcessingResult struct {
	Status           string       `json:"status"`
	ProcessingTimeMS float64      `json:"processing_time_ms"`
	Results          []PageResult `json:"results,omitempty"`
	Metadata         *Metadata    `json:"metadata,omitempty"`
	Error            string       `json:"error,omitempty"`
	// Filename is set by batch surfaces that process named uploads.
	Filename string `json:"filename,omitempty"`
}

// EntityCount returns the number of entities across all pages.
func (r *ProcessingResult) EntityCount() int {
	n := 0
	for _, page := range r.Results {
		n += len(page.Entities)
	}
	return n
}

// RoundConfidence rounds a confidence score to 3 decimal places for
// presentation.
func RoundConfidence(c float64) float64 {
	return math.Round(c*1000) / 1000
}

// RoundMillis rounds a duration in milliseconds to 2 decimal places.
func RoundMillis(ms float64) float64 {
	return math.Round(ms*100) / 100
}
