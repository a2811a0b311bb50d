/**
 * Model Adapter Contract
 *
 * Adapters run layout-aware token classification over a page: words plus
 * normalized boxes in, per-token predictions out. The token stream is
 * longer than the word stream (subword tokenization) and capped at the
 * model's sequence capacity, so words past the cap simply never appear in
 * the alignment.
 */

package model

import (
	"context"
	"image"

	"github.com/formlens/docextract/internal/document"
	"github.com/formlens/docextract/internal/ocr"
)

// MaxSequenceLength is the token capacity of the model. Inputs that
// tokenize past this length are truncated, not rejected.
const MaxSequenceLength = 512

// NoWord marks tokens that belong to no word (CLS, SEP, padding).
const NoWord = -1

// InferenceResult carries everything postprocessing needs: the per-token
// model outputs aligned to the word list that produced them.
type InferenceResult struct {
	// Per token, parallel slices. WordIDs[i] indexes Words, or NoWord for
	// special tokens.
	Predictions []int
	Confidences []float64
	WordIDs     []int

	// Per word, parallel slices, in OCR reading order.
	Words           []string
	Boxes           []document.BoundingBox
	NormalizedBoxes [][4]int

	// Dimensions of the processed image the boxes live in.
	ImageWidth  int
	ImageHeight int
}

// Adapter is the inference collaborator contract.
type Adapter interface {
	Infer(ctx context.Context, img image.Image, words []ocr.Result) (*InferenceResult, error)
	ModelName() string
	Close() error
}
