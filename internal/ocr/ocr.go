/**
 * OCR Engine Contract
 *
 * Engines turn raster data into words with pixel bounding boxes and
 * per-word confidence. Implementations must drop empty text and degenerate
 * boxes so downstream stages can trust every result they see. A blank page
 * yields an empty slice, not an error.
 */

package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/formlens/docextract/internal/document"
	"github.com/formlens/docextract/internal/errors"
)

// Result is a single recognized word located on the page.
type Result struct {
	Text       string               `json:"text"`
	BBox       document.BoundingBox `json:"bbox"`
	Confidence float64              `json:"confidence"`
}

// Engine is the OCR collaborator contract. Initialize and Shutdown are
// idempotent; ExtractText on an engine that was never initialized fails.
type Engine interface {
	Initialize(ctx context.Context) error
	ExtractText(ctx context.Context, img image.Image) ([]Result, error)
	Shutdown() error
	Name() string
}

// Options carries engine construction parameters shared by all engines.
type Options struct {
	// Languages are ISO 639-1 codes ("en", "de"). Engines translate to
	// their native identifiers as needed.
	Languages []string
	// ServerURL is the base URL for engines backed by a remote service.
	ServerURL string
}

// SupportedEngines lists the engine names the factory accepts.
func SupportedEngines() []string {
	return []string{"easyocr", "tesseract"}
}

// New builds the engine selected by name. Unknown names are a configuration
// error; the engine still needs Initialize before use.
func New(name string, opts Options) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tesseract":
		return NewTesseractEngine(opts), nil
	case "easyocr":
		return NewEasyOCREngine(opts), nil
	default:
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("unknown OCR engine: %q (supported: %s)", name, strings.Join(SupportedEngines(), ", ")))
	}
}

// filterResults drops words no later stage can use: empty or
// whitespace-only text, and boxes without positive area. Kept words carry
// trimmed text.
func filterResults(results []Result) []Result {
	filtered := results[:0]
	for _, r := range results {
		r.Text = strings.TrimSpace(r.Text)
		if r.Text == "" {
			continue
		}
		if !r.BBox.Valid() {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}
