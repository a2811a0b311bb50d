/**
 * Tesseract OCR Engine
 *
 * Local OCR via the Tesseract C library. Word geometry comes from the
 * page iterator at word granularity; Tesseract reports confidence as a
 * percentage, scaled here to [0, 1].
 */

package ocr

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/formlens/docextract/internal/document"
	"github.com/formlens/docextract/internal/errors"
	"github.com/formlens/docextract/internal/logging"
)

// iso639ToTesseract maps common two-letter language codes to Tesseract
// traineddata names. Unknown codes pass through unchanged so full
// Tesseract names keep working.
var iso639ToTesseract = map[string]string{
	"en": "eng",
	"de": "deu",
	"fr": "fra",
	"es": "spa",
	"it": "ita",
	"pt": "por",
	"nl": "nld",
	"ru": "rus",
	"ja": "jpn",
	"ko": "kor",
	"zh": "chi_sim",
	"ar": "ara",
	"hi": "hin",
}

// TesseractEngine performs OCR with a local Tesseract installation.
type TesseractEngine struct {
	languages []string

	mu     sync.Mutex
	client *gosseract.Client
	logger *logging.Logger
}

// NewTesseractEngine creates the engine without touching Tesseract yet;
// Initialize opens the client.
func NewTesseractEngine(opts Options) *TesseractEngine {
	langs := make([]string, 0, len(opts.Languages))
	for _, l := range opts.Languages {
		if mapped, ok := iso639ToTesseract[l]; ok {
			langs = append(langs, mapped)
		} else {
			langs = append(langs, l)
		}
	}
	if len(langs) == 0 {
		langs = []string{"eng"}
	}

	return &TesseractEngine{
		languages: langs,
		logger:    logging.NewLogger("TesseractOCR"),
	}
}

// Name returns the factory name of the engine.
func (t *TesseractEngine) Name() string {
	return "tesseract"
}

// Initialize opens the Tesseract client. Calling it again on an
// initialized engine is a no-op.
func (t *TesseractEngine) Initialize(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(t.languages...); err != nil {
		client.Close()
		return errors.NewOCRFailedError(t.Name(), err)
	}

	t.client = client
	t.logger.Info("Tesseract engine initialized", "languages", t.languages)
	return nil
}

// ExtractText runs word-level recognition over the image.
func (t *TesseractEngine) ExtractText(ctx context.Context, img image.Image) ([]Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil, errors.NewOCRFailedError(t.Name(), errors.NewConfigurationError("engine not initialized"))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.NewOCRFailedError(t.Name(), err)
	}
	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, errors.NewOCRFailedError(t.Name(), err)
	}

	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, errors.NewOCRFailedError(t.Name(), err)
	}

	results := make([]Result, 0, len(boxes))
	for _, box := range boxes {
		results = append(results, Result{
			Text: box.Word,
			BBox: document.BoundingBox{
				X1: box.Box.Min.X,
				Y1: box.Box.Min.Y,
				X2: box.Box.Max.X,
				Y2: box.Box.Max.Y,
			},
			// Tesseract confidence is 0-100.
			Confidence: box.Confidence / 100.0,
		})
	}

	return filterResults(results), nil
}

// Shutdown releases the Tesseract client. Safe to call repeatedly.
func (t *TesseractEngine) Shutdown() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	if err != nil {
		return errors.NewOCRFailedError(t.Name(), err)
	}
	return nil
}
