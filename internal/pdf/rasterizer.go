/**
 * PDF Rasterizer - MuPDF page rendering
 *
 * Renders PDF pages to raster images for the image pipeline. Page order in
 * the returned slice matches document order; the caller assigns 1-based
 * page numbers.
 */

package pdf

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"

	"github.com/formlens/docextract/internal/errors"
	"github.com/formlens/docextract/internal/logging"
)

// DefaultDPI is the render resolution when the caller does not specify one.
const DefaultDPI = 200

// Rasterizer turns a PDF file into page images.
type Rasterizer interface {
	LoadPages(path string, dpi int) ([]image.Image, error)
	Close() error
}

// FitzRasterizer renders pages with MuPDF.
type FitzRasterizer struct {
	logger *logging.Logger
}

// NewFitzRasterizer creates a MuPDF-backed rasterizer.
func NewFitzRasterizer() *FitzRasterizer {
	return &FitzRasterizer{
		logger: logging.NewLogger("PDFRasterizer"),
	}
}

// LoadPages renders every page of the document at the given DPI.
func (r *FitzRasterizer) LoadPages(path string, dpi int) ([]image.Image, error) {
	if dpi < 1 {
		dpi = DefaultDPI
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, errors.NewInvalidImageError(fmt.Sprintf("cannot open PDF: %s", path), err)
	}
	defer doc.Close()

	numPages := doc.NumPage()
	r.logger.Info("Rasterizing PDF", "path", path, "pages", numPages, "dpi", dpi)

	pages := make([]image.Image, 0, numPages)
	for i := 0; i < numPages; i++ {
		img, err := doc.ImageDPI(i, float64(dpi))
		if err != nil {
			return nil, errors.NewInvalidImageError(fmt.Sprintf("failed to render PDF page %d", i+1), err)
		}
		pages = append(pages, img)
	}

	return pages, nil
}

// Close releases rasterizer resources. Documents are closed per call, so
// there is nothing long-lived to tear down.
func (r *FitzRasterizer) Close() error {
	return nil
}
