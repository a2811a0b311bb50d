/**
 * Image Preprocessor
 *
 * Normalizes every accepted input into validated RGB raster data before the
 * pipeline sees it: decode, format allow-list, dimension bounds, RGB
 * conversion, and a conditional aspect-preserving downscale. Oversized
 * inputs are rejected before resizing, never silently shrunk.
 */

package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/draw"

	// Decoder registration. WebP is registered so the format allow-list,
	// not an opaque decode failure, is what rejects it.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/formlens/docextract/internal/errors"
)

const (
	// MinDimension is the smallest usable width or height in pixels.
	MinDimension = 100
	// MaxDimension is the absolute input bound; larger images are rejected.
	MaxDimension = 10000
	// DefaultMaxSize caps the longest side after preprocessing.
	DefaultMaxSize = 2000
)

// SupportedFormats lists the accepted decoded formats.
var SupportedFormats = []string{"png", "jpeg", "tiff", "bmp", "gif"}

// Prepared is a validated, RGB-backed image ready for OCR and inference.
type Prepared struct {
	Image  *image.RGBA
	Width  int
	Height int
	Format string // decoded format; empty when the caller supplied raster data
}

// Size returns [width, height] for result metadata.
func (p *Prepared) Size() []int {
	return []int{p.Width, p.Height}
}

// PNG encodes the prepared image for engines and clients that consume bytes.
func (p *Prepared) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.Image); err != nil {
		return nil, errors.NewInvalidImageError("failed to encode image", err)
	}
	return buf.Bytes(), nil
}

// Preprocess accepts a file path (string), raw bytes ([]byte), a stream
// (io.Reader) or decoded raster data (image.Image) and runs the full
// normalization sequence. maxSize bounds the longest side of the output;
// values below 1 fall back to DefaultMaxSize.
func Preprocess(source any, maxSize int) (*Prepared, error) {
	if maxSize < 1 {
		maxSize = DefaultMaxSize
	}

	img, format, err := load(source)
	if err != nil {
		return nil, err
	}

	// Raster sources skip the allow-list: there is no container format left
	// to judge.
	if format != "" && !formatSupported(format) {
		return nil, errors.NewUnsupportedFormatError(format, SupportedFormats)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width < MinDimension || height < MinDimension {
		return nil, errors.NewInvalidImageError(
			fmt.Sprintf("image too small: %dx%d (minimum %dx%d)", width, height, MinDimension, MinDimension), nil)
	}
	if width > MaxDimension || height > MaxDimension {
		return nil, errors.NewInvalidImageError(
			fmt.Sprintf("image too large: %dx%d (maximum %d per side)", width, height, MaxDimension), nil)
	}

	rgb := toRGB(img)

	if width > maxSize || height > maxSize {
		rgb = downscale(rgb, maxSize)
	}

	return &Prepared{
		Image:  rgb,
		Width:  rgb.Bounds().Dx(),
		Height: rgb.Bounds().Dy(),
		Format: format,
	}, nil
}

// load turns any accepted source kind into decoded raster data plus the
// container format name ("" for pre-decoded sources).
func load(source any) (image.Image, string, error) {
	switch src := source.(type) {
	case string:
		f, err := os.Open(src)
		if err != nil {
			return nil, "", errors.NewInvalidImageError(fmt.Sprintf("cannot open image file: %s", src), err)
		}
		defer f.Close()
		return decode(f)

	case []byte:
		return decode(bytes.NewReader(src))

	case io.Reader:
		return decode(src)

	case image.Image:
		return src, "", nil

	default:
		return nil, "", errors.NewInvalidImageError(fmt.Sprintf("unsupported source type: %T", source), nil)
	}
}

func decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", errors.NewInvalidImageError("failed to decode image data", err)
	}
	return img, format, nil
}

func formatSupported(format string) bool {
	for _, f := range SupportedFormats {
		if f == format {
			return true
		}
	}
	return false
}

// toRGB flattens the image onto a white canvas, discarding any alpha
// channel. Scanned documents assume a white page background.
func toRGB(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	return dst
}

// downscale shrinks the image so its longest side equals maxSize, keeping
// the aspect ratio. Upscaling never happens; callers only reach this when a
// side exceeds maxSize.
func downscale(img *image.RGBA, maxSize int) *image.RGBA {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()

	var newW, newH int
	if width >= height {
		newW = maxSize
		newH = int(float64(height) * float64(maxSize) / float64(width))
	} else {
		newH = maxSize
		newW = int(float64(width) * float64(maxSize) / float64(height))
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
