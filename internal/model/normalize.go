/**
 * Bounding Box Normalization
 *
 * LayoutLM-family models expect box coordinates in a virtual 0-1000 space
 * regardless of image resolution. The mapping truncates toward zero, so
 * denormalizing recovers the pixel value only up to truncation error.
 */

package model

import "github.com/formlens/docextract/internal/document"

// NormalizeBox maps a pixel box into the 0-1000 model space:
// floor(1000 * coord / dim) per coordinate, clamped into [0, 1000].
// width and height must be positive.
func NormalizeBox(b document.BoundingBox, width, height int) [4]int {
	return [4]int{
		clamp1000(1000 * b.X1 / width),
		clamp1000(1000 * b.Y1 / height),
		clamp1000(1000 * b.X2 / width),
		clamp1000(1000 * b.Y2 / height),
	}
}

// DenormalizeBox maps a 0-1000 space box back to pixels:
// floor(coord * dim / 1000) per coordinate.
func DenormalizeBox(nb [4]int, width, height int) document.BoundingBox {
	return document.BoundingBox{
		X1: nb[0] * width / 1000,
		Y1: nb[1] * height / 1000,
		X2: nb[2] * width / 1000,
		Y2: nb[3] * height / 1000,
	}
}

func clamp1000(v int) int {
	if v < 0 {
		return 0
	}
	if v > 1000 {
		return 1000
	}
	return v
}
