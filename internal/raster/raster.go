// Package raster provides the in-memory image representation used by the
// graphics engine: decoding of cached image files into RGBA rasters and the
// scaling/composition primitives used to build placement-sized views.
package raster

import (
	"image"
	"image/draw"
)

// ScaleMode selects how a source rectangle is mapped onto the placement box.
type ScaleMode uint8

const (
	// ScaleContain preserves the aspect ratio and fits the whole image
	// inside the box, centered along the slack axis.
	ScaleContain ScaleMode = iota
	// ScaleFill stretches the source rectangle to cover the whole box.
	ScaleFill
	// ScaleNone copies the source rectangle 1:1 at the box origin.
	ScaleNone
	// ScaleNoneOrContain behaves like ScaleNone when the source fits the
	// box and like ScaleContain otherwise.
	ScaleNoneOrContain
)

// RAMSize returns the estimated RAM usage of a raster in bytes.
func RAMSize(img *image.RGBA) int64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}

// New returns a fully transparent raster of the given size.
func New(width, height int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

// ToRGBA converts any decoded image to an RGBA raster. An *image.RGBA input
// is returned as is; any other image is drawn into a new raster whose origin
// is (0, 0).
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Invert returns a copy of img with the color channels inverted. The alpha
// channel is preserved. The copy keeps the bounds of the original so callers
// can keep addressing it with the same coordinates.
func Invert(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		src := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		dst := out.Pix[out.PixOffset(b.Min.X, y):out.PixOffset(b.Max.X, y)]
		for i := 0; i+3 < len(src); i += 4 {
			dst[i] = 255 - src[i]
			dst[i+1] = 255 - src[i+1]
			dst[i+2] = 255 - src[i+2]
			dst[i+3] = src[i+3]
		}
	}
	return out
}
