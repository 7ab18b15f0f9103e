package raster

import (
	"image"
	"image/draw"

	"github.com/nfnt/resize"
)

// Compose builds a placement-sized raster of dstW x dstH pixels from the
// given source rectangle of src. The destination is fully transparent
// wherever the scaled image does not cover it. srcRect must be a valid
// sub-rectangle of src's bounds.
func Compose(src *image.RGBA, srcRect image.Rectangle, dstW, dstH int, mode ScaleMode) *image.RGBA {
	dst := New(dstW, dstH)
	if srcRect.Dx() <= 0 || srcRect.Dy() <= 0 || dstW <= 0 || dstH <= 0 {
		return dst
	}

	sub := src.SubImage(srcRect)
	srcW, srcH := srcRect.Dx(), srcRect.Dy()

	if mode == ScaleNoneOrContain {
		if srcW <= dstW && srcH <= dstH {
			mode = ScaleNone
		} else {
			mode = ScaleContain
		}
	}

	switch mode {
	case ScaleFill:
		scaled := resize.Resize(uint(dstW), uint(dstH), sub, resize.Bilinear)
		draw.Draw(dst, dst.Bounds(), scaled, scaled.Bounds().Min, draw.Src)
	case ScaleNone:
		w := min(srcW, dstW)
		h := min(srcH, dstH)
		draw.Draw(dst, image.Rect(0, 0, w, h), src, srcRect.Min, draw.Src)
	default:
		// Contain. Compare the aspect ratios without division: the box
		// is wider than the image iff dstW*srcH > srcW*dstH.
		var destX, destY, destW, destH int
		if dstW*srcH > srcW*dstH {
			destH = dstH
			destW = srcW * dstH / srcH
			destX = (dstW - destW) / 2
		} else {
			destW = dstW
			destH = srcH * dstW / srcW
			destY = (dstH - destH) / 2
		}
		if destW <= 0 || destH <= 0 {
			return dst
		}
		scaled := resize.Resize(uint(destW), uint(destH), sub, resize.Bilinear)
		draw.Draw(dst, image.Rect(destX, destY, destX+destW, destY+destH),
			scaled, scaled.Bounds().Min, draw.Src)
	}
	return dst
}
