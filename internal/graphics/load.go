package graphics

import (
	"image"

	"github.com/llehouerou/termgfx/internal/raster"
)

// loadImage brings the original raster of img into RAM from the disk cache.
// Does nothing if it is already loaded or the upload did not complete. On
// failure the status becomes StatusRAMLoadingError.
func (e *Engine) loadImage(img *Image) {
	if img.original != nil {
		return
	}
	if img.status < StatusUploadingSuccess {
		return
	}
	if img.diskSize == 0 {
		if img.status != StatusRAMLoadingError {
			e.log.WithField("image", img.id).Error("cached image file was deleted")
		}
		img.status = StatusRAMLoadingError
		return
	}

	filename := e.imageFilename(img)
	maxRAM := e.cfg.MaxImageRAMSize

	if img.format == 100 || img.format == 0 {
		decoded, err := raster.DecodeFile(filename, maxRAM)
		if err == nil {
			img.original = decoded
			b := decoded.Bounds()
			img.pixWidth, img.pixHeight = b.Dx(), b.Dy()
		} else if img.format == 100 {
			e.log.WithError(err).WithField("image", img.id).Error("could not decode image")
		}
	}
	if img.original == nil && (img.format == 24 || img.format == 32 || img.format == 0) {
		format := img.format
		if format == 0 {
			format = 32
		}
		decoded, err := raster.DecodeRaw(filename, format, img.pixWidth,
			img.pixHeight, img.compression != 0, maxRAM)
		if err != nil {
			e.log.WithError(err).WithField("image", img.id).Error("could not load raw pixel data")
		} else {
			img.original = decoded
		}
	}

	if img.original == nil {
		img.status = StatusRAMLoadingError
		return
	}
	e.ramBytes += img.ramSize()
	img.status = StatusRAMLoadingSuccess
}

// sourceRect resolves the placement's requested source rectangle against the
// image's pixel dimensions: negatives are clamped to 0, the origin is
// clamped into the image, and zero or out-of-range extents are replaced with
// "from origin to image edge".
func (p *Placement) sourceRect() image.Rectangle {
	imgW, imgH := p.image.pixWidth, p.image.pixHeight
	x := min(max(p.srcX, 0), imgW)
	y := min(max(p.srcY, 0), imgH)
	w := p.srcW
	if w <= 0 || x+w > imgW {
		w = imgW - x
	}
	h := p.srcH
	if h <= 0 || y+h > imgH {
		h = imgH - y
	}
	return image.Rect(x, y, x+w, y+h)
}

// inferPlacementSize fills in cols and rows when the put command left them to
// be inferred from the source rectangle and the current cell size.
func (e *Engine) inferPlacementSize(p *Placement) {
	if p.cols != 0 && p.rows != 0 {
		return
	}
	if p.image.pixWidth == 0 || p.image.pixHeight == 0 {
		return
	}
	if e.cw == 0 || e.ch == 0 {
		return
	}
	src := p.sourceRect()
	srcW, srcH := src.Dx(), src.Dy()
	if srcW == 0 || srcH == 0 {
		return
	}

	ceilDiv := func(a, b int) int { return (a + b - 1) / b }

	switch {
	case p.cols == 0 && p.rows == 0:
		p.cols = ceilDiv(srcW, e.cw)
		p.rows = ceilDiv(srcH, e.ch)
	case p.cols == 0:
		if p.scaleMode == raster.ScaleContain {
			// Preserve the aspect ratio within the given height.
			p.cols = ceilDiv(srcW*p.rows*e.ch/srcH, e.cw)
		} else {
			p.cols = ceilDiv(srcW, e.cw)
		}
		if p.cols == 0 {
			p.cols = 1
		}
	case p.rows == 0:
		if p.scaleMode == raster.ScaleContain {
			p.rows = ceilDiv(srcH*p.cols*e.cw/srcW, e.ch)
		} else {
			p.rows = ceilDiv(srcH, e.ch)
		}
		if p.rows == 0 {
			p.rows = 1
		}
	}
}

// loadPlacement composes the scaled raster for p at the given cell size. A
// placement already loaded for the same cell size is left alone; a cell size
// change rebuilds it.
func (e *Engine) loadPlacement(p *Placement, cw, ch int) {
	if p.scaled != nil && p.scaledCW == cw && p.scaledCH == ch {
		return
	}
	e.unloadPlacement(p)

	img := p.image
	e.loadImage(img)
	if img.original == nil {
		return
	}

	e.inferPlacementSize(p)

	scaledW := p.cols * cw
	scaledH := p.rows * ch
	if int64(scaledW)*int64(scaledH)*4 > e.cfg.MaxImageRAMSize {
		e.log.Errorf("placement %d/%d would be too big to load: %d x %d x 4 > %d",
			img.id, p.id, scaledW, scaledH, e.cfg.MaxImageRAMSize)
		return
	}
	if img.pixWidth == 0 || img.pixHeight == 0 {
		e.log.WithField("image", img.id).Warn("image of zero size")
		return
	}

	p.scaled = raster.Compose(img.original, p.sourceRect(), scaledW, scaledH, p.scaleMode)
	p.scaledCW, p.scaledCH = cw, ch
	e.ramBytes += p.ramSize()

	// Keep the raster we just composed no matter what the budgets say.
	p.protected = true
	e.checkLimits()
	p.protected = false
}
