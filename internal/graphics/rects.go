package graphics

import "github.com/llehouerou/termgfx/internal/raster"

// imageRect is a pending rectangular piece of an image to draw. Column and
// row starts are zero-based, ends are exclusive.
type imageRect struct {
	imageID     uint32
	placementID uint32
	// Position of the rectangle on the back buffer, in pixels.
	xPix, yPix int
	// The part of the whole placement to draw, in cells.
	startCol, endCol, startRow, endRow int
	// Cell dimensions the rectangle was appended with.
	cw, ch int
	// Draw with colors inverted.
	reverse bool
}

func (r *imageRect) empty() bool { return r.imageID == 0 }

// bottom returns the bottom pixel coordinate of the rect.
func (r *imageRect) bottom() int {
	return r.yPix + (r.endRow-r.startRow)*r.ch
}

// StartDrawing prepares for a frame. cw and ch are the current cell
// dimensions in pixels.
func (e *Engine) StartDrawing(cw, ch int) {
	e.cw = cw
	e.ch = ch
}

// FinishDrawing draws all pending rectangles and clears the bank.
func (e *Engine) FinishDrawing(buf BackBuffer) {
	for i := range e.rects {
		rect := &e.rects[i]
		if rect.empty() {
			continue
		}
		e.drawRect(buf, rect)
		*rect = imageRect{}
	}
}

// AppendRect adds one stripe of an image placement to the pending bank,
// merging it into an existing rectangle when it extends that rectangle
// exactly at its bottom edge. When the bank is full, the pending rectangle
// reaching lowest on the screen is drawn eagerly and its slot reused; the
// final pixels of the frame do not depend on the eviction point.
func (e *Engine) AppendRect(buf BackBuffer, imageID, placementID uint32,
	startCol, endCol, startRow, endRow, xPix, yPix, cw, ch int, reverse bool) {
	e.cw = cw
	e.ch = ch

	if imageID == 0 || endCol-startCol <= 0 || endRow-startRow <= 0 {
		return
	}

	newRect := imageRect{
		imageID:     imageID,
		placementID: placementID,
		startCol:    startCol,
		endCol:      endCol,
		startRow:    startRow,
		endRow:      endRow,
		xPix:        xPix,
		yPix:        yPix,
		cw:          cw,
		ch:          ch,
		reverse:     reverse,
	}

	var free *imageRect
	for i := range e.rects {
		rect := &e.rects[i]
		if rect.empty() {
			if free == nil {
				free = rect
			}
			continue
		}
		if rect.imageID != imageID || rect.placementID != placementID ||
			rect.cw != cw || rect.ch != ch || rect.reverse != reverse {
			continue
		}
		// Merge only a stripe that continues an existing rectangle at
		// its bottom edge with an identical horizontal extent.
		if rect.endRow == startRow && rect.bottom() == yPix &&
			rect.startCol == startCol && rect.endCol == endCol &&
			rect.xPix == xPix {
			rect.endRow = endRow
			return
		}
	}

	// Bank pressure: draw the rect reaching lowest on the screen now and
	// take over its slot.
	if free == nil {
		for i := range e.rects {
			rect := &e.rects[i]
			if free == nil || rect.bottom() > free.bottom() {
				free = rect
			}
		}
		e.drawRect(buf, free)
	}
	*free = newRect
}

// drawRect blits one rectangle of a placement's scaled raster onto the back
// buffer, loading the placement first if needed.
func (e *Engine) drawRect(buf BackBuffer, rect *imageRect) {
	p := e.findImageAndPlacement(rect.imageID, rect.placementID)
	if p == nil {
		e.log.Debugf("no placement %d/%d for pending rect", rect.imageID, rect.placementID)
		return
	}

	e.loadPlacement(p, rect.cw, rect.ch)
	if p.scaled == nil {
		return
	}
	e.touchPlacement(p)

	sx := rect.startCol * rect.cw
	sy := rect.startRow * rect.ch
	w := (rect.endCol - rect.startCol) * rect.cw
	h := (rect.endRow - rect.startRow) * rect.ch

	src := p.scaled
	if rect.reverse {
		src = raster.Invert(src)
	}
	buf.Blit(src, sx, sy, w, h, rect.xPix, rect.yPix)
}
