package graphics

import (
	"fmt"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func (e *Engine) pendingRects() []imageRect {
	var out []imageRect
	for i := range e.rects {
		if !e.rects[i].empty() {
			out = append(out, e.rects[i])
		}
	}
	return out
}

func TestAppendRectMergesVerticalStripes(t *testing.T) {
	e := newTestEngine(t, nil)
	buf := &recordingBuffer{}

	e.AppendRect(buf, 1, 2, 0, 4, 0, 1, 0, 0, 10, 20, false)
	e.AppendRect(buf, 1, 2, 0, 4, 1, 2, 0, 20, 10, 20, false)

	pending := e.pendingRects()
	require.Len(t, pending, 1, "contiguous stripes coalesce")
	require.Equal(t, 0, pending[0].startRow)
	require.Equal(t, 2, pending[0].endRow)
	require.Empty(t, buf.blits, "nothing is drawn while the bank has room")
}

func TestAppendRectDoesNotMergeMisaligned(t *testing.T) {
	e := newTestEngine(t, nil)
	buf := &recordingBuffer{}

	e.AppendRect(buf, 1, 2, 0, 4, 0, 1, 0, 0, 10, 20, false)

	tests := []struct {
		name                               string
		imageID, placementID               uint32
		startCol, endCol, startRow, endRow int
		xPix, yPix                         int
		reverse                            bool
	}{
		{"different image", 9, 2, 0, 4, 1, 2, 0, 20, false},
		{"different placement", 1, 9, 0, 4, 1, 2, 0, 20, false},
		{"row gap", 1, 2, 0, 4, 2, 3, 0, 40, false},
		{"different columns", 1, 2, 1, 4, 1, 2, 0, 20, false},
		{"different x", 1, 2, 0, 4, 1, 2, 10, 20, false},
		{"pixel misalignment", 1, 2, 0, 4, 1, 2, 0, 24, false},
		{"different reverse", 1, 2, 0, 4, 1, 2, 0, 20, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(e.pendingRects())
			e.AppendRect(buf, tt.imageID, tt.placementID, tt.startCol, tt.endCol,
				tt.startRow, tt.endRow, tt.xPix, tt.yPix, 10, 20, tt.reverse)
			require.Len(t, e.pendingRects(), before+1, "stripe must not merge")
		})
	}
}

func TestAppendRectIgnoresEmpty(t *testing.T) {
	e := newTestEngine(t, nil)
	buf := &recordingBuffer{}

	e.AppendRect(buf, 0, 1, 0, 4, 0, 1, 0, 0, 10, 20, false)
	e.AppendRect(buf, 1, 1, 4, 4, 0, 1, 0, 0, 10, 20, false)
	e.AppendRect(buf, 1, 1, 0, 4, 1, 1, 0, 0, 10, 20, false)

	require.Empty(t, e.pendingRects())
}

func TestAppendRectEvictsLowestOnPressure(t *testing.T) {
	e := newTestEngine(t, nil)
	buf := &recordingBuffer{}

	// Fill the bank with non-mergeable rects at increasing heights.
	for i := 0; i < maxImageRects; i++ {
		e.AppendRect(buf, uint32(1000+i), 1, 0, 1, 0, 1, 0, i*20, 10, 20, false)
	}
	require.Len(t, e.pendingRects(), maxImageRects)

	// One more: the rect reaching lowest (greatest bottom) is drawn and
	// replaced. None of these images exist, so the draw is a no-op blit,
	// but its slot must be recycled.
	e.AppendRect(buf, 7777, 1, 0, 1, 0, 1, 0, 0, 10, 20, false)

	pending := e.pendingRects()
	require.Len(t, pending, maxImageRects)
	var ids []uint32
	for _, r := range pending {
		ids = append(ids, r.imageID)
	}
	require.Contains(t, ids, uint32(7777))
	require.NotContains(t, ids, uint32(1000+maxImageRects-1),
		"the rect with the greatest bottom pixel was evicted")
}

func TestFinishDrawingBlitsAndClears(t *testing.T) {
	e := newTestEngine(t, nil)
	e.StartDrawing(2, 2)
	uploadRGBA(e, 1, 2, 2)
	put(e, 1, 3, 1, 1)

	buf := &recordingBuffer{}
	e.AppendRect(buf, 1, 3, 0, 1, 0, 1, 5, 7, 2, 2, false)
	e.FinishDrawing(buf)

	require.Len(t, buf.blits, 1)
	call := buf.blits[0]
	require.Equal(t, 0, call.sx)
	require.Equal(t, 0, call.sy)
	require.Equal(t, 2, call.w)
	require.Equal(t, 2, call.h)
	require.Equal(t, 5, call.dx)
	require.Equal(t, 7, call.dy)
	require.NotNil(t, call.src)
	require.Empty(t, e.pendingRects(), "the bank is cleared after the flush")
	checkAccounting(t, e)
}

func TestFinishDrawingSkipsMissingPlacements(t *testing.T) {
	e := newTestEngine(t, nil)
	buf := &recordingBuffer{}

	e.AppendRect(buf, 42, 1, 0, 1, 0, 1, 0, 0, 10, 20, false)
	e.FinishDrawing(buf)

	require.Empty(t, buf.blits)
	require.Empty(t, e.pendingRects())
}

func TestReverseBlitInvertsColors(t *testing.T) {
	e := newTestEngine(t, nil)
	e.StartDrawing(2, 2)
	uploadRGBA(e, 1, 2, 2) // all channels 0xFF
	put(e, 1, 3, 1, 1)

	buf := &recordingBuffer{}
	e.AppendRect(buf, 1, 3, 0, 1, 0, 1, 0, 0, 2, 2, true)
	e.FinishDrawing(buf)

	require.Len(t, buf.blits, 1)
	px := buf.blits[0].src.RGBAAt(0, 0)
	require.Equal(t, color.RGBA{0, 0, 0, 255}, px, "colors inverted, alpha kept")

	// The cached scaled raster itself is untouched.
	p := e.findImageAndPlacement(1, 3)
	require.Equal(t, uint8(255), p.scaled.RGBAAt(0, 0).R)
}

func TestFrameScenarioManyStripes(t *testing.T) {
	e := newTestEngine(t, nil)
	e.StartDrawing(10, 20)
	uploadRGBA(e, 1, 40, 80)
	put(e, 1, 2, 4, 4)

	buf := &recordingBuffer{}
	// A cell scan appends one stripe per row; they coalesce into one rect.
	for row := 0; row < 4; row++ {
		e.AppendRect(buf, 1, 2, 0, 4, row, row+1, 0, row*20, 10, 20, false)
	}
	require.Len(t, e.pendingRects(), 1)

	e.FinishDrawing(buf)
	require.Len(t, buf.blits, 1)
	require.Equal(t, 80, buf.blits[0].h, fmt.Sprintf("4 rows x 20 px: %+v", buf.blits[0]))
}
