package raster

import (
	"compress/zlib"
	"fmt"
	"image"
	_ "image/gif"  // GIF support for autodetected formats
	_ "image/jpeg" // JPEG support for autodetected formats
	_ "image/png"  // PNG support for autodetected formats
	"io"
	"os"
)

// Raw pixel formats as transmitted by the client.
const (
	FormatRGB  = 24
	FormatRGBA = 32
)

// DecodeFile loads an image file in any registered format (PNG, JPEG, GIF)
// and converts it to an RGBA raster. maxBytes bounds the decoded RAM size;
// the dimensions are checked before the pixel data is decoded.
func DecodeFile(path string, maxBytes int64) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image file: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if size := int64(cfg.Width) * int64(cfg.Height) * 4; size > maxBytes {
		return nil, fmt.Errorf("image too big to load: %d > %d", size, maxBytes)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return ToRGBA(img), nil
}

// DecodeRaw loads raw RGB or RGBA pixel data from a file, optionally
// inflating it with zlib first. The client transmits RGB(A) byte order; the
// in-memory raster is RGBA with a fully opaque alpha channel synthesized for
// RGB input. Truncated input leaves the remaining pixels transparent.
func DecodeRaw(path string, format, width, height int, compressed bool, maxBytes int64) (*image.RGBA, error) {
	if format != FormatRGB && format != FormatRGBA {
		return nil, fmt.Errorf("unsupported raw format: %d", format)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid raw image size: %d x %d", width, height)
	}
	if size := int64(width) * int64(height) * 4; size > maxBytes {
		return nil, fmt.Errorf("image too big to load: %d > %d", size, maxBytes)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		zr, err := zlib.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("inflate image data: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	pixelSize := 3
	if format == FormatRGBA {
		pixelSize = 4
	}
	raw := make([]byte, width*height*pixelSize)
	n, err := io.ReadFull(r, raw)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("read image data: %w", err)
	}

	img := New(width, height)
	copyPixels(img.Pix, raw[:n], format)
	return img, nil
}

// copyPixels translates client RGB(A) bytes into the raster's RGBA layout.
// Only whole pixels are copied; a trailing partial pixel is dropped.
func copyPixels(dst, src []byte, format int) {
	if format == FormatRGBA {
		n := len(src) / 4 * 4
		copy(dst, src[:n])
		return
	}
	pixels := len(src) / 3
	for i := 0; i < pixels; i++ {
		dst[i*4] = src[i*3]
		dst[i*4+1] = src[i*3+1]
		dst[i*4+2] = src[i*3+2]
		dst[i*4+3] = 0xFF
	}
}
