// Command gfxfeed replays a stream of kitty graphics commands against a
// fresh engine and prints the responses, one per line. The input may be a
// raw TTY capture: anything outside _G...<ST> APC sequences is ignored.
//
// Usage: gfxfeed [capture-file]
//
// With no file the capture is read from stdin. Useful for debugging client
// applications against the same command engine the terminal embeds.
package main

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/llehouerou/termgfx/internal/config"
	"github.com/llehouerou/termgfx/internal/graphics"
	"github.com/llehouerou/termgfx/internal/logging"
)

var (
	apcStart = []byte("\x1b_G")
	apcEnd   = []byte("\x1b\\")
)

// nullBuffer counts blits instead of drawing them; gfxfeed has no screen.
type nullBuffer struct {
	blits int
}

func (b *nullBuffer) Blit(src *image.RGBA, sx, sy, w, h, dx, dy int) {
	b.blits++
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.Init(cfg.Log)

	input := os.Stdin
	if len(os.Args) > 1 {
		f, err := os.Open(os.Args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		input = f
	}

	data, err := io.ReadAll(input)
	if err != nil {
		return fmt.Errorf("read capture: %w", err)
	}

	engine, err := graphics.New(graphics.Options{Config: cfg, Logger: log})
	if err != nil {
		return err
	}
	defer engine.Close()

	buf := &nullBuffer{}
	cw, ch := cellSize()
	engine.StartDrawing(cw, ch)

	for {
		start := bytes.Index(data, apcStart)
		if start < 0 {
			break
		}
		data = data[start+len(apcStart)-1:] // keep the 'G' sentinel
		end := bytes.Index(data, apcEnd)
		if end < 0 {
			break
		}
		result := engine.HandleCommand(data[:end])
		data = data[end+len(apcEnd):]
		if result == nil {
			continue
		}
		if result.Response != "" {
			fmt.Printf("%q\n", result.Response)
		}
		if result.CreatePlaceholder {
			ph := result.Placeholder
			fmt.Printf("placeholder: image=%d placement=%d %dx%d cells\n",
				ph.ImageID, ph.PlacementID, ph.Columns, ph.Rows)
		}
	}

	engine.FinishDrawing(buf)
	if buf.blits > 0 {
		fmt.Printf("%d pending rects drawn\n", buf.blits)
	}
	if cfg.Debug {
		engine.DumpState()
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gfxfeed:", err)
		os.Exit(1)
	}
}
