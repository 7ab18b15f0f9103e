// Package graphics implements the terminal-side image store and command
// engine of the kitty graphics protocol with the Unicode-placeholder
// extension. Images arrive over the TTY as escape-sequence payloads, are
// cached on disk and in RAM, scaled per placement, and drawn into the
// terminal's back buffer at positions indicated by placeholder glyphs.
//
// The engine is single-threaded by design: it lives inside the terminal
// event loop and every operation runs to completion before the next one.
package graphics

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/llehouerou/termgfx/internal/config"
)

// maxImageRects is the size of the pending draw-rectangle bank.
const maxImageRects = 20

// BackBuffer is the blit primitive the emulator provides. Blit draws the
// w x h region of src starting at (sx, sy) onto the back buffer at (dx, dy).
type BackBuffer interface {
	Blit(src *image.RGBA, sx, sy, w, h, dx, dy int)
}

// CellIterator walks the emulator's cell grid and invokes visit for every
// cell that references an image. When visit returns true the emulator clears
// the cell.
type CellIterator interface {
	ForEachImageCell(visit func(imageID, placementID uint32, col, row int, classic bool) bool)
}

// Options configures an Engine. A nil Config means config.Default(). Budgets
// are used as given: a zero image-count, placement-count, disk-cache or
// total-RAM budget disables that limit.
type Options struct {
	Config *config.Config
	Logger *logrus.Logger
	// Cells is used by the delete-all command to clear classic
	// placeholder cells. Optional.
	Cells CellIterator
}

// Engine is the image store and graphics-command engine.
type Engine struct {
	cfg   *config.Config
	log   *logrus.Logger
	cells CellIterator

	cacheDir string

	images    map[uint32]*Image
	diskBytes int64
	ramBytes  int64

	// Monotonic counters: clock orders atimes, cmdIndex orders image
	// creation for number tiebreaks.
	clock    uint64
	cmdIndex uint64

	// The id of the most recently created image, used by put commands
	// that specify neither an id nor a number.
	lastImageID uint32
	// The continuation target of an active chunked direct upload, or 0.
	currentUploadID uint32

	// Current cell dimensions in pixels.
	cw, ch int

	rects [maxImageRects]imageRect

	result *Result
}

// New creates an engine and its private cache directory.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(os.Stderr)
	}

	e := &Engine{
		cfg:    cfg,
		log:    log,
		cells:  opts.Cells,
		images: make(map[uint32]*Image),
		result: &Result{},
	}
	if err := e.createCacheDir(); err != nil {
		return nil, err
	}
	return e, nil
}

// Close deletes all images, their disk files and the cache directory.
func (e *Engine) Close() {
	for _, img := range e.images {
		e.deleteImageKeepID(img)
	}
	e.images = make(map[uint32]*Image)
	if e.cacheDir != "" {
		if err := os.Remove(e.cacheDir); err != nil {
			e.log.WithError(err).Debug("could not remove graphics cache directory")
		}
		e.cacheDir = ""
	}
}

// CacheDir returns the private cache directory of this engine.
func (e *Engine) CacheDir() string { return e.cacheDir }

func (e *Engine) createCacheDir() error {
	base := e.cfg.CacheDir
	if base == "" {
		base = os.TempDir()
	}
	dir, err := os.MkdirTemp(base, "termgfx-images-")
	if err != nil {
		return fmt.Errorf("create graphics cache directory: %w", err)
	}
	e.cacheDir = dir
	e.log.WithField("dir", dir).Debug("graphics cache directory created")
	return nil
}

// ensureCacheDir recreates the cache directory if it disappeared during
// operation.
func (e *Engine) ensureCacheDir() {
	st, err := os.Stat(e.cacheDir)
	if err == nil && st.IsDir() {
		return
	}
	e.log.WithField("dir", e.cacheDir).Warn(
		"graphics cache directory vanished, creating a new one")
	if err := e.createCacheDir(); err != nil {
		e.log.WithError(err).Error("could not recreate graphics cache directory")
	}
}

// imageFilename returns the on-disk cache file path for img, of the form
// <cache>/img-<id> with the id zero-padded to at least 3 digits.
func (e *Engine) imageFilename(img *Image) string {
	return filepath.Join(e.cacheDir, fmt.Sprintf("img-%.3d", img.id))
}

// tick advances the monotonic access clock.
func (e *Engine) tick() uint64 {
	e.clock++
	return e.clock
}

func (e *Engine) touchImage(img *Image) {
	img.atime = e.tick()
}

func (e *Engine) touchPlacement(p *Placement) {
	e.touchImage(p.image)
	p.atime = e.tick()
}

// DiskBytes returns the total size of the on-disk cache.
func (e *Engine) DiskBytes() int64 { return e.diskBytes }

// RAMBytes returns the total estimated size of all loaded rasters.
func (e *Engine) RAMBytes() int64 { return e.ramBytes }

// DumpState logs the whole store and cross-checks the size accounting.
func (e *Engine) DumpState() {
	e.log.Infof("graphics state: %d images, ram %s, disk %s",
		len(e.images), humanize.IBytes(uint64(e.ramBytes)),
		humanize.IBytes(uint64(e.diskBytes)))

	var ramComputed, diskComputed int64
	for _, img := range e.images {
		entry := e.log.WithFields(logrus.Fields{
			"image":  img.id,
			"status": img.status.String(),
		})
		entry.Infof("image %d: %dx%d px, disk %s, %d placements, default %d",
			img.id, img.pixWidth, img.pixHeight,
			humanize.IBytes(uint64(img.diskSize)),
			len(img.placements), img.defaultPlacement)
		diskComputed += img.diskSize
		if img.original != nil {
			ramComputed += img.ramSize()
		}
		for _, p := range img.placements {
			e.log.Infof("  placement %d/%d: %d cols x %d rows, virtual=%v, loaded=%v",
				img.id, p.id, p.cols, p.rows, p.virtual, p.scaled != nil)
			ramComputed += p.ramSize()
		}
	}
	if ramComputed != e.ramBytes {
		e.log.Warnf("ram accounting mismatch: tracked %d, computed %d",
			e.ramBytes, ramComputed)
	}
	if diskComputed != e.diskBytes {
		e.log.Warnf("disk accounting mismatch: tracked %d, computed %d",
			e.diskBytes, diskComputed)
	}
}
