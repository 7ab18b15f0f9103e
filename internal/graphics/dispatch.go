package graphics

import (
	"github.com/llehouerou/termgfx/internal/raster"
)

// HandleCommand parses and executes one graphics command. buf is the escape
// sequence payload beginning with the 'G' sentinel; the enclosing escape
// framing must already be stripped by the emulator. Returns nil when buf is
// not a graphics command. The returned Result is reused by the next call.
func (e *Engine) HandleCommand(buf []byte) *Result {
	if len(buf) == 0 || buf[0] != 'G' {
		return nil
	}
	e.result.reset()

	cmd := e.parseCommand(buf[1:])
	if !e.result.Error {
		e.handleCommand(cmd)
	}

	// Re-apply quietness after every writer has finished: some responses
	// are produced deep inside the upload machinery.
	if cmd.quiet >= 1 {
		if !e.result.Error || cmd.quiet >= 2 {
			e.result.Response = ""
		}
	}
	return e.result
}

func (e *Engine) handleCommand(cmd *command) {
	continuation := cmd.isDataTransmission && e.currentUploadID != 0
	if cmd.imageID == 0 && cmd.imageNumber == 0 && !continuation {
		// Nobody can correlate a response to this command. Continuation
		// chunks are exempt: they respond with the ids recorded on the
		// image when the upload started.
		cmd.quiet = 2
	}

	switch cmd.action {
	case 0:
		// No action: valid only as a continuation chunk.
		if cmd.isDataTransmission {
			e.handleTransmit(cmd)
			return
		}
		e.reportErrorCmd(cmd, "EINVAL: no action specified")
	case 't', 'q':
		// Query is a transmit with a fake id and an ephemeral image.
		e.handleTransmit(cmd)
	case 'p':
		e.handlePut(cmd)
	case 'T':
		img := e.handleTransmit(cmd)
		if img != nil && !cmd.isDirectContinuation {
			e.handlePut(cmd)
			if cmd.placementID != 0 {
				img.initialPlacementID = cmd.placementID
			}
		}
	case 'd':
		e.handleDelete(cmd)
	default:
		e.reportErrorCmd(cmd, "EINVAL: unsupported action: %c", cmd.action)
	}
}

// findImageForCommand resolves the target image by id, then by number. A put
// command with neither falls back to the most recently created image. On
// success the command's image id is filled in for response addressing.
func (e *Engine) findImageForCommand(cmd *command) *Image {
	if cmd.imageID != 0 {
		return e.findImage(cmd.imageID)
	}
	var img *Image
	if cmd.imageNumber == 0 && cmd.action == 'p' {
		img = e.findImage(e.lastImageID)
	} else {
		img = e.findImageByNumber(cmd.imageNumber)
	}
	if img != nil {
		cmd.imageID = img.id
	}
	return img
}

// handlePut creates (or replaces) a placement.
func (e *Engine) handlePut(cmd *command) {
	img := e.findImageForCommand(cmd)
	if img == nil {
		if cmd.imageID == 0 && cmd.imageNumber == 0 {
			e.reportErrorCmd(cmd,
				"EINVAL: neither image id nor image number are specified or both are zero")
		} else {
			e.reportErrorCmd(cmd, "ENOENT: image not found")
		}
		return
	}

	p := e.newPlacement(img, cmd.placementID)
	p.virtual = cmd.virtual
	p.cols = cmd.cols
	p.rows = cmd.rows
	p.srcX = cmd.srcX
	p.srcY = cmd.srcY
	p.srcW = cmd.srcW
	p.srcH = cmd.srcH
	p.doNotMoveCursor = cmd.doNotMoveCursor

	switch {
	case cmd.virtual:
		p.scaleMode = raster.ScaleContain
	case cmd.cols != 0 || cmd.rows != 0:
		p.scaleMode = raster.ScaleFill
	default:
		p.scaleMode = raster.ScaleNone
	}

	e.displayNonvirtualPlacement(p)
	e.reportSuccessCmd(cmd)
	e.checkLimits()
}

// displayNonvirtualPlacement records the placeholder-creation request for a
// classic placement of a successfully loaded image. The emulator synthesizes
// the placeholder glyphs after the command completes.
func (e *Engine) displayNonvirtualPlacement(p *Placement) {
	if p.virtual {
		return
	}
	if p.image.status < StatusRAMLoadingSuccess {
		return
	}
	e.inferPlacementSize(p)
	e.result.CreatePlaceholder = true
	e.result.Placeholder = Placeholder{
		ImageID:         p.image.id,
		PlacementID:     p.id,
		Columns:         p.cols,
		Rows:            p.rows,
		DoNotMoveCursor: p.doNotMoveCursor,
	}
}

// handleDelete executes a delete command. Lowercase specifiers unlink
// placements only; uppercase ones also delete the image object once its
// placement count drops to zero.
func (e *Engine) handleDelete(cmd *command) {
	spec := cmd.deleteSpec
	upper := spec >= 'A' && spec <= 'Z'
	lower := spec | 0x20 // specifier folded to lowercase

	switch {
	case spec == 0, lower == 'a':
		e.deleteAllClassic(upper)
		e.result.Redraw = true
		e.reportSuccessCmd(cmd)
	case lower == 'i', lower == 'n':
		var img *Image
		if lower == 'i' {
			if cmd.imageID == 0 {
				e.reportErrorCmd(cmd, "EINVAL: no image id to delete")
				return
			}
			img = e.findImage(cmd.imageID)
		} else {
			if cmd.imageNumber == 0 {
				e.reportErrorCmd(cmd, "EINVAL: no image number to delete")
				return
			}
			img = e.findImageByNumber(cmd.imageNumber)
		}
		if img != nil {
			e.deleteImagePlacements(img, cmd.placementID, upper)
			e.result.Redraw = true
		}
		e.reportSuccessCmd(cmd)
	default:
		e.log.Warnf("unsupported value of the d key: '%c', the command is ignored", spec)
	}
}

// deleteImagePlacements deletes placements of img. With a placement id only
// that placement goes; otherwise all of them. When deleteImage is set the
// image itself is deleted once no placements remain; with no placement id
// given it is deleted outright, which is the only way to remove an image
// whose remaining placements are all virtual.
func (e *Engine) deleteImagePlacements(img *Image, placementID uint32, deleteImage bool) {
	if placementID != 0 {
		if p := img.placements[placementID]; p != nil {
			e.deletePlacement(p)
		}
		if deleteImage && len(img.placements) == 0 {
			e.deleteImage(img)
		}
		return
	}
	if deleteImage {
		e.deleteImage(img)
		return
	}
	e.deleteAllPlacements(img)
}

// deleteAllClassic deletes every visible (non-virtual) placement across all
// images, clearing their placeholder cells through the emulator's cell
// iterator. With deleteImages set, images left without placements are
// deleted too.
func (e *Engine) deleteAllClassic(deleteImages bool) {
	if e.cells != nil {
		e.cells.ForEachImageCell(
			func(imageID, placementID uint32, col, row int, classic bool) bool {
				return classic
			})
	}
	for _, img := range e.imagesByAtime() {
		for _, p := range img.placements {
			if !p.virtual {
				e.deletePlacement(p)
			}
		}
		if deleteImages && len(img.placements) == 0 {
			e.deleteImage(img)
		}
	}
}
