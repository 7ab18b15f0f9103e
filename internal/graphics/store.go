package graphics

import (
	"math/rand/v2"
	"os"
)

// findImage returns the image with the given client id, or nil.
func (e *Engine) findImage(id uint32) *Image {
	return e.images[id]
}

// findImageByNumber returns the newest image carrying the given number, or
// nil. Newest means the highest creation index, so a number reused by a later
// transmission shadows older holders.
func (e *Engine) findImageByNumber(number uint32) *Image {
	if number == 0 {
		return nil
	}
	var best *Image
	for _, img := range e.images {
		if img.number != number {
			continue
		}
		if best == nil || img.commandIndex > best.commandIndex {
			best = img
		}
	}
	return best
}

// findPlacement returns the placement with the given id. Id 0 falls back to
// the image's default placement, electing the first placement found if no
// default is recorded yet.
func (e *Engine) findPlacement(img *Image, placementID uint32) *Placement {
	if img == nil {
		return nil
	}
	if placementID == 0 {
		if img.defaultPlacement != 0 {
			if p := img.placements[img.defaultPlacement]; p != nil {
				return p
			}
		}
		for _, p := range img.placements {
			img.defaultPlacement = p.id
			return p
		}
		return nil
	}
	return img.placements[placementID]
}

// findImageAndPlacement resolves a placement by image id and placement id.
func (e *Engine) findImageAndPlacement(imageID, placementID uint32) *Placement {
	return e.findPlacement(e.findImage(imageID), placementID)
}

// generateImageID picks a random unused 32-bit id. Ids whose top byte or
// middle two bytes are zero are avoided: such ids would not need a full
// 32-bit foreground color to encode in a placeholder cell.
func (e *Engine) generateImageID() uint32 {
	for {
		id := rand.Uint32()
		if id&0xFF000000 == 0 || id&0x00FFFF00 == 0 {
			continue
		}
		if e.findImage(id) != nil {
			continue
		}
		return id
	}
}

// generatePlacementID picks a random unused 24-bit id, avoiding ids whose
// middle two bytes are zero.
func generatePlacementID(img *Image) uint32 {
	for {
		id := rand.Uint32() & 0xFFFFFF
		if id&0x00FFFF00 == 0 {
			continue
		}
		if _, ok := img.placements[id]; ok {
			continue
		}
		return id
	}
}

// newImage creates an image with the given id, generating a random one if
// the id is 0. An existing image with the same id is deleted first.
func (e *Engine) newImage(id uint32) *Image {
	if id == 0 {
		id = e.generateImageID()
		e.log.WithField("image", id).Debug("generated random image id")
	}
	if old := e.findImage(id); old != nil {
		e.deleteImageKeepID(old)
	}
	img := &Image{
		id:           id,
		commandIndex: e.nextCommandIndex(),
		placements:   make(map[uint32]*Placement),
	}
	e.images[id] = img
	e.touchImage(img)
	return img
}

func (e *Engine) nextCommandIndex() uint64 {
	e.cmdIndex++
	return e.cmdIndex
}

// newPlacement creates a placement of img with the given id, generating a
// random one if the id is 0. An existing placement with the same id is
// deleted first. The first placement of an image becomes its default.
func (e *Engine) newPlacement(img *Image, id uint32) *Placement {
	if id == 0 {
		id = generatePlacementID(img)
	}
	if old := img.placements[id]; old != nil {
		e.deletePlacementKeepID(old)
	}
	p := &Placement{
		image: img,
		id:    id,
	}
	img.placements[id] = p
	e.touchPlacement(p)
	if img.defaultPlacement == 0 {
		img.defaultPlacement = id
	}
	return p
}

// unloadImage discards the original raster; the disk file (if any) allows
// reloading later.
func (e *Engine) unloadImage(img *Image) {
	if img.original == nil {
		return
	}
	e.ramBytes -= img.ramSize()
	img.original = nil
	e.log.WithField("image", img.id).Debugf("unloaded image, ram now %d", e.ramBytes)
}

// unloadPlacement discards the scaled raster.
func (e *Engine) unloadPlacement(p *Placement) {
	if p.scaled == nil {
		return
	}
	e.ramBytes -= p.ramSize()
	p.scaled = nil
	p.scaledCW, p.scaledCH = 0, 0
}

// deleteImageFile removes the on-disk cache file. The RAM raster, if loaded,
// survives, so the image can still be displayed at the current cell size.
// An in-progress upload file is closed first.
func (e *Engine) deleteImageFile(img *Image) {
	if img.openFile != nil {
		img.openFile.Close()
		img.openFile = nil
	}
	if img.diskSize == 0 {
		return
	}
	if err := os.Remove(e.imageFilename(img)); err != nil && !os.IsNotExist(err) {
		e.log.WithError(err).WithField("image", img.id).
			Warn("could not remove cached image file")
	}
	e.diskBytes -= img.diskSize
	img.diskSize = 0
}

// deletePlacementKeepID unloads and detaches a placement without touching
// the owning image's placement map.
func (e *Engine) deletePlacementKeepID(p *Placement) {
	if p == nil {
		return
	}
	e.unloadPlacement(p)
}

// deletePlacement removes a placement from its image.
func (e *Engine) deletePlacement(p *Placement) {
	if p == nil {
		return
	}
	e.deletePlacementKeepID(p)
	delete(p.image.placements, p.id)
}

// deleteAllPlacements removes every placement of img.
func (e *Engine) deleteAllPlacements(img *Image) {
	for id, p := range img.placements {
		e.deletePlacementKeepID(p)
		delete(img.placements, id)
	}
}

// deleteImageKeepID fully deletes an image (raster, file, placements)
// without removing it from the store map.
func (e *Engine) deleteImageKeepID(img *Image) {
	if img == nil {
		return
	}
	e.unloadImage(img)
	e.deleteImageFile(img)
	e.deleteAllPlacements(img)
}

// deleteImage fully deletes an image and removes it from the store.
func (e *Engine) deleteImage(img *Image) {
	if img == nil {
		return
	}
	e.deleteImageKeepID(img)
	delete(e.images, img.id)
}

// deleteAllImages clears the whole store.
func (e *Engine) deleteAllImages() {
	for id, img := range e.images {
		e.deleteImageKeepID(img)
		delete(e.images, id)
	}
}

// placementCount returns the number of placements across all images.
func (e *Engine) placementCount() int {
	n := 0
	for _, img := range e.images {
		n += len(img.placements)
	}
	return n
}
