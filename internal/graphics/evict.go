package graphics

import "sort"

// checkLimits enforces the four budgets. A budget is only acted upon once it
// exceeds limit*(1+tolerance); cleanup then reduces it back to the limit.
// Victims are always oldest-atime first over a snapshot of the store.
//
// Order matters: whole images first (frees everything at once), then
// placement count, then disk-only cleanup, then RAM unloading of originals
// and finally of scaled placements.
func (e *Engine) checkLimits() {
	tol := 1 + e.cfg.ExcessTolerance

	// 1. Image count.
	if limit := e.cfg.MaxImages; limit > 0 && float64(len(e.images)) > float64(limit)*tol {
		for _, img := range e.imagesByAtime() {
			if len(e.images) <= limit {
				break
			}
			e.deleteImage(img)
		}
		e.log.Debugf("image count eviction done, %d images left", len(e.images))
	}

	// 2. Placement count. Protected placements are skipped, even when
	// they are the oldest.
	if limit := e.cfg.MaxPlacements; limit > 0 && float64(e.placementCount()) > float64(limit)*tol {
		count := e.placementCount()
		for _, p := range e.placementsByAtime() {
			if count <= limit {
				break
			}
			if p.protected {
				continue
			}
			e.deletePlacement(p)
			count--
		}
	}

	// 3. Disk bytes. Only the files are deleted; the objects and any
	// loaded rasters survive.
	if limit := e.cfg.MaxDiskCacheSize; limit > 0 && float64(e.diskBytes) > float64(limit)*tol {
		for _, img := range e.imagesByAtime() {
			if e.diskBytes <= limit {
				break
			}
			if img.diskSize == 0 {
				continue
			}
			e.deleteImageFile(img)
		}
		e.log.Debugf("disk eviction done, %d bytes left", e.diskBytes)
	}

	// 4 and 5. RAM: original rasters first, then scaled placements.
	if limit := e.cfg.MaxRAMSize; limit > 0 && float64(e.ramBytes) > float64(limit)*tol {
		for _, img := range e.imagesByAtime() {
			if e.ramBytes <= limit {
				break
			}
			e.unloadImage(img)
		}
		for _, p := range e.placementsByAtime() {
			if e.ramBytes <= limit {
				break
			}
			if p.protected {
				continue
			}
			e.unloadPlacement(p)
		}
		e.log.Debugf("ram eviction done, %d bytes left", e.ramBytes)
	}
}

// imagesByAtime snapshots the images sorted oldest first. Equal atimes keep
// a stable order.
func (e *Engine) imagesByAtime() []*Image {
	imgs := make([]*Image, 0, len(e.images))
	for _, img := range e.images {
		imgs = append(imgs, img)
	}
	sort.SliceStable(imgs, func(i, j int) bool {
		return imgs[i].atime < imgs[j].atime
	})
	return imgs
}

// placementsByAtime snapshots all placements sorted oldest first.
func (e *Engine) placementsByAtime() []*Placement {
	var ps []*Placement
	for _, img := range e.images {
		for _, p := range img.placements {
			ps = append(ps, p)
		}
	}
	sort.SliceStable(ps, func(i, j int) bool {
		return ps[i].atime < ps[j].atime
	})
	return ps
}
