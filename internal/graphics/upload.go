package graphics

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// appendData appends one chunk of a direct transmission to img's cache
// file. Errors are only reported on the final chunk to avoid flooding the
// client with one response per chunk.
func (e *Engine) appendData(img *Image, payload []byte, more int) {
	if img == nil {
		img = e.findImage(e.currentUploadID)
	}
	if more == 0 {
		e.currentUploadID = 0
	}
	if img == nil {
		if more == 0 {
			e.reportErrorImg(nil, "ENOENT: could not find the image to append data to")
		}
		return
	}
	if img.status != StatusUploading {
		if more == 0 {
			e.reportUploadError(img)
		}
		return
	}

	data := decodeBase64(payload)

	// Refuse to grow past the single-image file limit; an expected size
	// above the limit fails even before the data arrives.
	if img.diskSize+int64(len(data)) > e.cfg.MaxImageFileSize ||
		img.expectedSize > e.cfg.MaxImageFileSize {
		e.deleteImageFile(img)
		img.status = StatusUploadingError
		img.uploadFailure = UploadErrOverSizeLimit
		if more == 0 {
			e.reportUploadError(img)
		}
		return
	}

	if img.openFile == nil {
		e.ensureCacheDir()
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if img.diskSize > 0 {
			flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		}
		f, err := os.OpenFile(e.imageFilename(img), flags, 0o600)
		if err != nil {
			img.status = StatusUploadingError
			img.uploadFailure = UploadErrCannotOpenCachedFile
			if more == 0 {
				e.reportUploadError(img)
			}
			return
		}
		img.openFile = f
	}

	n, err := img.openFile.Write(data)
	img.diskSize += int64(n)
	e.diskBytes += int64(n)
	e.touchImage(img)
	if err != nil {
		e.log.WithError(err).WithField("image", img.id).Error("could not write image data")
	}

	if more != 0 {
		e.currentUploadID = img.id
	} else {
		e.currentUploadID = 0
		if img.openFile != nil {
			img.openFile.Close()
			img.openFile = nil
		}
		img.status = StatusUploadingSuccess
		if img.expectedSize != 0 && img.expectedSize != img.diskSize {
			img.status = StatusUploadingError
			img.uploadFailure = UploadErrUnexpectedSize
			e.reportUploadError(img)
		} else {
			img = e.loadImageAndReport(img)
			if img != nil {
				for _, p := range img.placements {
					e.displayNonvirtualPlacement(p)
				}
			}
		}
	}

	e.checkLimits()
}

// loadImageAndReport loads the image into RAM and responds with the
// outcome. Returns nil if the image was a query and has been discarded.
func (e *Engine) loadImageAndReport(img *Image) *Image {
	e.loadImage(img)
	if img.original == nil {
		e.reportErrorImg(img, "EBADF: could not load image")
	} else {
		e.reportSuccessImg(img)
	}
	if img.queryID != 0 {
		e.deleteImage(img)
		return nil
	}
	return img
}

// newImageFromCommand creates an image object for a transmission command and
// copies the transmission parameters into it.
func (e *Engine) newImageFromCommand(cmd *command) *Image {
	if cmd.format != 0 && cmd.format != 24 && cmd.format != 32 && cmd.compression != 0 {
		e.reportErrorCmd(cmd,
			"EINVAL: compression is supported only for raw pixel data (f=32 or f=24)")
		return nil
	}

	// A query uses a fresh random id so it can never clobber a real one.
	id := cmd.imageID
	if cmd.action == 'q' {
		id = 0
	}
	img := e.newImage(id)
	if cmd.action == 'q' {
		img.queryID = cmd.imageID
	} else if cmd.imageID == 0 {
		cmd.imageID = img.id
	}

	if cmd.imageNumber != 0 {
		// The number now belongs to this image; the old holder keeps
		// its id but loses the number.
		if old := e.findImageByNumber(cmd.imageNumber); old != nil {
			old.number = 0
		}
		img.number = cmd.imageNumber
	}

	img.expectedSize = cmd.size
	img.format = cmd.format
	img.compression = cmd.compression
	img.pixWidth = cmd.pixWidth
	img.pixHeight = cmd.pixHeight
	// Quietness is kept on the image: continuation chunks of a direct
	// transmission do not repeat it.
	img.quiet = cmd.quiet
	return img
}

// handleTransmit processes a transmission command over any medium.
func (e *Engine) handleTransmit(cmd *command) *Image {
	if cmd.medium == 0 {
		cmd.medium = 'd'
	}

	// Without an id or number, a direct-medium command continues the
	// active upload if there is one.
	if e.currentUploadID != 0 && cmd.imageID == 0 && cmd.imageNumber == 0 &&
		cmd.medium == 'd' {
		cmd.imageID = e.currentUploadID
	}

	switch cmd.medium {
	case 'f', 't':
		return e.transmitFromFile(cmd)
	case 'd':
		img := e.findImageForCommand(cmd)
		if img != nil && img.status == StatusUploading {
			cmd.isDirectContinuation = true
			e.appendData(img, cmd.payload, cmd.more)
			return img
		}
		if cmd.action == 0 {
			// A chunk without an action only continues an upload; with no
			// upload in progress it is dropped, and the final chunk reports
			// the recorded failure or the missing image.
			if cmd.more == 0 {
				if img != nil {
					e.reportUploadError(img)
				} else {
					e.reportErrorCmd(cmd, "ENOENT: could not find the image to append data to")
				}
			}
			return nil
		}
		img = e.newImageFromCommand(cmd)
		if img == nil {
			return nil
		}
		e.lastImageID = img.id
		img.status = StatusUploading
		e.appendData(img, cmd.payload, cmd.more)
		return img
	default:
		e.reportErrorCmd(cmd, "EINVAL: transmission medium '%c' is not supported",
			cmd.medium)
		return nil
	}
}

// transmitFromFile handles the 'f' and 't' media: the payload is a base64
// encoded absolute path on the terminal host, which is copied into the
// cache. A 't' medium file is deleted afterwards if it is clearly a
// protocol-generated temporary file.
func (e *Engine) transmitFromFile(cmd *command) *Image {
	img := e.newImageFromCommand(cmd)
	if img == nil {
		return nil
	}
	e.lastImageID = img.id

	original := string(decodeBase64(cmd.payload))

	st, err := os.Stat(original)
	var statError string
	switch {
	case err != nil:
		statError = err.Error()
	case !st.Mode().IsRegular():
		statError = "not a regular file"
	case st.Size() == 0:
		statError = "the size of the file is zero"
	case st.Size() > e.cfg.MaxImageFileSize:
		statError = "the file is too large"
	}
	if statError != "" {
		e.reportErrorCmd(cmd, "EBADF: %s", statError)
		e.log.Warnf("could not load file %q", original)
		img.status = StatusUploadingError
		img.uploadFailure = UploadErrCannotCopyFile
	} else if err := e.copyToCache(original, e.imageFilename(img)); err != nil {
		e.reportErrorCmd(cmd, "EBADF: could not copy the image to the cache dir")
		e.log.WithError(err).Warnf("could not copy %q into the cache", original)
		img.status = StatusUploadingError
		img.uploadFailure = UploadErrCannotCopyFile
	} else {
		img.status = StatusUploadingSuccess
		img.diskSize = st.Size()
		e.diskBytes += img.diskSize
		if img.expectedSize != 0 && img.expectedSize != img.diskSize {
			img.status = StatusUploadingError
			img.uploadFailure = UploadErrUnexpectedSize
			e.reportUploadError(img)
		} else {
			img = e.loadImageAndReport(img)
		}
	}

	if cmd.medium == 't' {
		e.deleteTempFile(original)
	}
	e.checkLimits()
	return img
}

// copyToCache copies the client's file into the cache dir through a sibling
// temp file so a half-written cache file can never be observed.
func (e *Engine) copyToCache(src, dst string) error {
	e.ensureCacheDir()
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// deleteTempFile deletes the original of a 't' transmission, but only when
// the path clearly belongs to the protocol: it must live under the temp dir
// and carry the protocol marker in its name. Never delete arbitrary files.
func (e *Engine) deleteTempFile(path string) {
	if !strings.Contains(filepath.Base(path), "tty-graphics-protocol") {
		return
	}
	inTmp := strings.HasPrefix(path, "/tmp/")
	if tmpdir := os.Getenv("TMPDIR"); !inTmp && tmpdir != "" {
		inTmp = strings.HasPrefix(path, strings.TrimSuffix(tmpdir, "/")+"/")
	}
	if !inTmp {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		e.log.WithError(err).Warnf("could not delete temporary file %q", path)
	}
}
