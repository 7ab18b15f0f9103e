package graphics

import (
	"fmt"
	"strings"
)

// Placeholder describes the placeholder glyphs the emulator must synthesize
// after a successful non-virtual put.
type Placeholder struct {
	ImageID         uint32
	PlacementID     uint32
	Columns         int
	Rows            int
	DoNotMoveCursor bool
}

// Result is the structured outcome of one command. Response holds the fully
// formatted reply to write back to the client, already filtered by the
// command's quiet level.
type Result struct {
	Response string
	Error    bool
	Redraw   bool

	CreatePlaceholder bool
	Placeholder       Placeholder
}

func (r *Result) reset() {
	*r = Result{}
}

// createResponse formats the wire response, echoing whichever of the image
// id, image number and placement id the caller supplied so the client can
// correlate it.
func (e *Engine) createResponse(imageID, imageNumber, placementID uint32, msg string) {
	if imageID == 0 && imageNumber == 0 && placementID == 0 {
		// Nobody can correlate a response without any id, log instead.
		e.log.Warnf("response without image id, image number or placement id: %s", msg)
		return
	}
	var b strings.Builder
	b.WriteString("\033_G")
	if imageID != 0 {
		fmt.Fprintf(&b, "i=%d,", imageID)
	}
	if imageNumber != 0 {
		fmt.Fprintf(&b, "I=%d,", imageNumber)
	}
	if placementID != 0 {
		fmt.Fprintf(&b, "p=%d,", placementID)
	}
	resp := strings.TrimSuffix(b.String(), ",")
	e.result.Response = resp + ";" + msg + "\033\\"
}

// reportSuccessCmd emits OK for a command, unless suppressed or a non-final
// chunk of a data transmission.
func (e *Engine) reportSuccessCmd(cmd *command) {
	if cmd.quiet < 1 && cmd.more == 0 {
		e.createResponse(cmd.imageID, cmd.imageNumber, cmd.placementID, "OK")
	}
}

// reportSuccessImg emits OK addressed with the image's ids. A query image
// responds with the id the client originally supplied.
func (e *Engine) reportSuccessImg(img *Image) {
	id := img.id
	if img.queryID != 0 {
		id = img.queryID
	}
	if img.quiet < 1 {
		e.createResponse(id, img.number, img.initialPlacementID, "OK")
	}
}

// reportErrorCmd emits an error response for a command (unless suppressed)
// and logs it.
func (e *Engine) reportErrorCmd(cmd *command, format string, args ...any) {
	e.result.Error = true
	msg := fmt.Sprintf(format, args...)
	e.log.Warnf("%s  in command: %s", msg, cmd.raw)
	if cmd.quiet < 2 {
		e.createResponse(cmd.imageID, cmd.imageNumber, cmd.placementID, msg)
	}
}

// reportErrorImg emits an error response addressed with the image's ids.
func (e *Engine) reportErrorImg(img *Image, format string, args ...any) {
	e.result.Error = true
	msg := fmt.Sprintf(format, args...)
	if img == nil {
		e.log.Warn(msg)
		return
	}
	id := img.id
	if img.queryID != 0 {
		id = img.queryID
	}
	e.log.Warnf("%s  id=%d", msg, id)
	if img.quiet < 2 {
		e.createResponse(id, img.number, img.initialPlacementID, msg)
	}
}

// reportUploadError translates the image's recorded upload failure into the
// protocol error response.
func (e *Engine) reportUploadError(img *Image) {
	switch img.uploadFailure {
	case UploadOK:
	case UploadErrCannotOpenCachedFile:
		e.reportErrorImg(img, "EIO: could not create a file for image")
	case UploadErrOverSizeLimit:
		e.reportErrorImg(img,
			"EFBIG: the size of the uploaded image exceeded the image size limit %d",
			e.cfg.MaxImageFileSize)
	case UploadErrUnexpectedSize:
		e.reportErrorImg(img,
			"EINVAL: the size of the uploaded image %d doesn't match the expected size %d",
			img.diskSize, img.expectedSize)
	case UploadErrCannotCopyFile:
		e.reportErrorImg(img, "EBADF: could not copy the image to the cache dir")
	}
}
