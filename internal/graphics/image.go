package graphics

import (
	"image"
	"os"

	"github.com/llehouerou/termgfx/internal/raster"
)

// Status tracks an image through its lifecycle: uploaded to the disk cache
// first, then loaded into RAM when a placement needs it.
type Status uint8

const (
	StatusUninitialized Status = iota
	StatusUploading
	StatusUploadingError
	StatusUploadingSuccess
	StatusRAMLoadingError
	StatusRAMLoadingSuccess
)

func (s Status) String() string {
	switch s {
	case StatusUploading:
		return "UPLOADING"
	case StatusUploadingError:
		return "UPLOADING_ERROR"
	case StatusUploadingSuccess:
		return "UPLOADING_SUCCESS"
	case StatusRAMLoadingError:
		return "RAM_LOADING_ERROR"
	case StatusRAMLoadingSuccess:
		return "RAM_LOADING_SUCCESS"
	default:
		return "UNINITIALIZED"
	}
}

// UploadFailure records why an upload went wrong, for the response and for
// later queries of the image state.
type UploadFailure uint8

const (
	UploadOK UploadFailure = iota
	UploadErrOverSizeLimit
	UploadErrCannotOpenCachedFile
	UploadErrUnexpectedSize
	UploadErrCannotCopyFile
)

// Image is an original raster received from the client. It lives on disk in
// the cache dir and may additionally be loaded into RAM.
type Image struct {
	// The client id (the one specified with 'i='). Must be nonzero.
	id uint32
	// The id specified in a query command ('a=q'). If non-zero the image
	// is ephemeral and responses must use this id.
	queryID uint32
	// The number specified with 'I='. Secondary handle; among images
	// sharing a number the one with the highest commandIndex wins.
	number uint32
	// Creation order, used to tiebreak number lookups.
	commandIndex uint64
	// Monotonic access counter maintained by the engine.
	atime uint64

	diskSize     int64
	expectedSize int64

	format      int
	compression byte
	pixWidth    int
	pixHeight   int

	status        Status
	uploadFailure UploadFailure
	// 0 reports everything, 1 suppresses OK, 2 suppresses errors too.
	quiet int

	// Non-nil exactly while a chunked upload is in progress.
	openFile *os.File

	original *image.RGBA

	placements map[uint32]*Placement
	// The first placement created, used by lookups with placement id 0.
	defaultPlacement uint32
	// The placement id supplied with a transmit-and-put command, used for
	// response addressing.
	initialPlacementID uint32
}

// ID returns the client-visible image id.
func (img *Image) ID() uint32 { return img.id }

// Status returns the current lifecycle status.
func (img *Image) Status() Status { return img.status }

// DiskSize returns the number of bytes the image occupies in the disk cache.
func (img *Image) DiskSize() int64 { return img.diskSize }

// ramSize estimates the RAM used by the original raster when loaded.
func (img *Image) ramSize() int64 {
	return int64(img.pixWidth) * int64(img.pixHeight) * 4
}

// Placement is a sized, cropped, scaled view of an Image, owned by it.
type Placement struct {
	image *Image
	id    uint32
	atime uint64

	// protected is a transient hint that forbids eviction of the scaled
	// raster during the current operation.
	protected bool
	// virtual placements only annotate Unicode placeholder cells and are
	// never drawn directly.
	virtual         bool
	scaleMode       raster.ScaleMode
	doNotMoveCursor bool

	// Cell dimensions on the grid; 0 means infer.
	cols, rows int

	// Source rectangle in the image's pixel space. Zero or out-of-range
	// values are clamped when the placement is loaded.
	srcX, srcY, srcW, srcH int

	// The scaled raster and the cell size it was scaled for. A cell size
	// change (font change) discards and rebuilds it.
	scaled             *image.RGBA
	scaledCW, scaledCH int
}

// ID returns the placement id.
func (p *Placement) ID() uint32 { return p.id }

// Image returns the owning image.
func (p *Placement) Image() *Image { return p.image }

// ramSize estimates the RAM used by the scaled raster when loaded.
func (p *Placement) ramSize() int64 {
	return raster.RAMSize(p.scaled)
}
