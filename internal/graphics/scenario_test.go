package graphics

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llehouerou/termgfx/internal/config"
)

// zlibPixels compresses raw pixel data the way an o=z client would.
func zlibPixels(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestScenarioCompressedRawUpload(t *testing.T) {
	e := newTestEngine(t, nil)

	raw := rgbaPixels(3, 2)
	compressed := zlibPixels(t, raw)
	cmd := fmt.Sprintf("Gi=4,a=t,t=d,f=32,o=z,s=3,v=2,m=0;%s", b64(compressed))

	res := e.HandleCommand([]byte(cmd))
	require.False(t, res.Error)
	require.Equal(t, "\x1b_Gi=4;OK\x1b\\", res.Response)

	img := e.findImage(4)
	require.Equal(t, StatusRAMLoadingSuccess, img.status)
	require.EqualValues(t, len(compressed), img.diskSize,
		"disk holds the compressed bytes")
	require.EqualValues(t, 3*2*4, img.ramSize(),
		"ram holds the decoded raster")
	checkAccounting(t, e)
}

func TestScenarioCompressedRGBUpload(t *testing.T) {
	e := newTestEngine(t, nil)

	raw := []byte{1, 2, 3, 4, 5, 6} // two RGB pixels
	cmd := fmt.Sprintf("Gi=4,a=t,t=d,f=24,o=z,s=2,v=1,m=0;%s", b64(zlibPixels(t, raw)))

	res := e.HandleCommand([]byte(cmd))
	require.False(t, res.Error)
	require.EqualValues(t, 2*1*4, e.RAMBytes(), "RGB input is channel-extended")
}

func TestScenarioAutodetectFallsBackToRaw(t *testing.T) {
	e := newTestEngine(t, nil)

	// f=0 with data no image decoder accepts, but with s= and v= so the
	// raw RGBA fallback can interpret it.
	cmd := fmt.Sprintf("Gi=5,a=t,t=d,f=0,s=1,v=1,m=0;%s", b64(rgbaPixels(1, 1)))
	res := e.HandleCommand([]byte(cmd))

	require.False(t, res.Error)
	require.Equal(t, StatusRAMLoadingSuccess, e.findImage(5).status)
}

func TestScenarioAutodetectPNG(t *testing.T) {
	e := newTestEngine(t, nil)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 6, 4))))

	cmd := fmt.Sprintf("Gi=5,a=t,t=d,f=0,m=0;%s", b64(buf.Bytes()))
	res := e.HandleCommand([]byte(cmd))

	require.False(t, res.Error)
	img := e.findImage(5)
	require.Equal(t, 6, img.pixWidth, "dimensions come from the decoded file")
	require.Equal(t, 4, img.pixHeight)
}

func TestScenarioUploadDrawEvictRedraw(t *testing.T) {
	// The full life of a placement: upload, draw, lose the scaled raster
	// to eviction, draw again from the surviving disk file.
	e := newTestEngine(t, nil)
	e.StartDrawing(2, 2)
	uploadRGBA(e, 1, 4, 4)
	put(e, 1, 2, 2, 2)

	buf := &recordingBuffer{}
	e.AppendRect(buf, 1, 2, 0, 2, 0, 2, 0, 0, 2, 2, false)
	e.FinishDrawing(buf)
	require.Len(t, buf.blits, 1)

	p := e.findImageAndPlacement(1, 2)
	require.NotNil(t, p.scaled)

	e.unloadPlacement(p)
	e.unloadImage(e.findImage(1))
	require.EqualValues(t, 0, e.RAMBytes())

	e.AppendRect(buf, 1, 2, 0, 2, 0, 2, 0, 0, 2, 2, false)
	e.FinishDrawing(buf)
	require.Len(t, buf.blits, 2, "the placement reloads from disk")
	checkAccounting(t, e)
}

func TestScenarioFontChangeRescalesOnDraw(t *testing.T) {
	e := newTestEngine(t, nil)
	e.StartDrawing(2, 2)
	uploadRGBA(e, 1, 4, 4)
	put(e, 1, 2, 2, 2)

	buf := &recordingBuffer{}
	e.AppendRect(buf, 1, 2, 0, 2, 0, 2, 0, 0, 2, 2, false)
	e.FinishDrawing(buf)
	require.Equal(t, 4, buf.blits[0].src.Bounds().Dx(), "2 cols x 2 px")

	// The font grew: the same placement is redrawn at the new cell size.
	e.StartDrawing(4, 4)
	e.AppendRect(buf, 1, 2, 0, 2, 0, 2, 0, 0, 4, 4, false)
	e.FinishDrawing(buf)
	require.Equal(t, 8, buf.blits[1].src.Bounds().Dx(), "2 cols x 4 px")
	checkAccounting(t, e)
}

func TestScenarioAccountingIdentityOverCommandStream(t *testing.T) {
	e := newTestEngine(t, func(cfg *config.Config) {
		cfg.MaxDiskCacheSize = 200
		cfg.MaxRAMSize = 400
		cfg.MaxImages = 6
		cfg.MaxPlacements = 8
		cfg.ExcessTolerance = 0
	})
	e.StartDrawing(4, 8)

	buf := &recordingBuffer{}
	for i := 1; i <= 12; i++ {
		uploadRGBA(e, uint32(i), 1+i%3, 2)
		put(e, uint32(i), uint32(100+i), 1, 1)
		if i%3 == 0 {
			e.AppendRect(buf, uint32(i), uint32(100+i), 0, 1, 0, 1, 0, 0, 4, 8, false)
			e.FinishDrawing(buf)
		}
		if i%4 == 0 {
			e.HandleCommand([]byte(fmt.Sprintf("Ga=d,d=i,i=%d", i-1)))
		}
		// The identity holds at every quiescent point.
		checkAccounting(t, e)
		require.LessOrEqual(t, len(e.images), 6)
		require.LessOrEqual(t, e.placementCount(), 8)
		require.LessOrEqual(t, e.DiskBytes(), int64(200))
		require.LessOrEqual(t, e.RAMBytes(), int64(400))
	}
}

func TestScenarioQueryLeavesNoTrace(t *testing.T) {
	e := newTestEngine(t, nil)
	uploadRGBA(e, 1, 2, 2)
	disk, ram := e.DiskBytes(), e.RAMBytes()

	res := e.HandleCommand([]byte("Gi=900,a=q,t=d,f=32,s=1,v=1,m=0;" + b64(rgbaPixels(1, 1))))
	require.Equal(t, "\x1b_Gi=900;OK\x1b\\", res.Response)

	require.Equal(t, disk, e.DiskBytes())
	require.Equal(t, ram, e.RAMBytes())
	require.Len(t, e.images, 1, "only the real image remains")

	entries, err := os.ReadDir(e.CacheDir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "the query's cache file is gone")
	require.Equal(t, "img-001", entries[0].Name())
}

func TestScenarioFileUploadKeepsStoreConsistentAcrossEviction(t *testing.T) {
	e := newTestEngine(t, func(cfg *config.Config) {
		cfg.MaxDiskCacheSize = 0 // unlimited disk
		cfg.MaxRAMSize = 6 * 4 * 4
		cfg.ExcessTolerance = 0
	})
	e.StartDrawing(10, 20)

	dir := t.TempDir()
	for i := 1; i <= 4; i++ {
		path, _ := writePNG(t, dir, fmt.Sprintf("img-%d.png", i), 4, 6)
		res := e.HandleCommand([]byte(
			fmt.Sprintf("Gi=%d,a=T,t=f,f=100,c=1,r=1;%s", i, b64([]byte(path)))))
		require.False(t, res.Error)
		checkAccounting(t, e)
	}
	require.LessOrEqual(t, e.RAMBytes(), int64(96))

	for i := 1; i <= 4; i++ {
		require.FileExists(t, filepath.Join(e.CacheDir(), fmt.Sprintf("img-%.3d", i)),
			"disk files survive a pure RAM eviction")
	}
}

func TestDumpStateDoesNotPanic(t *testing.T) {
	e := newTestEngine(t, nil)
	e.StartDrawing(10, 20)
	uploadRGBA(e, 1, 4, 4)
	put(e, 1, 2, 1, 1)

	e.DumpState()
}
