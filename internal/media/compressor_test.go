package media

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCompressDownscalesToJPEG(t *testing.T) {
	c := NewCompressor(100, 75)

	out, err := c.Compress(pngOf(t, 400, 200))
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestCompressKeepsSmallImages(t *testing.T) {
	out, err := NewCompressor(0, 0).Compress(pngOf(t, 30, 40))
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 30, 40), img.Bounds())
}

func TestCompressRejectsGarbage(t *testing.T) {
	_, err := NewCompressor(100, 80).Compress([]byte("not an image"))
	assert.Error(t, err)
}

// pngDeclaring returns a tiny PNG whose IHDR claims w x h pixels.
func pngDeclaring(t *testing.T, w, h uint32) []byte {
	t.Helper()
	buf := pngOf(t, 1, 1)
	// signature(8) length(4) "IHDR"(4) width(4) height(4) ... crc over type+data(13)
	binary.BigEndian.PutUint32(buf[16:20], w)
	binary.BigEndian.PutUint32(buf[20:24], h)
	binary.BigEndian.PutUint32(buf[29:33], crc32.ChecksumIEEE(buf[12:29]))
	return buf
}

func TestCompressRejectsOversizedHeader(t *testing.T) {
	c := NewCompressor(100, 80)

	_, err := c.Compress(pngDeclaring(t, 12000, 12000))
	require.ErrorIs(t, err, ErrImageTooLarge)

	cfg, err := png.DecodeConfig(bytes.NewReader(pngDeclaring(t, 12000, 12000)))
	require.NoError(t, err)
	assert.Equal(t, 12000, cfg.Width)
}

func TestCompressAcceptsBudgetEdge(t *testing.T) {
	c := NewCompressor(100, 80)
	c.maxPixels = 400 * 200

	_, err := c.Compress(pngOf(t, 400, 200))
	require.NoError(t, err)

	c.maxPixels = 400*200 - 1
	_, err = c.Compress(pngOf(t, 400, 200))
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{800, 600, 1600, 800, 600},
		{3200, 1600, 1600, 1600, 800},
		{1000, 4000, 1600, 400, 1600},
		{5000, 1, 100, 100, 1},
	}
	for _, tt := range tests {
		w, h := fit(tt.w, tt.h, tt.max)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}
