// Package media turns uploaded review photos into hosted assets.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxDimension = 1600
	DefaultQuality      = 80
	// DefaultMaxPixels bounds the decoded size of an upload (about 160 MB as RGBA).
	DefaultMaxPixels = 40_000_000
)

// ErrImageTooLarge is returned for images whose header declares more pixels than
// the compressor accepts. Retrying cannot help.
var ErrImageTooLarge = errors.New("image dimensions too large")

// Compressor re-encodes images as JPEG no larger than maxDimension on either side.
type Compressor struct {
	maxDimension int
	quality      int // JPEG quality (1-100)
	maxPixels    int
}

func NewCompressor(maxDimension, quality int) *Compressor {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Compressor{maxDimension: maxDimension, quality: quality, maxPixels: DefaultMaxPixels}
}

// Compress decodes a JPEG, PNG or WebP buffer, downscales it if needed and
// returns it as JPEG. Transparent areas become white. The header is checked
// against the pixel budget before any pixel data is decoded.
func (c *Compressor) Compress(buf []byte) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > c.maxPixels/cfg.Height {
		return nil, fmt.Errorf("%w: %s %dx%d", ErrImageTooLarge, format, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := fit(bounds.Dx(), bounds.Dy(), c.maxDimension)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	if w == bounds.Dx() && h == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return out.Bytes(), nil
}

// fit scales w x h down to fit inside limit x limit keeping the aspect ratio.
// Images already inside the box are left alone.
func fit(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		nh := h * limit / w
		if nh < 1 {
			nh = 1
		}
		return limit, nh
	}
	nw := w * limit / h
	if nw < 1 {
		nw = 1
	}
	return nw, limit
}
