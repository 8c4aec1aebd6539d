package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
)

// Crop extracts a rectangular region from an image. The rectangle must lie
// inside the image bounds and be non-empty.
func Crop(img image.Image, r image.Rectangle) (*image.NRGBA, error) {
	bounds := img.Bounds()

	if !r.In(bounds) {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	if r.Empty() {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}

	return imaging.Crop(img, r), nil
}

// Thumbnail shrinks img to ThumbnailSize with a Lanczos filter. Images that
// already fit are returned as an unscaled copy; Thumbnail never enlarges.
func Thumbnail(img image.Image, maxW, maxH int) *image.NRGBA {
	b := img.Bounds()
	w, h := ThumbnailSize(b.Dx(), b.Dy(), maxW, maxH)
	if w == b.Dx() && h == b.Dy() {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// ThumbnailSize returns the size of a w x h image shrunk to fit within
// maxW x maxH. The bound side is kept and the other side is whichever of
// its floor or ceiling keeps the aspect ratio closest, preferring the floor
// on a tie and never below 1.
func ThumbnailSize(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 || maxW <= 0 || maxH <= 0 {
		return w, h
	}
	if maxW >= w && maxH >= h {
		return w, h
	}

	aspect := float64(w) / float64(h)
	x, y := maxW, maxH
	if float64(x)/float64(y) >= aspect {
		x = roundAspect(float64(y)*aspect, func(n int) float64 {
			return math.Abs(aspect - float64(n)/float64(y))
		})
	} else {
		y = roundAspect(float64(x)/aspect, func(n int) float64 {
			if n == 0 {
				return 0
			}
			return math.Abs(aspect - float64(x)/float64(n))
		})
	}
	return x, y
}

func roundAspect(v float64, dist func(int) float64) int {
	lo, hi := int(math.Floor(v)), int(math.Ceil(v))
	n := lo
	if dist(hi) < dist(lo) {
		n = hi
	}
	return max(n, 1)
}

// ScaledSize returns the truncated size of a w x h image scaled by s.
func ScaledSize(w, h int, s float64) (int, int) {
	return int(float64(w) * s), int(float64(h) * s)
}

// Compose resizes img to w x h with a Lanczos filter and pastes it with its
// top-left corner at origin on a black canvasW x canvasH canvas. Parts of
// the resized image outside the canvas are dropped; uncovered canvas stays
// black.
func Compose(img image.Image, w, h int, origin image.Point, canvasW, canvasH int) (*image.NRGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid resize target %dx%d", w, h)
	}
	if canvasW <= 0 || canvasH <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", canvasW, canvasH)
	}

	var resized image.Image = img
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		resized = imaging.Resize(img, w, h, imaging.Lanczos)
	}
	canvas := imaging.New(canvasW, canvasH, color.NRGBA{0, 0, 0, 255})
	return imaging.Paste(canvas, resized, origin), nil
}

// EncodedImage is an image encoded as base64 PNG for transport in JSON.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG encodes img as base64 PNG.
func EncodePNG(img image.Image) (*EncodedImage, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
