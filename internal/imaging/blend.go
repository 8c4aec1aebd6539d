package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
)

// Overlay blends after over before at the given opacity (0..1) for a quick
// visual check of an aligned pair. after is resized to before's size first
// if the two differ.
func Overlay(before, after image.Image, opacity float64) *image.RGBA {
	switch {
	case opacity < 0:
		opacity = 0
	case opacity > 1:
		opacity = 1
	}
	bb := before.Bounds()
	if ab := after.Bounds(); ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		after = imaging.Resize(after, bb.Dx(), bb.Dy(), imaging.Lanczos)
	}
	return blend.Opacity(before, after, opacity)
}

// Blur applies a Gaussian blur of the given radius. A radius <= 0 returns
// img unchanged.
func Blur(img image.Image, radius float64) image.Image {
	if radius <= 0 {
		return img
	}
	return blur.Gaussian(img, radius)
}
