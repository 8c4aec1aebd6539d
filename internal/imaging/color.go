package imaging

import (
	"fmt"
	"image"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// DeltaE summarizes the perceptual color difference between two images.
//
// Values are CIE76 ΔE in the usual 0..100 Lab scale: below about 2 is hard
// to see, above 10 is an obvious difference.
type DeltaE struct {
	Mean    float64 `json:"mean" yaml:"mean"`
	Max     float64 `json:"max" yaml:"max"`
	Samples int     `json:"samples" yaml:"samples"`
}

// ColorDelta compares two equally sized images pixel by pixel in Lab space,
// sampling every step pixels along both axes (step < 1 means every pixel).
//
// For an aligned before/after pair the mean ΔE falls as alignment improves
// over unchanged regions, so it complements the correlation score.
func ColorDelta(a, b image.Image, step int) (*DeltaE, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return nil, fmt.Errorf("image sizes differ: %dx%d vs %dx%d", ab.Dx(), ab.Dy(), bb.Dx(), bb.Dy())
	}
	if ab.Empty() {
		return nil, fmt.Errorf("images are empty")
	}
	if step < 1 {
		step = 1
	}

	var sum, maxDelta float64
	n := 0
	for y := 0; y < ab.Dy(); y += step {
		for x := 0; x < ab.Dx(); x += step {
			ca, _ := colorful.MakeColor(a.At(ab.Min.X+x, ab.Min.Y+y))
			cb, _ := colorful.MakeColor(b.At(bb.Min.X+x, bb.Min.Y+y))
			d := ca.DistanceLab(cb) * 100
			sum += d
			maxDelta = math.Max(maxDelta, d)
			n++
		}
	}

	return &DeltaE{Mean: sum / float64(n), Max: maxDelta, Samples: n}, nil
}
