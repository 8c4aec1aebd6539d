package search

import (
	"image"
	"math"

	"github.com/ironsheep/slider-align/internal/correlate"
)

// Placement says where the resized "after" image goes on the "before"
// canvas: resize after to Size, then paste its top-left corner at Origin.
type Placement struct {
	Size   image.Point `json:"size" yaml:"size"`
	Origin image.Point `json:"origin" yaml:"origin"`
}

// ToFullResolution maps a search result found on thumbnails back to
// full-resolution pixels.
//
// During the search the after thumbnail (afterThumb) was zoomed by c.Scale,
// centered on the before thumbnail (beforeThumb) and then shifted by the
// offsets. The same geometry is scaled by beforeFull/beforeThumb per axis.
func ToFullResolution(c Candidate, beforeThumb, afterThumb, beforeFull image.Point) Placement {
	zw := correlate.ZoomedSize(afterThumb.X, c.Scale)
	zh := correlate.ZoomedSize(afterThumb.Y, c.Scale)
	ox := correlate.FitOrigin(zw, beforeThumb.X) + c.OffsetX
	oy := correlate.FitOrigin(zh, beforeThumb.Y) + c.OffsetY

	rx := ratio(beforeFull.X, beforeThumb.X)
	ry := ratio(beforeFull.Y, beforeThumb.Y)
	return Placement{
		Size:   image.Pt(int(math.Round(float64(zw)*rx)), int(math.Round(float64(zh)*ry))),
		Origin: image.Pt(int(math.Round(float64(ox)*rx)), int(math.Round(float64(oy)*ry))),
	}
}

func ratio(full, thumb int) float64 {
	if thumb == 0 {
		return 1
	}
	return float64(full) / float64(thumb)
}
