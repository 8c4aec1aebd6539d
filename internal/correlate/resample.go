package correlate

import "math"

// ShiftMode selects how Shift fills pixels that enter from outside the grid.
type ShiftMode int

const (
	// ModeConstant fills uncovered pixels with zero.
	ModeConstant ShiftMode = iota
	// ModeNearest replicates the nearest edge pixel.
	ModeNearest
)

// String implements fmt.Stringer.
func (m ShiftMode) String() string {
	switch m {
	case ModeConstant:
		return "constant"
	case ModeNearest:
		return "nearest"
	default:
		return "unknown"
	}
}

// ZoomedSize returns the output length for resampling n samples by factor.
// Halves round to even.
func ZoomedSize(n int, factor float64) int {
	return int(math.RoundToEven(float64(n) * factor))
}

// Zoom resamples m by factor using first-order (bilinear) interpolation.
//
// The output is ZoomedSize(H) rows by ZoomedSize(W) columns. Output corner
// samples map exactly onto input corner samples, so no new border is
// introduced: output index i reads input coordinate i*(in-1)/(out-1).
func Zoom(m *Matrix, factor float64) *Matrix {
	ow := ZoomedSize(m.W, factor)
	oh := ZoomedSize(m.H, factor)
	out := New(ow, oh)
	if ow == 0 || oh == 0 || m.W == 0 || m.H == 0 {
		return out
	}

	xs := axisCoords(m.W, ow)
	ys := axisCoords(m.H, oh)

	for oy, fy := range ys {
		y0 := int(math.Floor(fy))
		y1 := min(y0+1, m.H-1)
		ty := fy - float64(y0)
		for ox, fx := range xs {
			x0 := int(math.Floor(fx))
			x1 := min(x0+1, m.W-1)
			tx := fx - float64(x0)

			top := m.Data[y0*m.W+x0]*(1-tx) + m.Data[y0*m.W+x1]*tx
			bot := m.Data[y1*m.W+x0]*(1-tx) + m.Data[y1*m.W+x1]*tx
			out.Data[oy*ow+ox] = top*(1-ty) + bot*ty
		}
	}
	return out
}

// axisCoords maps each output index to its input coordinate.
func axisCoords(in, out int) []float64 {
	coords := make([]float64, out)
	if out == 1 || in == 1 {
		return coords
	}
	step := float64(in-1) / float64(out-1)
	for i := range coords {
		c := float64(i) * step
		if c > float64(in-1) {
			c = float64(in - 1)
		}
		coords[i] = c
	}
	return coords
}

// FitOrigin returns where a span of length size lands when centered on a
// span of length target: the negative crop start when size > target, or the
// leading pad when size < target.
func FitOrigin(size, target int) int {
	if size > target {
		return -((size - target) / 2)
	}
	return (target - size) / 2
}

// FitCenter crops or pads m to exactly w x h while keeping it centered.
//
// Each axis is handled independently. An axis longer than the target is
// center-cropped (the odd pixel is dropped from the end). A shorter axis is
// padded by replicating edge samples: (target-size)/2 before and the
// remainder after.
func FitCenter(m *Matrix, w, h int) *Matrix {
	out := New(w, h)
	if m.W == 0 || m.H == 0 {
		return out
	}
	ox := FitOrigin(m.W, w)
	oy := FitOrigin(m.H, h)
	for y := 0; y < h; y++ {
		sy := clamp(y-oy, 0, m.H-1)
		for x := 0; x < w; x++ {
			sx := clamp(x-ox, 0, m.W-1)
			out.Data[y*w+x] = m.Data[sy*m.W+sx]
		}
	}
	return out
}

// Shift translates m by whole pixels: out(x, y) = m(x-dx, y-dy).
// Pixels shifted in from outside are filled according to mode.
func Shift(m *Matrix, dx, dy int, mode ShiftMode) *Matrix {
	out := New(m.W, m.H)
	if m.W == 0 || m.H == 0 {
		return out
	}
	for y := 0; y < m.H; y++ {
		sy := y - dy
		for x := 0; x < m.W; x++ {
			sx := x - dx
			if sx >= 0 && sx < m.W && sy >= 0 && sy < m.H {
				out.Data[y*m.W+x] = m.Data[sy*m.W+sx]
				continue
			}
			if mode == ModeNearest {
				out.Data[y*m.W+x] = m.Data[clamp(sy, 0, m.H-1)*m.W+clamp(sx, 0, m.W-1)]
			}
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
