package search

import "math"

// Grid is the candidate space: every scale is tried against every
// (OffsetsX[i], OffsetsY[j]) pair.
type Grid struct {
	Scales   []float64
	OffsetsX []int
	OffsetsY []int
}

// Total returns the number of candidates in the grid.
func (g Grid) Total() int {
	return len(g.Scales) * len(g.OffsetsX) * len(g.OffsetsY)
}

// Empty reports whether the grid has no candidates.
func (g Grid) Empty() bool {
	return g.Total() == 0
}

// Arange returns start, start+step, ... for values strictly below stop.
// Values are computed as start+i*step and rounded to 1e-9 so repeated
// accumulation error does not leak into printed scales.
func Arange(start, stop, step float64) []float64 {
	if step <= 0 || stop <= start {
		return nil
	}
	n := int(math.Ceil((stop - start) / step))
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v := math.Round((start+float64(i)*step)*1e9) / 1e9
		if v >= stop {
			break
		}
		out = append(out, v)
	}
	return out
}

// IntRange returns start, start+step, ... for values strictly below stop.
func IntRange(start, stop, step int) []int {
	if step <= 0 {
		return nil
	}
	var out []int
	for v := start; v < stop; v += step {
		out = append(out, v)
	}
	return out
}

// ExhaustiveGrid is the dense grid: scales 0.95..1.14 in steps of 0.01 and
// offsets -30..28 in steps of 2 on both axes (18000 candidates).
func ExhaustiveGrid() Grid {
	offsets := IntRange(-30, 30, 2)
	return Grid{
		Scales:   Arange(0.95, 1.15, 0.01),
		OffsetsX: offsets,
		OffsetsY: offsets,
	}
}

// QuickGrid is the coarse grid: five scales and five offsets per axis
// (125 candidates).
func QuickGrid() Grid {
	offsets := []int{-20, -10, 0, 10, 20}
	return Grid{
		Scales:   []float64{0.95, 1.0, 1.05, 1.1, 1.15},
		OffsetsX: offsets,
		OffsetsY: offsets,
	}
}

// RefineGrid centers a finer grid on a coarse winner: scale +/-0.04 in steps
// of 0.01, and offsets spanning one coarse step either side in steps of 2.
func RefineGrid(best Candidate, coarse Grid) Grid {
	scales := make([]float64, 0, 9)
	for i := -4; i <= 4; i++ {
		s := math.Round((best.Scale+float64(i)*0.01)*1e9) / 1e9
		if s > 0 {
			scales = append(scales, s)
		}
	}
	return Grid{
		Scales:   scales,
		OffsetsX: IntRange(best.OffsetX-stepOf(coarse.OffsetsX), best.OffsetX+stepOf(coarse.OffsetsX)+1, 2),
		OffsetsY: IntRange(best.OffsetY-stepOf(coarse.OffsetsY), best.OffsetY+stepOf(coarse.OffsetsY)+1, 2),
	}
}

// stepOf returns the spacing of an evenly spaced offset list, or 2.
func stepOf(offsets []int) int {
	if len(offsets) < 2 {
		return 2
	}
	step := offsets[1] - offsets[0]
	if step < 0 {
		step = -step
	}
	if step == 0 {
		return 2
	}
	return step
}
