package correlate

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/stat"
)

// centerEpsilon keeps CenterNCC finite on flat windows.
const centerEpsilon = 1e-6

// NCC returns the normalized cross-correlation of two equally sized matrices.
//
// Both inputs are shifted to zero mean and scaled to unit population standard
// deviation, and the score is the mean of their elementwise product. The
// result lies in [-1, 1], where 1 means the inputs are identical up to an
// affine change of brightness.
//
// # Errors
//
//   - ErrShape if the matrices differ in size
//   - ErrEmpty if they have no samples
//   - ErrFlat if either matrix is constant
func NCC(a, b *Matrix) (float64, error) {
	if !a.SameShape(b) {
		return 0, fmt.Errorf("%w: %dx%d vs %dx%d", ErrShape, a.W, a.H, b.W, b.H)
	}
	if len(a.Data) == 0 {
		return 0, ErrEmpty
	}

	meanA, varA := stat.PopMeanVariance(a.Data, nil)
	meanB, varB := stat.PopMeanVariance(b.Data, nil)
	if varA == 0 || varB == 0 {
		return 0, ErrFlat
	}

	var sum float64
	for i, va := range a.Data {
		sum += (va - meanA) * (b.Data[i] - meanB)
	}
	return sum / (math.Sqrt(varA) * math.Sqrt(varB) * float64(len(a.Data))), nil
}

// CenterNCC scores only the central half-size window of each matrix, which
// keeps padded or shifted-in borders out of the comparison.
//
// The window spans [H/4, H/4+H/2) x [W/4, W/4+W/2). Normalization divides by
// std+1e-6 instead of std, so flat windows score 0 rather than failing.
func CenterNCC(a, b *Matrix) (float64, error) {
	if !a.SameShape(b) {
		return 0, fmt.Errorf("%w: %dx%d vs %dx%d", ErrShape, a.W, a.H, b.W, b.H)
	}

	win := CenterWindow(a.W, a.H)
	if win.Empty() {
		return 0, fmt.Errorf("%w: center window of %dx%d", ErrEmpty, a.W, a.H)
	}
	wa := a.Window(win)
	wb := b.Window(win)

	meanA, varA := stat.PopMeanVariance(wa.Data, nil)
	meanB, varB := stat.PopMeanVariance(wb.Data, nil)
	sa := math.Sqrt(varA) + centerEpsilon
	sb := math.Sqrt(varB) + centerEpsilon

	var sum float64
	for i, va := range wa.Data {
		sum += ((va - meanA) / sa) * ((wb.Data[i] - meanB) / sb)
	}
	return sum / float64(len(wa.Data)), nil
}

// CenterWindow returns the central half-size rectangle of a w x h grid.
func CenterWindow(w, h int) image.Rectangle {
	x0, y0 := w/4, h/4
	return image.Rect(x0, y0, x0+w/2, y0+h/2)
}
