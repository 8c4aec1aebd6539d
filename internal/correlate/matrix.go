// Package correlate provides the float matrix type and the zero-mean
// correlation primitives used to score candidate alignments.
//
// Matrices are row-major with (0,0) at the top-left corner, matching the
// coordinate system of the imaging package. Values are typically 8-bit luma
// (0-255) stored as float64 so that resampling does not lose precision.
package correlate

import (
	"errors"
	"fmt"
	"image"
	"math"
)

var (
	// ErrShape is returned when two matrices that must match do not.
	ErrShape = errors.New("matrix shapes differ")

	// ErrEmpty is returned for matrices (or windows) with no elements.
	ErrEmpty = errors.New("empty matrix")

	// ErrFlat is returned when a matrix has zero variance and cannot be
	// normalized.
	ErrFlat = errors.New("matrix has zero variance")
)

// Matrix is a dense row-major grid of float64 samples.
type Matrix struct {
	W    int
	H    int
	Data []float64
}

// New allocates a zeroed w x h matrix.
func New(w, h int) *Matrix {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Matrix{W: w, H: h, Data: make([]float64, w*h)}
}

// FromRows builds a matrix from a slice of equal-length rows.
func FromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 {
		return New(0, 0), nil
	}
	w := len(rows[0])
	m := New(w, len(rows))
	for y, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, y, len(row), w)
		}
		copy(m.Data[y*w:], row)
	}
	return m, nil
}

// At returns the sample at (x, y). It panics if out of range.
func (m *Matrix) At(x, y int) float64 {
	return m.Data[y*m.W+x]
}

// Set stores v at (x, y).
func (m *Matrix) Set(x, y int, v float64) {
	m.Data[y*m.W+x] = v
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	out := &Matrix{W: m.W, H: m.H, Data: make([]float64, len(m.Data))}
	copy(out.Data, m.Data)
	return out
}

// Bounds returns the matrix extent as an image rectangle.
func (m *Matrix) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.W, m.H)
}

// SameShape reports whether m and o have identical dimensions.
func (m *Matrix) SameShape(o *Matrix) bool {
	return m.W == o.W && m.H == o.H
}

// Window copies the sub-rectangle r (clipped to the matrix) into a new matrix.
func (m *Matrix) Window(r image.Rectangle) *Matrix {
	r = r.Intersect(m.Bounds())
	out := New(r.Dx(), r.Dy())
	for y := 0; y < out.H; y++ {
		src := (r.Min.Y+y)*m.W + r.Min.X
		copy(out.Data[y*out.W:(y+1)*out.W], m.Data[src:src+out.W])
	}
	return out
}

// Mean returns the arithmetic mean of all samples, or NaN when empty.
func (m *Matrix) Mean() float64 {
	if len(m.Data) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range m.Data {
		sum += v
	}
	return sum / float64(len(m.Data))
}

// Quantize rounds every sample to the nearest integer in 0..255, halves
// rounding up, as when resampled luma is stored back into 8-bit pixels.
func (m *Matrix) Quantize() {
	for i, v := range m.Data {
		switch {
		case v <= 0:
			m.Data[i] = 0
		case v >= 255:
			m.Data[i] = 255
		default:
			m.Data[i] = math.Floor(v + 0.5)
		}
	}
}

// Neutralize fills each rectangle (clipped to the matrix) with the matrix
// mean so that the covered pixels contribute nothing to a zero-mean score.
// The mean is computed once, before any rectangle is filled.
func (m *Matrix) Neutralize(rects []image.Rectangle) {
	if len(rects) == 0 || len(m.Data) == 0 {
		return
	}
	mean := m.Mean()
	for _, r := range rects {
		r = r.Intersect(m.Bounds())
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				m.Data[y*m.W+x] = mean
			}
		}
	}
}
