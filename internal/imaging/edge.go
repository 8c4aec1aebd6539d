package imaging

import (
	"math"

	"github.com/ironsheep/slider-align/internal/correlate"
)

// Gradient returns the Sobel gradient magnitude of a gray matrix after 5x5
// Gaussian smoothing.
//
// Correlating gradient maps instead of raw luma makes the score depend on
// edges (fence lines, paving, borders) rather than on overall brightness,
// which changes between a before and an after photo taken at different
// times of day.
//
// # Algorithm
//
//  1. Gaussian blur: 5x5 kernel to reduce noise
//
//  2. Gradient computation: Sobel operators for X and Y gradients,
//     magnitude = sqrt(Gx² + Gy²)
//
// Border pixels use clamped (replicated) edge values in both stages.
func Gradient(m *correlate.Matrix) *correlate.Matrix {
	width, height := m.W, m.H
	blurred := gaussianBlur(m)
	out := correlate.New(width, height)

	sobelX := [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY := [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					v := blurred.At(clamp(x+kx, 0, width-1), clamp(y+ky, 0, height-1))
					gx += v * sobelX[ky+1][kx+1]
					gy += v * sobelY[ky+1][kx+1]
				}
			}
			out.Set(x, y, math.Sqrt(gx*gx+gy*gy))
		}
	}
	return out
}

// gaussianBlur applies a 5x5 Gaussian blur.
//
// Uses a standard 5x5 Gaussian kernel with sigma ≈ 1.4:
//
//	1  4  7  4  1
//	4 16 26 16  4
//	7 26 41 26  7
//	4 16 26 16  4
//	1  4  7  4  1
//
// Total kernel sum = 273, used for normalization.
func gaussianBlur(m *correlate.Matrix) *correlate.Matrix {
	kernel := [5][5]float64{
		{1, 4, 7, 4, 1},
		{4, 16, 26, 16, 4},
		{7, 26, 41, 26, 7},
		{4, 16, 26, 16, 4},
		{1, 4, 7, 4, 1},
	}
	const kernelSum = 273.0

	width, height := m.W, m.H
	result := correlate.New(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum float64
			for ky := -2; ky <= 2; ky++ {
				for kx := -2; kx <= 2; kx++ {
					sum += m.At(clamp(x+kx, 0, width-1), clamp(y+ky, 0, height-1)) * kernel[ky+2][kx+2]
				}
			}
			result.Set(x, y, sum/kernelSum)
		}
	}
	return result
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
