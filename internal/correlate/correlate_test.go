package correlate

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ramp builds a w x h matrix whose value is x + 3y, which is never flat.
func ramp(w, h int) *Matrix {
	m := New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.Set(x, y, float64(x+3*y))
		}
	}
	return m
}

func checker(w, h, cell int) *Matrix {
	m := New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				m.Set(x, y, 200)
			} else {
				m.Set(x, y, 40)
			}
		}
	}
	return m
}

func TestNCC_Identical(t *testing.T) {
	m := checker(40, 30, 5)
	score, err := NCC(m, m.Clone())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-12)
}

func TestNCC_AffineBrightnessInvariant(t *testing.T) {
	a := ramp(20, 10)
	b := a.Clone()
	for i := range b.Data {
		b.Data[i] = 2.5*b.Data[i] + 17
	}
	score, err := NCC(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-12)
}

func TestNCC_Inverted(t *testing.T) {
	a := checker(16, 16, 4)
	b := a.Clone()
	for i := range b.Data {
		b.Data[i] = 255 - b.Data[i]
	}
	score, err := NCC(a, b)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, score, 1e-12)
}

func TestNCC_Errors(t *testing.T) {
	_, err := NCC(New(3, 3), New(4, 3))
	assert.ErrorIs(t, err, ErrShape)

	_, err = NCC(New(0, 0), New(0, 0))
	assert.ErrorIs(t, err, ErrEmpty)

	flat := New(5, 5)
	_, err = NCC(flat, ramp(5, 5))
	assert.ErrorIs(t, err, ErrFlat)
}

func TestCenterNCC_IgnoresBorder(t *testing.T) {
	a := checker(40, 40, 4)
	b := a.Clone()
	// Scribble over the outer ring only; the center window is [10,30).
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			if x < 10 || x >= 30 || y < 10 || y >= 30 {
				b.Set(x, y, float64((x*7+y*13)%255))
			}
		}
	}
	score, err := CenterNCC(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-6)
}

func TestCenterNCC_FlatIsZero(t *testing.T) {
	score, err := CenterNCC(New(8, 8), ramp(8, 8))
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestCenterNCC_TooSmall(t *testing.T) {
	_, err := CenterNCC(New(1, 1), New(1, 1))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestCenterWindow(t *testing.T) {
	assert.Equal(t, image.Rect(100, 75, 300, 225), CenterWindow(400, 300))
	assert.Equal(t, image.Rect(1, 1, 3, 3), CenterWindow(5, 5))
}

func TestZoomedSize_RoundsHalfToEven(t *testing.T) {
	tests := []struct {
		n      int
		factor float64
		want   int
	}{
		{400, 1.0, 400},
		{400, 1.05, 420},
		{4, 0.625, 2},  // 2.5 rounds to even
		{12, 0.625, 8}, // 7.5 rounds to even
		{300, 0.95, 285},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ZoomedSize(tt.n, tt.factor), "n=%d factor=%v", tt.n, tt.factor)
	}
}

func TestZoom_Identity(t *testing.T) {
	m := ramp(7, 5)
	z := Zoom(m, 1.0)
	require.True(t, z.SameShape(m))
	for i := range m.Data {
		assert.InDelta(t, m.Data[i], z.Data[i], 1e-9)
	}
}

func TestZoom_LinearRampStaysLinear(t *testing.T) {
	// A 1-D ramp 0..10 upsampled to 21 samples interpolates to 0, 0.5, ..., 10.
	m := New(11, 1)
	for x := 0; x < 11; x++ {
		m.Set(x, 0, float64(x))
	}
	z := Zoom(m, 21.0/11.0)
	require.Equal(t, 21, z.W)
	require.Equal(t, 2, z.H)
	for x := 0; x < 21; x++ {
		assert.InDelta(t, float64(x)*0.5, z.At(x, 0), 1e-9)
	}
}

func TestZoom_CornersPreserved(t *testing.T) {
	m := ramp(9, 6)
	z := Zoom(m, 1.7)
	assert.InDelta(t, m.At(0, 0), z.At(0, 0), 1e-9)
	assert.InDelta(t, m.At(m.W-1, m.H-1), z.At(z.W-1, z.H-1), 1e-9)
}

func TestFitOrigin(t *testing.T) {
	assert.Equal(t, -5, FitOrigin(110, 100))
	assert.Equal(t, -5, FitOrigin(111, 100))
	assert.Equal(t, 5, FitOrigin(90, 100))
	assert.Equal(t, 4, FitOrigin(91, 100))
	assert.Equal(t, 0, FitOrigin(100, 100))
}

func TestFitCenter_Crop(t *testing.T) {
	m := ramp(10, 8)
	out := FitCenter(m, 6, 4)
	require.Equal(t, 6, out.W)
	require.Equal(t, 4, out.H)
	// Crop starts at (2, 2).
	assert.Equal(t, m.At(2, 2), out.At(0, 0))
	assert.Equal(t, m.At(7, 5), out.At(5, 3))
}

func TestFitCenter_PadReplicatesEdges(t *testing.T) {
	m := ramp(3, 3)
	out := FitCenter(m, 6, 5)
	// Horizontal pad: 1 before, 2 after. Vertical pad: 1 before, 1 after.
	assert.Equal(t, m.At(0, 0), out.At(0, 0))
	assert.Equal(t, m.At(0, 0), out.At(1, 1))
	assert.Equal(t, m.At(2, 2), out.At(5, 4))
	assert.Equal(t, m.At(2, 2), out.At(4, 3))
}

func TestShift(t *testing.T) {
	m := ramp(5, 4)

	t.Run("constant", func(t *testing.T) {
		out := Shift(m, 2, 1, ModeConstant)
		assert.Equal(t, 0.0, out.At(0, 0))
		assert.Equal(t, 0.0, out.At(1, 3))
		assert.Equal(t, m.At(0, 0), out.At(2, 1))
		assert.Equal(t, m.At(2, 2), out.At(4, 3))
	})

	t.Run("nearest", func(t *testing.T) {
		out := Shift(m, -2, 0, ModeNearest)
		assert.Equal(t, m.At(2, 0), out.At(0, 0))
		assert.Equal(t, m.At(4, 1), out.At(2, 1))
		assert.Equal(t, m.At(4, 1), out.At(4, 1))
	})

	t.Run("zero shift is a copy", func(t *testing.T) {
		out := Shift(m, 0, 0, ModeConstant)
		assert.Equal(t, m.Data, out.Data)
	})
}

func TestNeutralize(t *testing.T) {
	m := ramp(4, 4)
	mean := m.Mean()
	m.Neutralize([]image.Rectangle{image.Rect(-5, -5, 2, 1), image.Rect(3, 3, 10, 10)})

	assert.Equal(t, mean, m.At(0, 0))
	assert.Equal(t, mean, m.At(1, 0))
	assert.Equal(t, mean, m.At(3, 3))
	assert.Equal(t, 3.0, m.At(0, 1))
}

func TestQuantize(t *testing.T) {
	m, err := FromRows([][]float64{{-3, 0.49, 0.5}, {127.5, 254.6, 300}})
	require.NoError(t, err)
	m.Quantize()
	assert.Equal(t, []float64{0, 0, 1, 128, 255, 255}, m.Data)
}

func TestWindowClipsToBounds(t *testing.T) {
	m := ramp(4, 4)
	w := m.Window(image.Rect(2, 2, 9, 9))
	assert.Equal(t, 2, w.W)
	assert.Equal(t, 2, w.H)
	assert.Equal(t, m.At(3, 3), w.At(1, 1))
}

func TestFromRows(t *testing.T) {
	m, err := FromRows([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, 4.0, m.At(1, 1))

	_, err = FromRows([][]float64{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrShape)
}

func TestMeanEmpty(t *testing.T) {
	assert.True(t, math.IsNaN(New(0, 0).Mean()))
}
