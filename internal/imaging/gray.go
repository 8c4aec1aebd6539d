package imaging

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/slider-align/internal/correlate"
)

// GrayMatrix converts img to 8-bit luma (0.299R + 0.587G + 0.114B, rounded)
// and returns it as a float matrix with values in 0..255. Alpha is ignored.
func GrayMatrix(img image.Image) *correlate.Matrix {
	g := imaging.Grayscale(img)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	m := correlate.New(w, h)
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w*4]
		for x := 0; x < w; x++ {
			m.Data[y*w+x] = float64(row[x*4])
		}
	}
	return m
}

// MatrixImage renders m as an 8-bit gray image, clamping values to 0..255.
func MatrixImage(m *correlate.Matrix) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.W, m.H))
	for i, v := range m.Data {
		switch {
		case v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		img.Pix[i] = uint8(v + 0.5)
	}
	return img
}
