package features

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	"github.com/ironsheep/slider-align/internal/homography"
)

// grayMat converts img to an 8-bit single channel Mat.
func grayMat(img image.Image) (gocv.Mat, error) {
	g := imaging.Grayscale(img)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	buf := make([]byte, w*h)
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride:]
		for x := 0; x < w; x++ {
			buf[y*w+x] = row[x*4]
		}
	}
	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, buf)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to convert image to Mat: %w", err)
	}
	return mat, nil
}

// WarpPerspective maps img through h into a w x h-pixel frame with bilinear
// interpolation. Destination pixels with no source are opaque black.
func WarpPerspective(img image.Image, m homography.Matrix, width, height int) (*image.NRGBA, error) {
	src := imaging.Clone(img)
	b := src.Bounds()
	srcMat, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, src.Pix)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image to Mat: %w", err)
	}
	defer srcMat.Close()

	hMat := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	defer hMat.Close()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			hMat.SetDoubleAt(r, c, m[r*3+c])
		}
	}

	dst := gocv.NewMat()
	defer dst.Close()
	// Scalar order follows the Mat's channel order; only the fourth
	// channel (alpha here) is set.
	gocv.WarpPerspectiveWithParams(srcMat, &dst, hMat, image.Pt(width, height),
		gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{R: 0, G: 0, B: 0, A: 255})

	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	copy(out.Pix, dst.ToBytes())
	return out, nil
}
