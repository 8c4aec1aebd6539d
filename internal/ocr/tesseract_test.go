package ocr

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// drawText draws text on an image using basicfont
func drawText(img *image.RGBA, x, y int, text string, col color.Color) {
	point := fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  point,
	}
	d.DrawString(text)
}

// createImageWithText renders text in the bottom-right corner of a mid-gray
// photo-sized canvas, the way cameras burn in a date stamp. The glyphs are
// scaled up by drawing each pixel as a scale x scale block.
func createImageWithText(text string, scale int) *image.RGBA {
	smallW := len(text)*7 + 40
	smallH := 40
	small := image.NewRGBA(image.Rect(0, 0, smallW, smallH))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)
	drawText(small, 20, 25, text, color.Black)

	width, height := 640, 480
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{128}), image.Point{}, draw.Src)

	ox := width - smallW*scale - 10
	oy := height - smallH*scale - 10
	for y := 0; y < smallH; y++ {
		for x := 0; x < smallW; x++ {
			c := small.At(x, y)
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.Set(ox+x*scale+dx, oy+y*scale+dy, c)
				}
			}
		}
	}
	return img
}

// skipIfNoTesseract skips when the engine or its language data is missing
// or refuses the page; OCR results depend on the local installation.
func skipIfNoTesseract(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		return
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "tesseract") || strings.Contains(msg, "library") || strings.Contains(msg, "language") {
		t.Skip("Tesseract not available")
	}
	t.Skipf("OCR unavailable: %v", err)
}

func TestDetectTextBoxes_DateStamp(t *testing.T) {
	img := createImageWithText("2024 06 15", 3)

	regions, err := DetectTextBoxes(img, 0.3)
	skipIfNoTesseract(t, err)
	if len(regions) == 0 {
		t.Skip("no words recognized; Tesseract data may differ")
	}

	// Every box must lie in the stamp area in the bottom-right quadrant
	for _, r := range regions {
		if r.Bounds.X1 < 320 || r.Bounds.Y1 < 240 {
			t.Errorf("region %q at %+v outside the stamp area", r.Text, r.Bounds)
		}
		if r.Confidence < 0.3 {
			t.Errorf("region %q confidence %.2f below threshold", r.Text, r.Confidence)
		}
	}
}

func TestDetectTextBoxes_BlankImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	regions, err := DetectTextBoxes(img, 0.5)
	skipIfNoTesseract(t, err)
	if len(regions) != 0 {
		t.Errorf("blank image: got %d regions, want 0", len(regions))
	}
}

func TestFilterRegions(t *testing.T) {
	in := []TextRegion{
		{Text: "keep", Confidence: 0.9, Bounds: Bounds{0, 0, 10, 10}},
		{Text: "", Confidence: 0.9, Bounds: Bounds{0, 0, 10, 10}},
		{Text: "faint", Confidence: 0.2, Bounds: Bounds{0, 0, 10, 10}},
		{Text: "flat", Confidence: 0.9, Bounds: Bounds{5, 5, 5, 20}},
		{Text: "edge", Confidence: 0.5, Bounds: Bounds{1, 1, 2, 2}},
	}

	got := filterRegions(in, 0.5)
	if len(got) != 2 {
		t.Fatalf("got %d regions, want 2: %+v", len(got), got)
	}
	if got[0].Text != "keep" || got[1].Text != "edge" {
		t.Errorf("unexpected survivors: %q, %q", got[0].Text, got[1].Text)
	}
}

func TestScaleRegions(t *testing.T) {
	in := []TextRegion{{Text: "2024", Confidence: 0.8, Bounds: Bounds{10, 20, 31, 41}}}

	got := ScaleRegions(in, 0.5, 0.25, 2)
	want := Bounds{X1: 3, Y1: 3, X2: 18, Y2: 13}
	if got[0].Bounds != want {
		t.Errorf("Bounds: got %+v, want %+v", got[0].Bounds, want)
	}
	if got[0].Text != "2024" || got[0].Confidence != 0.8 {
		t.Error("ScaleRegions should keep text and confidence")
	}
	if in[0].Bounds.X1 != 10 {
		t.Error("ScaleRegions modified its input")
	}
}

func TestRects(t *testing.T) {
	rects := Rects([]TextRegion{{Bounds: Bounds{1, 2, 3, 4}}})
	if len(rects) != 1 || rects[0] != image.Rect(1, 2, 3, 4) {
		t.Errorf("Rects: got %v", rects)
	}
}
