package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/otiai10/gosseract/v2"
)

// DefaultLanguage is the Tesseract language used for masking.
const DefaultLanguage = "eng"

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1" yaml:"x1"` // Left edge
	Y1 int `json:"y1" yaml:"y1"` // Top edge
	X2 int `json:"x2" yaml:"x2"` // Right edge
	Y2 int `json:"y2" yaml:"y2"` // Bottom edge
}

// Rect converts b to an image.Rectangle.
func (b Bounds) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// TextRegion represents a word with its location and OCR confidence.
type TextRegion struct {
	// Text is the recognized text content.
	Text string `json:"text" yaml:"text"`

	// Confidence is the OCR confidence score (0.0 to 1.0).
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Bounds is the bounding box around this text in the image.
	Bounds Bounds `json:"bounds" yaml:"bounds"`
}

// Detector finds text regions in an image. DetectTextBoxes is the
// Tesseract-backed implementation.
type Detector func(img image.Image, minConfidence float64) ([]TextRegion, error)

// DetectTextBoxes runs word-level OCR on img and returns the words whose
// confidence is at least minConfidence (0.0 to 1.0).
//
// The image is handed to Tesseract in memory as PNG; nothing is written to
// disk. Empty words are dropped.
func DetectTextBoxes(img image.Image, minConfidence float64) ([]TextRegion, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image for OCR: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(DefaultLanguage); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get text regions: %w", err)
	}

	regions := make([]TextRegion, 0, len(boxes))
	for _, box := range boxes {
		regions = append(regions, TextRegion{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Bounds: Bounds{
				X1: box.Box.Min.X,
				Y1: box.Box.Min.Y,
				X2: box.Box.Max.X,
				Y2: box.Box.Max.Y,
			},
		})
	}
	return filterRegions(regions, minConfidence), nil
}

// filterRegions drops empty words, low-confidence words and degenerate boxes.
func filterRegions(regions []TextRegion, minConfidence float64) []TextRegion {
	out := make([]TextRegion, 0, len(regions))
	for _, r := range regions {
		if r.Text == "" || r.Confidence < minConfidence {
			continue
		}
		if r.Bounds.Rect().Empty() {
			continue
		}
		out = append(out, r)
	}
	return out
}

// ScaleRegions maps boxes found on one resolution onto another by
// multiplying coordinates by sx and sy. Boxes grow outward (floor the
// minimum, ceil the maximum) and pad pixels are added on every side so the
// mask fully covers anti-aliased glyph edges.
func ScaleRegions(regions []TextRegion, sx, sy float64, pad int) []TextRegion {
	out := make([]TextRegion, len(regions))
	for i, r := range regions {
		out[i] = r
		out[i].Bounds = Bounds{
			X1: int(math.Floor(float64(r.Bounds.X1)*sx)) - pad,
			Y1: int(math.Floor(float64(r.Bounds.Y1)*sy)) - pad,
			X2: int(math.Ceil(float64(r.Bounds.X2)*sx)) + pad,
			Y2: int(math.Ceil(float64(r.Bounds.Y2)*sy)) + pad,
		}
	}
	return out
}

// Rects returns the bounding rectangles of regions.
func Rects(regions []TextRegion) []image.Rectangle {
	rects := make([]image.Rectangle, len(regions))
	for i, r := range regions {
		rects[i] = r.Bounds.Rect()
	}
	return rects
}

// Version reports the Tesseract library version.
func Version() string {
	return gosseract.Version()
}
