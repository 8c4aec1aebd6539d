package features

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// scene draws seeded random rectangles, a corner-rich texture for keypoint
// detectors.
func scene(w, h int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := imaging.New(w, h, color.NRGBA{90, 110, 70, 255})
	for i := 0; i < 120; i++ {
		x, y := rng.Intn(w), rng.Intn(h)
		r := image.Rect(x, y, x+8+rng.Intn(40), y+8+rng.Intn(40))
		c := color.NRGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255}
		draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
	}
	return img
}

func TestParseDetector(t *testing.T) {
	for in, want := range map[string]Detector{"": DetectorSIFT, "sift": DetectorSIFT, "orb": DetectorORB, "auto": DetectorAuto} {
		got, err := ParseDetector(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseDetector("surf")
	assert.Error(t, err)
}

func TestRatioTest(t *testing.T) {
	knn := [][]gocv.DMatch{
		{{QueryIdx: 0, TrainIdx: 3, Distance: 10}, {QueryIdx: 0, TrainIdx: 4, Distance: 100}},
		{{QueryIdx: 1, TrainIdx: 5, Distance: 70}, {QueryIdx: 1, TrainIdx: 6, Distance: 100}},
		{{QueryIdx: 2, TrainIdx: 7, Distance: 69}, {QueryIdx: 2, TrainIdx: 8, Distance: 100}},
		{{QueryIdx: 3, TrainIdx: 9, Distance: 1}},
		nil,
	}

	good := ratioTest(knn, 0.7)
	require.Len(t, good, 2)
	assert.Equal(t, 3, good[0].TrainIdx)
	assert.Equal(t, 7, good[1].TrainIdx)
}

func TestBestMatches(t *testing.T) {
	var in []gocv.DMatch
	for i := 0; i < 30; i++ {
		in = append(in, gocv.DMatch{QueryIdx: i, Distance: float64(30 - i)})
	}

	out := bestMatches(in, 20)
	require.Len(t, out, 20)
	assert.Equal(t, 29, out[0].QueryIdx)
	assert.Equal(t, 10, out[19].QueryIdx)
	assert.Equal(t, 0, in[0].QueryIdx, "input must not be reordered")

	assert.Len(t, bestMatches(in[:3], 20), 3)
}

func TestMatchedPoints(t *testing.T) {
	query := []gocv.KeyPoint{{X: 1, Y: 2}, {X: 3, Y: 4}}
	train := []gocv.KeyPoint{{X: 10, Y: 20}}
	matches := []gocv.DMatch{
		{QueryIdx: 1, TrainIdx: 0},
		{QueryIdx: 5, TrainIdx: 0},
	}

	q, tr := matchedPoints(matches, query, train)
	require.Len(t, q, 1)
	assert.Equal(t, 3.0, q[0].X)
	assert.Equal(t, 20.0, tr[0].Y)
}

func TestAlign_RecoversTranslation(t *testing.T) {
	before := scene(320, 240, 5)
	// after shows the same scene moved 12px right and 8px up.
	after := imaging.Paste(imaging.New(320, 240, color.NRGBA{0, 0, 0, 255}), before, image.Pt(12, -8))

	for _, det := range []Detector{DetectorSIFT, DetectorORB} {
		t.Run(string(det), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Detector = det

			res, err := Align(before, after, opts)
			require.NoError(t, err)
			assert.Equal(t, det, res.Detector)
			assert.GreaterOrEqual(t, res.GoodMatches, 4)
			assert.GreaterOrEqual(t, res.Inliers, 4)
			assert.InDelta(t, 1.0, res.Approx.Scale, 0.02)
			assert.InDelta(t, -12.0, res.Approx.TranslateX, 1.5)
			assert.InDelta(t, 8.0, res.Approx.TranslateY, 1.5)

			require.NotNil(t, res.Aligned)
			assert.Equal(t, before.Bounds(), res.Aligned.Bounds())
		})
	}
}

func TestAlign_FlatImagesHaveNoFeatures(t *testing.T) {
	flat := imaging.New(100, 80, color.NRGBA{128, 128, 128, 255})

	res, err := Align(flat, flat, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotEnoughFeatures))
	assert.Equal(t, 0, res.KeypointsBefore)
}

func TestAlign_AutoFallsBackToORB(t *testing.T) {
	flat := imaging.New(100, 80, color.NRGBA{128, 128, 128, 255})
	opts := DefaultOptions()
	opts.Detector = DetectorAuto

	res, err := Align(flat, flat, opts)
	assert.ErrorIs(t, err, ErrNotEnoughFeatures)
	assert.Equal(t, DetectorORB, res.Detector)
}

func TestWarpPerspective_Identity(t *testing.T) {
	img := scene(64, 48, 1)

	out, err := WarpPerspective(img, [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, 64, 48)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, out.Pix)
}

func TestWarpPerspective_TranslationFillsBlack(t *testing.T) {
	img := imaging.New(20, 20, color.NRGBA{255, 255, 255, 255})

	out, err := WarpPerspective(img, [9]float64{1, 0, 10, 0, 1, 0, 0, 0, 1}, 20, 20)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, out.NRGBAAt(2, 10))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, out.NRGBAAt(15, 10))
}
