package search

import (
	"context"
	"errors"
	"image"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ironsheep/slider-align/internal/correlate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// noise returns a seeded random texture, which has a single sharp
// correlation peak under translation.
func noise(w, h int, seed int64) *correlate.Matrix {
	rng := rand.New(rand.NewSource(seed))
	m := correlate.New(w, h)
	for i := range m.Data {
		m.Data[i] = float64(rng.Intn(256))
	}
	return m
}

// blobs returns a smooth texture of Gaussian bumps; its correlation falls
// off gradually with translation, so a coarse grid points at the peak.
func blobs(w, h int) *correlate.Matrix {
	centers := [][2]float64{{15, 12}, {40, 30}, {62, 20}, {28, 45}, {55, 50}, {70, 8}}
	m := correlate.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var v float64
			for i, c := range centers {
				dx, dy := float64(x)-c[0], float64(y)-c[1]
				v += float64(60+20*i) * math.Exp(-(dx*dx+dy*dy)/(2*8*8))
			}
			m.Set(x, y, v)
		}
	}
	return m
}

func TestExhaustiveGrid(t *testing.T) {
	g := ExhaustiveGrid()
	require.Len(t, g.Scales, 20)
	assert.Equal(t, 0.95, g.Scales[0])
	assert.Equal(t, 1.14, g.Scales[19])
	require.Len(t, g.OffsetsX, 30)
	assert.Equal(t, -30, g.OffsetsX[0])
	assert.Equal(t, 28, g.OffsetsX[29])
	assert.Equal(t, 18000, g.Total())
}

func TestQuickGrid(t *testing.T) {
	g := QuickGrid()
	assert.Equal(t, 125, g.Total())
	assert.Equal(t, []int{-20, -10, 0, 10, 20}, g.OffsetsY)
}

func TestRefineGrid(t *testing.T) {
	g := RefineGrid(Candidate{Scale: 1.05, OffsetX: 10, OffsetY: -20}, QuickGrid())
	require.Len(t, g.Scales, 9)
	assert.Equal(t, 1.01, g.Scales[0])
	assert.Equal(t, 1.09, g.Scales[8])
	assert.Equal(t, 0, g.OffsetsX[0])
	assert.Equal(t, 20, g.OffsetsX[len(g.OffsetsX)-1])
	assert.Contains(t, g.OffsetsY, -20)
	assert.Equal(t, -30, g.OffsetsY[0])
}

func TestArange(t *testing.T) {
	assert.Equal(t, []float64{0.0, 0.5, 1.0, 1.5}, Arange(0, 2, 0.5))
	assert.Nil(t, Arange(1, 1, 0.1))
	assert.Nil(t, Arange(0, 1, 0))
}

func TestSearch_RecoversTranslation(t *testing.T) {
	before := noise(80, 60, 7)
	// after content sits 4px left and 6px lower than before, so shifting it
	// by (+4, -6) restores before.
	after := correlate.Shift(before, -4, 6, correlate.ModeNearest)

	opts := QuickOptions()
	opts.Grid = Grid{
		Scales:   []float64{0.95, 1.0, 1.05},
		OffsetsX: IntRange(-8, 9, 2),
		OffsetsY: IntRange(-8, 9, 2),
	}

	res, err := Search(context.Background(), before, after, opts)
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, 1.0, res.Scale)
	assert.Equal(t, 4, res.OffsetX)
	assert.Equal(t, -6, res.OffsetY)
	assert.InDelta(t, 1.0, res.Correlation, 1e-6)
	assert.Equal(t, opts.Grid.Total(), res.Total)
	assert.Equal(t, res.Total, res.Evaluated+res.Skipped)
}

func TestSearch_FullFrameNCC(t *testing.T) {
	before := noise(60, 40, 3)
	after := correlate.Shift(before, 2, -2, correlate.ModeNearest)

	opts := ExhaustiveOptions()
	opts.Grid = Grid{
		Scales:   []float64{1.0},
		OffsetsX: IntRange(-4, 5, 2),
		OffsetsY: IntRange(-4, 5, 2),
	}
	res, err := Search(context.Background(), before, after, opts)
	require.NoError(t, err)
	assert.Equal(t, -2, res.OffsetX)
	assert.Equal(t, 2, res.OffsetY)
	assert.Greater(t, res.Correlation, 0.8)
}

func TestSearch_DeterministicAcrossWorkers(t *testing.T) {
	before := noise(50, 40, 11)
	after := noise(50, 40, 12)

	opts := QuickOptions()
	opts.Workers = 1
	one, err := Search(context.Background(), before, after, opts)
	require.NoError(t, err)

	opts.Workers = 8
	many, err := Search(context.Background(), before, after, opts)
	require.NoError(t, err)

	assert.Equal(t, one, many)
}

func TestSearch_TiesKeepFirstCandidate(t *testing.T) {
	constant := func(a, b *correlate.Matrix) (float64, error) { return 0.5, nil }
	opts := Options{
		Grid:   QuickGrid(),
		Scorer: constant,
	}
	res, err := Search(context.Background(), noise(20, 20, 1), noise(20, 20, 2), opts)
	require.NoError(t, err)
	assert.Equal(t, Candidate{Scale: 0.95, OffsetX: -20, OffsetY: -20, Correlation: 0.5}, res.Candidate)
}

func TestSearch_AllCandidatesFail(t *testing.T) {
	failing := func(a, b *correlate.Matrix) (float64, error) { return 0, correlate.ErrFlat }
	opts := Options{Grid: QuickGrid(), Scorer: failing}

	res, err := Search(context.Background(), noise(20, 20, 1), noise(20, 20, 2), opts)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, 1.0, res.Scale)
	assert.Equal(t, 0, res.OffsetX)
	assert.Equal(t, 0.0, res.Correlation)
	assert.Equal(t, 125, res.Skipped)
	assert.Equal(t, 0, res.Evaluated)
}

func TestSearch_MinusOneNeverWins(t *testing.T) {
	inverted := func(a, b *correlate.Matrix) (float64, error) { return -1, nil }
	res, err := Search(context.Background(), noise(10, 10, 1), noise(10, 10, 1), Options{Grid: QuickGrid(), Scorer: inverted})
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, 125, res.Evaluated)
}

func TestSearch_SizeGuardSkipsScales(t *testing.T) {
	var calls atomic.Int64
	counting := func(a, b *correlate.Matrix) (float64, error) {
		calls.Add(1)
		return 0.1, nil
	}
	opts := Options{
		Grid:      Grid{Scales: []float64{0.5, 1.0, 1.5}, OffsetsX: []int{0}, OffsetsY: []int{0, 1}},
		Scorer:    counting,
		SizeGuard: true,
	}
	res, err := Search(context.Background(), noise(40, 40, 1), noise(40, 40, 2), opts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
	assert.Equal(t, 4, res.Skipped)
	assert.Equal(t, 1.0, res.Scale)
}

func TestSearch_Progress(t *testing.T) {
	var reports atomic.Int64
	opts := QuickOptions()
	opts.ProgressEvery = 25
	opts.OnProgress = func(done, total int) {
		reports.Add(1)
		assert.Equal(t, 125, total)
	}
	_, err := Search(context.Background(), noise(30, 30, 1), noise(30, 30, 2), opts)
	require.NoError(t, err)
	assert.Equal(t, int64(5), reports.Load())
}

func TestSearch_ImprovementsAreIncreasing(t *testing.T) {
	var seen []Candidate
	opts := QuickOptions()
	opts.OnImprove = func(c Candidate) { seen = append(seen, c) }

	before := noise(40, 40, 5)
	res, err := Search(context.Background(), before, correlate.Shift(before, 10, 0, correlate.ModeNearest), opts)
	require.NoError(t, err)
	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i].Correlation, seen[i-1].Correlation)
	}
	assert.Equal(t, res.Candidate, seen[len(seen)-1])
}

func TestSearch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Search(ctx, noise(20, 20, 1), noise(20, 20, 2), QuickOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSearch_QuantizesZoomedLuma(t *testing.T) {
	for _, quantize := range []bool{true, false} {
		var fractional atomic.Bool
		inspect := func(a, b *correlate.Matrix) (float64, error) {
			for _, v := range b.Data {
				if v != math.Floor(v) {
					fractional.Store(true)
				}
			}
			return 0.5, nil
		}
		opts := Options{
			Grid:     Grid{Scales: []float64{1.07}, OffsetsX: []int{0}, OffsetsY: []int{0}},
			Scorer:   inspect,
			Quantize: quantize,
		}
		_, err := Search(context.Background(), noise(30, 30, 1), noise(30, 30, 2), opts)
		require.NoError(t, err)
		assert.Equal(t, !quantize, fractional.Load(), "quantize=%v", quantize)
	}
}

func TestSearch_EmptyGrid(t *testing.T) {
	_, err := Search(context.Background(), noise(5, 5, 1), noise(5, 5, 1), Options{})
	assert.ErrorIs(t, err, ErrEmptyGrid)
}

func TestRefine(t *testing.T) {
	before := blobs(80, 60)
	after := correlate.Shift(before, -6, 4, correlate.ModeNearest)

	opts := QuickOptions()
	opts.Quantize = false
	opts.Grid = Grid{Scales: []float64{1.0}, OffsetsX: []int{-10, 0, 10}, OffsetsY: []int{-10, 0, 10}}

	coarse, err := Search(context.Background(), before, after, opts)
	require.NoError(t, err)

	fine, err := Refine(context.Background(), before, after, coarse, opts)
	require.NoError(t, err)
	assert.Equal(t, 6, fine.OffsetX)
	assert.Equal(t, -4, fine.OffsetY)
	assert.GreaterOrEqual(t, fine.Correlation, coarse.Correlation)
	assert.Equal(t, coarse.Total+9*11*11, fine.Total)
}

func TestRefine_NotFoundPassesThrough(t *testing.T) {
	in := Identity(10)
	out, err := Refine(context.Background(), noise(5, 5, 1), noise(5, 5, 1), in, QuickOptions())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestScaleOffsets(t *testing.T) {
	x, y := Candidate{OffsetX: 10, OffsetY: -4}.ScaleOffsets(2.5)
	assert.Equal(t, 25.0, x)
	assert.Equal(t, -10.0, y)
}

func TestToFullResolution(t *testing.T) {
	// 600x400 thumbnails of 3000x2000 photos: ratio 5.
	c := Candidate{Scale: 1.1, OffsetX: 4, OffsetY: -2}
	p := ToFullResolution(c, image.Pt(600, 400), image.Pt(600, 400), image.Pt(3000, 2000))

	// Zoomed thumb is 660x440, centered at (-30, -20), then shifted.
	assert.Equal(t, image.Pt(3300, 2200), p.Size)
	assert.Equal(t, image.Pt(-130, -110), p.Origin)
}

func TestToFullResolution_Identity(t *testing.T) {
	p := ToFullResolution(Identity(0).Candidate, image.Pt(400, 300), image.Pt(400, 300), image.Pt(1600, 1200))
	assert.Equal(t, image.Pt(1600, 1200), p.Size)
	assert.Equal(t, image.Pt(0, 0), p.Origin)
}
