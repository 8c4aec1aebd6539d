// Package search finds the scale and translation that best overlays one
// grayscale image onto another by brute-force correlation over a grid.
//
// For every scale the "after" matrix is zoomed, center-fitted to the
// "before" shape, then shifted by every offset pair and scored. Scales are
// scored concurrently; the winner is chosen afterwards in grid order, so the
// result does not depend on scheduling.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/slider-align/internal/correlate"
)

// ErrEmptyGrid is returned when the grid has no candidates.
var ErrEmptyGrid = errors.New("search grid is empty")

// Scorer compares two equally sized matrices; higher is better.
// An error marks the candidate as unscorable and it is skipped.
type Scorer func(a, b *correlate.Matrix) (float64, error)

// Candidate is one point of the search space together with its score.
type Candidate struct {
	Scale       float64 `json:"scale" yaml:"scale"`
	OffsetX     int     `json:"offset_x" yaml:"offset_x"`
	OffsetY     int     `json:"offset_y" yaml:"offset_y"`
	Correlation float64 `json:"correlation" yaml:"correlation"`
}

// Result is the outcome of a search.
type Result struct {
	Candidate `yaml:",inline"`

	// Found is false when no candidate scored above -1; the parameters are
	// then the identity (scale 1, no offset) with correlation 0.
	Found bool `json:"found" yaml:"found"`

	// Evaluated counts scored candidates, Skipped counts candidates whose
	// scale was rejected by the size guard or whose score was unusable.
	Evaluated int `json:"evaluated" yaml:"evaluated"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	Total     int `json:"total" yaml:"total"`
}

// Options controls a search.
type Options struct {
	Grid      Grid
	Scorer    Scorer
	ShiftMode correlate.ShiftMode

	// Quantize rounds each zoomed matrix to 8-bit values. Set it when the
	// inputs are plain luma; leave it off for float maps such as gradients.
	Quantize bool

	// SizeGuard skips scales whose truncated scaled height or width falls
	// outside [0.8, 1.3] of the reference size.
	SizeGuard bool

	// Workers bounds the number of scales scored concurrently.
	// Zero means GOMAXPROCS.
	Workers int

	// ProgressEvery calls OnProgress after every N scored candidates.
	// OnProgress may be called from several goroutines.
	ProgressEvery int
	OnProgress    func(done, total int)

	// OnImprove is called, in grid order, each time the running best
	// improves.
	OnImprove func(Candidate)
}

// ExhaustiveOptions scores the dense grid with full-frame NCC, 8-bit zoom,
// zero fill for shifted-in pixels, and progress every 100 candidates.
func ExhaustiveOptions() Options {
	return Options{
		Grid:          ExhaustiveGrid(),
		Scorer:        correlate.NCC,
		ShiftMode:     correlate.ModeConstant,
		Quantize:      true,
		SizeGuard:     true,
		ProgressEvery: 100,
	}
}

// QuickOptions scores the coarse grid with center-window NCC, 8-bit zoom
// and edge-replicating shifts.
func QuickOptions() Options {
	return Options{
		Grid:      QuickGrid(),
		Scorer:    correlate.CenterNCC,
		ShiftMode: correlate.ModeNearest,
		Quantize:  true,
	}
}

// Identity is the fallback result used when nothing is found.
func Identity(total int) Result {
	return Result{Candidate: Candidate{Scale: 1.0}, Total: total}
}

// Search scores every grid candidate of after against before and returns
// the best one. Ties keep the earliest candidate in grid order.
func Search(ctx context.Context, before, after *correlate.Matrix, opts Options) (Result, error) {
	grid := opts.Grid
	if grid.Empty() {
		return Result{}, ErrEmptyGrid
	}
	if opts.Scorer == nil {
		opts.Scorer = correlate.NCC
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	total := grid.Total()
	perScale := len(grid.OffsetsX) * len(grid.OffsetsY)
	scores := make([][]float64, len(grid.Scales))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, scale := range grid.Scales {
		if opts.SizeGuard && !withinGuard(before, scale) {
			continue
		}
		g.Go(func() error {
			zoomed := correlate.Zoom(after, scale)
			if opts.Quantize {
				zoomed.Quantize()
			}
			fitted := correlate.FitCenter(zoomed, before.W, before.H)
			row := make([]float64, perScale)
			k := 0
			for _, ox := range grid.OffsetsX {
				if err := gctx.Err(); err != nil {
					return err
				}
				for _, oy := range grid.OffsetsY {
					row[k] = score(opts.Scorer, before, correlate.Shift(fitted, ox, oy, opts.ShiftMode))
					k++
					n := done.Add(1)
					if opts.OnProgress != nil && opts.ProgressEvery > 0 && n%int64(opts.ProgressEvery) == 0 {
						opts.OnProgress(int(n), total)
					}
				}
			}
			scores[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("search aborted: %w", err)
	}

	return reduce(grid, scores, opts.OnImprove), nil
}

// Refine runs a second, finer search around a coarse winner and returns
// whichever of the two results scores higher. Counters are accumulated.
func Refine(ctx context.Context, before, after *correlate.Matrix, coarse Result, opts Options) (Result, error) {
	if !coarse.Found {
		return coarse, nil
	}
	fineOpts := opts
	fineOpts.Grid = RefineGrid(coarse.Candidate, opts.Grid)
	fine, err := Search(ctx, before, after, fineOpts)
	if err != nil {
		return coarse, err
	}

	best := coarse
	if fine.Found && fine.Correlation > coarse.Correlation {
		best = fine
	}
	best.Evaluated = coarse.Evaluated + fine.Evaluated
	best.Skipped = coarse.Skipped + fine.Skipped
	best.Total = coarse.Total + fine.Total
	return best, nil
}

// reduce walks the score table in grid order and keeps the strict maximum,
// starting from -1. Rows left nil were skipped by the size guard.
func reduce(grid Grid, scores [][]float64, onImprove func(Candidate)) Result {
	res := Identity(grid.Total())
	best := -1.0
	perScale := len(grid.OffsetsX) * len(grid.OffsetsY)

	for i, scale := range grid.Scales {
		row := scores[i]
		if row == nil {
			res.Skipped += perScale
			continue
		}
		k := 0
		for _, ox := range grid.OffsetsX {
			for _, oy := range grid.OffsetsY {
				s := row[k]
				k++
				if math.IsNaN(s) || math.IsInf(s, 0) {
					res.Skipped++
					continue
				}
				res.Evaluated++
				if s > best {
					best = s
					res.Found = true
					res.Candidate = Candidate{Scale: scale, OffsetX: ox, OffsetY: oy, Correlation: s}
					if onImprove != nil {
						onImprove(res.Candidate)
					}
				}
			}
		}
	}
	return res
}

func score(fn Scorer, a, b *correlate.Matrix) float64 {
	s, err := fn(a, b)
	if err != nil {
		return math.NaN()
	}
	return s
}

// withinGuard reports whether scaling the reference by scale keeps both
// truncated dimensions within [0.8, 1.3] of the reference.
func withinGuard(ref *correlate.Matrix, scale float64) bool {
	h, w := float64(ref.H), float64(ref.W)
	sh := float64(int(h * scale))
	sw := float64(int(w * scale))
	if sh < h*0.8 || sh > h*1.3 {
		return false
	}
	if sw < w*0.8 || sw > w*1.3 {
		return false
	}
	return true
}

// ScaleOffsets converts the candidate's offsets from search-resolution
// pixels to another resolution, given the ratio target/search.
func (c Candidate) ScaleOffsets(ratio float64) (float64, float64) {
	return float64(c.OffsetX) * ratio, float64(c.OffsetY) * ratio
}
