package homography

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrNoConsensus is returned when no sample gathers at least four inliers.
var ErrNoConsensus = errors.New("RANSAC found no consensus set")

// Options configures EstimateRANSAC.
type Options struct {
	// Threshold is the maximum reprojection error, in pixels, for a pair to
	// count as an inlier.
	Threshold float64
	// MaxIterations caps the number of random samples.
	MaxIterations int
	// Confidence ends sampling early once a consensus this likely has been
	// seen.
	Confidence float64
	// Seed makes sampling reproducible.
	Seed int64
}

// DefaultOptions returns a 5px threshold, 2000 iterations and 0.995
// confidence.
func DefaultOptions() Options {
	return Options{Threshold: 5.0, MaxIterations: 2000, Confidence: 0.995, Seed: 1}
}

// Result is a robust fit and the pairs that support it.
type Result struct {
	H          Matrix
	Inliers    []bool
	NumInliers int
	Iterations int
}

// EstimateRANSAC fits a homography from[i] -> to[i] while ignoring
// outliers. Minimal four-point samples are scored by inlier count and the
// best consensus set is refitted by least squares.
func EstimateRANSAC(from, to []Point, opts Options) (Result, error) {
	if len(from) != len(to) {
		return Result{}, fmt.Errorf("point count mismatch: %d vs %d", len(from), len(to))
	}
	n := len(from)
	if n < 4 {
		return Result{}, ErrTooFewPoints
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultOptions().Threshold
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultOptions().MaxIterations
	}
	if opts.Confidence <= 0 || opts.Confidence >= 1 {
		opts.Confidence = DefaultOptions().Confidence
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	var best Result
	needed := opts.MaxIterations
	sf := make([]Point, 4)
	st := make([]Point, 4)

	iter := 0
	for ; iter < needed && iter < opts.MaxIterations; iter++ {
		idx := rng.Perm(n)[:4]
		for i, k := range idx {
			sf[i] = from[k]
			st[i] = to[k]
		}
		if collinear(sf) || collinear(st) {
			continue
		}
		h, err := Estimate(sf, st)
		if err != nil {
			continue
		}
		inliers, count := consensus(h, from, to, opts.Threshold)
		if count > best.NumInliers {
			best = Result{H: h, Inliers: inliers, NumInliers: count}
			needed = adaptiveIterations(count, n, opts.Confidence, opts.MaxIterations)
		}
	}
	best.Iterations = iter

	if best.NumInliers < 4 {
		return Result{Iterations: iter}, ErrNoConsensus
	}

	var inFrom, inTo []Point
	for i, ok := range best.Inliers {
		if ok {
			inFrom = append(inFrom, from[i])
			inTo = append(inTo, to[i])
		}
	}
	if refit, err := Estimate(inFrom, inTo); err == nil {
		inliers, count := consensus(refit, from, to, opts.Threshold)
		if count >= best.NumInliers {
			best.H, best.Inliers, best.NumInliers = refit, inliers, count
		}
	}
	return best, nil
}

func consensus(h Matrix, from, to []Point, threshold float64) ([]bool, int) {
	inliers := make([]bool, len(from))
	count := 0
	for i := range from {
		if h.ReprojectionError(from[i], to[i]) <= threshold {
			inliers[i] = true
			count++
		}
	}
	return inliers, count
}

// adaptiveIterations returns how many samples are needed to draw one
// all-inlier sample with the given confidence.
func adaptiveIterations(inliers, total int, confidence float64, limit int) int {
	w := float64(inliers) / float64(total)
	p := math.Pow(w, 4)
	if p >= 1 {
		return 0
	}
	if p <= 0 {
		return limit
	}
	k := math.Log(1-confidence) / math.Log(1-p)
	if math.IsNaN(k) || k > float64(limit) {
		return limit
	}
	return int(math.Ceil(k))
}

// collinear reports whether any three of the four sample points lie on a
// line.
func collinear(p []Point) bool {
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			for k := j + 1; k < 4; k++ {
				area := (p[j].X-p[i].X)*(p[k].Y-p[i].Y) - (p[j].Y-p[i].Y)*(p[k].X-p[i].X)
				if math.Abs(area) < 1e-6 {
					return true
				}
			}
		}
	}
	return false
}
