// Package features aligns two photos by matching local keypoints and
// fitting a homography to the matches.
//
// Detection, description, matching and warping use OpenCV through gocv. The
// robust fit is done by the homography package so that its sampling is
// reproducible.
package features

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"gocv.io/x/gocv"

	"github.com/ironsheep/slider-align/internal/homography"
)

var (
	// ErrNotEnoughFeatures is returned when either image yields fewer than
	// four keypoints.
	ErrNotEnoughFeatures = errors.New("not enough features found")
	// ErrNotEnoughMatches is returned when fewer than four matches survive.
	ErrNotEnoughMatches = errors.New("not enough good matches found")
	// ErrNoHomography is returned when no homography fits the matches.
	ErrNoHomography = errors.New("could not find homography")
)

// Detector names a keypoint detector.
type Detector string

const (
	// DetectorSIFT uses SIFT descriptors matched with a FLANN KD-tree.
	DetectorSIFT Detector = "sift"
	// DetectorORB uses up to 1000 ORB features matched by Hamming distance.
	DetectorORB Detector = "orb"
	// DetectorAuto tries SIFT and falls back to ORB when SIFT finds too
	// few keypoints.
	DetectorAuto Detector = "auto"
)

// ParseDetector validates a detector name. The empty string means SIFT.
func ParseDetector(s string) (Detector, error) {
	switch Detector(s) {
	case "":
		return DetectorSIFT, nil
	case DetectorSIFT, DetectorORB, DetectorAuto:
		return Detector(s), nil
	}
	return "", fmt.Errorf("unknown detector %q (want sift, orb or auto)", s)
}

const (
	minPoints     = 4
	orbFeatures   = 1000
	fallbackMatch = 20
)

// Options configures Align.
type Options struct {
	Detector Detector
	// Ratio is the Lowe ratio-test bound: a best match is kept when its
	// distance is below Ratio times the second-best distance.
	Ratio  float64
	RANSAC homography.Options
}

// DefaultOptions uses SIFT, ratio 0.7 and a 5px RANSAC threshold.
func DefaultOptions() Options {
	return Options{
		Detector: DetectorSIFT,
		Ratio:    0.7,
		RANSAC:   homography.DefaultOptions(),
	}
}

// Result describes a feature-based alignment.
type Result struct {
	// H maps after-image pixels onto before-image pixels.
	H      homography.Matrix `json:"homography" yaml:"-"`
	Approx homography.Approx `json:"approx" yaml:"approx"`

	Detector        Detector `json:"detector" yaml:"detector"`
	KeypointsBefore int      `json:"keypoints_before" yaml:"keypoints_before"`
	KeypointsAfter  int      `json:"keypoints_after" yaml:"keypoints_after"`
	GoodMatches     int      `json:"good_matches" yaml:"good_matches"`
	Inliers         int      `json:"inliers" yaml:"inliers"`
	// CrossCheck is true when the ratio test produced nothing and the
	// matches came from mutual nearest neighbours instead.
	CrossCheck bool `json:"cross_check" yaml:"cross_check"`

	// Aligned is the after image warped into the before frame. Pixels with
	// no source are black.
	Aligned *image.NRGBA `json:"-" yaml:"-"`
}

// keypointSet is the output of one detector on one image.
type keypointSet struct {
	points []gocv.KeyPoint
	desc   gocv.Mat
}

func (k keypointSet) Close() error {
	return k.desc.Close()
}

// Align estimates the homography that maps after onto before and warps
// after into before's frame.
func Align(before, after image.Image, opts Options) (*Result, error) {
	if opts.Ratio <= 0 {
		opts.Ratio = DefaultOptions().Ratio
	}
	if opts.Detector == "" {
		opts.Detector = DetectorSIFT
	}

	grayBefore, err := grayMat(before)
	if err != nil {
		return nil, err
	}
	defer grayBefore.Close()
	grayAfter, err := grayMat(after)
	if err != nil {
		return nil, err
	}
	defer grayAfter.Close()

	det := opts.Detector
	if det == DetectorAuto {
		det = DetectorSIFT
	}
	kpB, kpA := detect(det, grayBefore), detect(det, grayAfter)
	if opts.Detector == DetectorAuto && (len(kpB.points) < minPoints || len(kpA.points) < minPoints) {
		kpB.Close()
		kpA.Close()
		det = DetectorORB
		kpB, kpA = detect(det, grayBefore), detect(det, grayAfter)
	}
	defer kpB.Close()
	defer kpA.Close()

	res := &Result{
		Detector:        det,
		KeypointsBefore: len(kpB.points),
		KeypointsAfter:  len(kpA.points),
	}
	if kpB.desc.Empty() || kpA.desc.Empty() || len(kpB.points) < minPoints || len(kpA.points) < minPoints {
		return res, fmt.Errorf("%w: %d and %d keypoints", ErrNotEnoughFeatures, len(kpB.points), len(kpA.points))
	}

	good := ratioTest(knnMatch(det, kpB.desc, kpA.desc), opts.Ratio)
	if len(good) == 0 {
		good = bestMatches(crossCheckMatch(det, kpB.desc, kpA.desc), fallbackMatch)
		res.CrossCheck = true
	}
	res.GoodMatches = len(good)
	if len(good) < minPoints {
		return res, fmt.Errorf("%w: %d", ErrNotEnoughMatches, len(good))
	}

	// Query descriptors come from before, train descriptors from after.
	to, from := matchedPoints(good, kpB.points, kpA.points)
	fit, err := homography.EstimateRANSAC(from, to, opts.RANSAC)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrNoHomography, err)
	}
	res.H = fit.H
	res.Inliers = fit.NumInliers
	res.Approx = homography.Approximate(fit.H)

	b := before.Bounds()
	aligned, err := WarpPerspective(after, fit.H, b.Dx(), b.Dy())
	if err != nil {
		return res, err
	}
	res.Aligned = aligned
	return res, nil
}

func detect(det Detector, gray gocv.Mat) keypointSet {
	mask := gocv.NewMat()
	defer mask.Close()

	switch det {
	case DetectorORB:
		orb := gocv.NewORBWithParams(orbFeatures, 1.2, 8, 31, 0, 2, gocv.ORBScoreTypeHarris, 31, 20)
		defer orb.Close()
		kp, desc := orb.DetectAndCompute(gray, mask)
		return keypointSet{points: kp, desc: desc}
	default:
		sift := gocv.NewSIFT()
		defer sift.Close()
		kp, desc := sift.DetectAndCompute(gray, mask)
		return keypointSet{points: kp, desc: desc}
	}
}

// knnMatch returns the two nearest after-descriptors for every
// before-descriptor.
func knnMatch(det Detector, query, train gocv.Mat) [][]gocv.DMatch {
	if det == DetectorORB {
		bf := gocv.NewBFMatcherWithParams(gocv.NormHamming, false)
		defer bf.Close()
		return bf.KnnMatch(query, train, 2)
	}
	flann := gocv.NewFlannBasedMatcher()
	defer flann.Close()
	return flann.KnnMatch(query, train, 2)
}

// crossCheckMatch returns mutual nearest neighbours.
func crossCheckMatch(det Detector, query, train gocv.Mat) []gocv.DMatch {
	norm := gocv.NormL2
	if det == DetectorORB {
		norm = gocv.NormHamming
	}
	bf := gocv.NewBFMatcherWithParams(norm, true)
	defer bf.Close()

	var out []gocv.DMatch
	for _, m := range bf.KnnMatch(query, train, 1) {
		if len(m) > 0 {
			out = append(out, m[0])
		}
	}
	return out
}

// ratioTest keeps the best match of each pair whose distance is below
// ratio times the runner-up distance. Entries without two candidates are
// ignored.
func ratioTest(knn [][]gocv.DMatch, ratio float64) []gocv.DMatch {
	var good []gocv.DMatch
	for _, pair := range knn {
		if len(pair) != 2 {
			continue
		}
		if pair[0].Distance < ratio*pair[1].Distance {
			good = append(good, pair[0])
		}
	}
	return good
}

// bestMatches sorts matches by distance and keeps at most n.
func bestMatches(matches []gocv.DMatch, n int) []gocv.DMatch {
	sorted := append([]gocv.DMatch(nil), matches...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Distance < sorted[j].Distance })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// matchedPoints returns the query and train coordinates of each match.
func matchedPoints(matches []gocv.DMatch, query, train []gocv.KeyPoint) ([]homography.Point, []homography.Point) {
	q := make([]homography.Point, 0, len(matches))
	t := make([]homography.Point, 0, len(matches))
	for _, m := range matches {
		if m.QueryIdx < 0 || m.QueryIdx >= len(query) || m.TrainIdx < 0 || m.TrainIdx >= len(train) {
			continue
		}
		q = append(q, homography.Point{X: query[m.QueryIdx].X, Y: query[m.QueryIdx].Y})
		t = append(t, homography.Point{X: train[m.TrainIdx].X, Y: train[m.TrainIdx].Y})
	}
	return q, t
}
