package align

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ironsheep/slider-align/internal/config"
	"github.com/ironsheep/slider-align/internal/features"
	"github.com/ironsheep/slider-align/internal/homography"
)

// Features aligns a pair by keypoint matching and a RANSAC homography,
// writing the warped after image and an unchanged copy of before.
func (r *Runner) Features(pair config.Pair) (*Outcome, error) {
	return r.features(pair, r.cfg.OutputDir)
}

func (r *Runner) features(pair config.Pair, dir string) (*Outcome, error) {
	opts, err := r.featureOptions()
	if err != nil {
		return nil, err
	}
	before, after, err := r.loadPair(pair)
	if err != nil {
		return nil, err
	}
	out := &Outcome{
		Pair:       pair.Name,
		Method:     MethodFeatures,
		BeforeSize: size(before),
		AfterSize:  size(after),
	}
	log := r.log.With(zap.String("pair", pair.Name), zap.String("method", string(MethodFeatures)))
	log.Info("processing pair",
		zap.Stringer("before_size", out.BeforeSize),
		zap.Stringer("after_size", out.AfterSize),
		zap.String("detector", string(opts.Detector)))

	res, err := features.Align(before, after, opts)
	if err != nil {
		return nil, fmt.Errorf("pair %s: %w", pair.Name, err)
	}
	out.Features = res
	log.Info("homography found",
		zap.String("detector", string(res.Detector)),
		zap.Int("keypoints_before", res.KeypointsBefore),
		zap.Int("keypoints_after", res.KeypointsAfter),
		zap.Int("good_matches", res.GoodMatches),
		zap.Int("inliers", res.Inliers),
		zap.Bool("cross_check", res.CrossCheck))

	if err := r.writePair(out, dir, before, res.Aligned); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Runner) featureOptions() (features.Options, error) {
	det, err := features.ParseDetector(r.cfg.Features.Detector)
	if err != nil {
		return features.Options{}, err
	}
	ransac := homography.DefaultOptions()
	if r.cfg.Features.Threshold > 0 {
		ransac.Threshold = r.cfg.Features.Threshold
	}
	ransac.Seed = r.cfg.Features.Seed
	return features.Options{
		Detector: det,
		Ratio:    r.cfg.Features.Ratio,
		RANSAC:   ransac,
	}, nil
}
