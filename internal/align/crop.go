package align

import (
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/ironsheep/slider-align/internal/config"
	"github.com/ironsheep/slider-align/internal/imaging"
)

// Crop applies the pair's fixed crop preset: the after image is resized by
// the preset scale (sizes truncated) and a before-sized window is cut from
// it at (Left, Top). Parts of the window beyond the scaled image are black.
func (r *Runner) Crop(pair config.Pair) (*Outcome, error) {
	return r.crop(pair, r.cfg.OutputDir)
}

func (r *Runner) crop(pair config.Pair, dir string) (*Outcome, error) {
	preset := pair.Crop
	if preset.Scale <= 0 {
		return nil, fmt.Errorf("pair %s: crop scale must be positive", pair.Name)
	}

	before, after, err := r.loadPair(pair)
	if err != nil {
		return nil, err
	}
	out := &Outcome{
		Pair:       pair.Name,
		Method:     MethodCrop,
		BeforeSize: size(before),
		AfterSize:  size(after),
		Crop:       &preset,
	}
	r.log.Info("processing pair",
		zap.String("pair", pair.Name),
		zap.String("method", string(MethodCrop)),
		zap.Stringer("before_size", out.BeforeSize),
		zap.Stringer("after_size", out.AfterSize))

	aligned, err := CropAligned(after, out.BeforeSize, preset)
	if err != nil {
		return nil, fmt.Errorf("pair %s: %w", pair.Name, err)
	}
	if err := r.writePair(out, dir, before, aligned); err != nil {
		return nil, err
	}
	return out, nil
}

// CropAligned resizes after by preset.Scale and cuts a canvas-sized window
// from it at (preset.Left, preset.Top).
func CropAligned(after image.Image, canvas image.Point, preset config.CropPreset) (*image.NRGBA, error) {
	ab := after.Bounds()
	w, h := imaging.ScaledSize(ab.Dx(), ab.Dy(), preset.Scale)
	return imaging.Compose(after, w, h, image.Pt(-preset.Left, -preset.Top), canvas.X, canvas.Y)
}
