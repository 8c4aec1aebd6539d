// Package align runs the aligners over configured before/after pairs and
// writes the aligned outputs.
package align

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ironsheep/slider-align/internal/config"
	"github.com/ironsheep/slider-align/internal/imaging"
	"github.com/ironsheep/slider-align/internal/ocr"
)

// Method names an aligner.
type Method string

const (
	MethodCrop     Method = "crop"
	MethodSearch   Method = "search"
	MethodQuick    Method = "quick"
	MethodFeatures Method = "features"
)

// Methods lists every aligner in the order "all" runs them.
var Methods = []Method{MethodCrop, MethodSearch, MethodQuick, MethodFeatures}

// ParseMethod validates an aligner name.
func ParseMethod(s string) (Method, error) {
	for _, m := range Methods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown method %q", s)
}

// ErrUnknownMethod is returned by Align for a method it cannot run.
var ErrUnknownMethod = errors.New("unknown alignment method")

// deltaStep is the sampling stride of the ΔE quality metric.
const deltaStep = 4

// Runner aligns pairs with the settings of one configuration.
// A Runner is safe for concurrent use on different pairs.
type Runner struct {
	cfg        *config.Config
	cache      *imaging.ImageCache
	log        *zap.Logger
	detectText ocr.Detector
}

// NewRunner returns a Runner that loads images through cache. Text masking
// uses Tesseract.
func NewRunner(cfg *config.Config, cache *imaging.ImageCache, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		cache:      cache,
		log:        log,
		detectText: ocr.DetectTextBoxes,
	}
}

// WithTextDetector replaces the detector used by text masking.
func (r *Runner) WithTextDetector(d ocr.Detector) *Runner {
	r.detectText = d
	return r
}

// Config returns the runner's configuration.
func (r *Runner) Config() *config.Config {
	return r.cfg
}

// Align runs one method on one pair, writing outputs to the configured
// output directory.
func (r *Runner) Align(ctx context.Context, pair config.Pair, method Method) (*Outcome, error) {
	return r.align(ctx, pair, method, r.cfg.OutputDir)
}

func (r *Runner) align(ctx context.Context, pair config.Pair, method Method, dir string) (*Outcome, error) {
	switch method {
	case MethodCrop:
		return r.crop(pair, dir)
	case MethodSearch, MethodQuick:
		return r.search(ctx, pair, method, dir)
	case MethodFeatures:
		return r.features(pair, dir)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
}

// Run aligns every pair with every method. A failing pair is logged and
// recorded in its outcome; the remaining pairs still run. With more than
// one method, each method writes into its own subdirectory of the output
// directory so outputs do not overwrite each other.
//
// Run stops early only when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, pairs []config.Pair, methods ...Method) ([]*Outcome, error) {
	var outcomes []*Outcome
	for _, method := range methods {
		dir := r.cfg.OutputDir
		if len(methods) > 1 {
			dir = filepath.Join(dir, string(method))
		}
		for _, pair := range pairs {
			if err := ctx.Err(); err != nil {
				return outcomes, err
			}
			start := time.Now()
			out, err := r.align(ctx, pair, method, dir)
			if err != nil {
				if ctx.Err() != nil {
					return outcomes, ctx.Err()
				}
				r.log.Error("alignment failed",
					zap.String("pair", pair.Name),
					zap.String("method", string(method)),
					zap.Error(err))
				out = &Outcome{Pair: pair.Name, Method: method}
				out.setErr(err)
			}
			out.Duration = time.Since(start)
			outcomes = append(outcomes, out)
		}
	}
	return outcomes, nil
}

// loadPair loads both images of a pair.
func (r *Runner) loadPair(pair config.Pair) (before, after image.Image, err error) {
	before, err = r.cache.Load(pair.Before)
	if err != nil {
		return nil, nil, err
	}
	after, err = r.cache.Load(pair.After)
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

// writePair saves the before image and the aligned after image, then
// records the ΔE between them and writes the optional overlay preview.
func (r *Runner) writePair(out *Outcome, dir string, before, aligned image.Image) error {
	beforePath := filepath.Join(dir, out.Pair+"-before-aligned.jpg")
	afterPath := filepath.Join(dir, out.Pair+"-after-aligned.jpg")

	if err := imaging.SaveJPEG(before, beforePath, r.cfg.Quality); err != nil {
		return err
	}
	if err := imaging.SaveJPEG(aligned, afterPath, r.cfg.Quality); err != nil {
		return err
	}
	out.Outputs = append(out.Outputs, beforePath, afterPath)

	delta, err := imaging.ColorDelta(before, aligned, deltaStep)
	if err != nil {
		r.log.Warn("color delta failed", zap.String("pair", out.Pair), zap.Error(err))
	} else {
		out.Delta = delta
	}

	if r.cfg.Preview {
		previewPath := filepath.Join(dir, out.Pair+"-overlay.jpg")
		if err := imaging.SaveJPEG(imaging.Overlay(before, aligned, 0.5), previewPath, r.cfg.Quality); err != nil {
			return err
		}
		out.Outputs = append(out.Outputs, previewPath)
	}

	r.log.Info("saved aligned images",
		zap.String("pair", out.Pair),
		zap.Strings("outputs", out.Outputs))
	return nil
}

func size(img image.Image) image.Point {
	return img.Bounds().Size()
}
