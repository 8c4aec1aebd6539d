package align

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/ironsheep/slider-align/internal/config"
	"github.com/ironsheep/slider-align/internal/correlate"
	"github.com/ironsheep/slider-align/internal/imaging"
	"github.com/ironsheep/slider-align/internal/ocr"
	"github.com/ironsheep/slider-align/internal/search"
)

// Thumbnail bounds used by the correlation aligners.
var (
	ExhaustiveThumb = image.Pt(600, 400)
	QuickThumb      = image.Pt(400, 300)
)

// maskPad grows text boxes on the thumbnail so glyph edges are covered.
const maskPad = 2

// Search runs a correlation aligner (MethodSearch or MethodQuick) on
// thumbnails of the pair. With search.write set, the winning candidate is
// mapped to full resolution and the aligned images are written.
func (r *Runner) Search(ctx context.Context, pair config.Pair, method Method) (*Outcome, error) {
	return r.search(ctx, pair, method, r.cfg.OutputDir)
}

func (r *Runner) search(ctx context.Context, pair config.Pair, method Method, dir string) (*Outcome, error) {
	var (
		opts  search.Options
		bound image.Point
	)
	switch method {
	case MethodSearch:
		opts, bound = search.ExhaustiveOptions(), ExhaustiveThumb
	case MethodQuick:
		opts, bound = search.QuickOptions(), QuickThumb
	default:
		return nil, fmt.Errorf("%w: %s is not a search method", ErrUnknownMethod, method)
	}

	before, after, err := r.loadPair(pair)
	if err != nil {
		return nil, err
	}
	beforeThumb := imaging.Thumbnail(before, bound.X, bound.Y)
	afterThumb := imaging.Thumbnail(after, bound.X, bound.Y)

	out := &Outcome{
		Pair:        pair.Name,
		Method:      method,
		BeforeSize:  size(before),
		AfterSize:   size(after),
		BeforeThumb: size(beforeThumb),
		AfterThumb:  size(afterThumb),
	}
	log := r.log.With(zap.String("pair", pair.Name), zap.String("method", string(method)))
	log.Info("processing pair",
		zap.Stringer("before_shape", out.BeforeThumb),
		zap.Stringer("after_shape", out.AfterThumb),
		zap.Int("combinations", opts.Grid.Total()))

	bm := r.prepare(beforeThumb)
	am := r.prepare(afterThumb)
	if r.cfg.Search.MaskText {
		out.MaskedText += r.maskText(log, bm, before, beforeThumb)
		out.MaskedText += r.maskText(log, am, after, afterThumb)
	}

	opts.Workers = r.cfg.Search.Workers
	opts.Quantize = !r.cfg.Search.Gradient
	if opts.ProgressEvery > 0 {
		opts.OnProgress = func(done, total int) {
			log.Info("progress",
				zap.Int("done", done),
				zap.Int("total", total),
				zap.Float64("percent", 100*float64(done)/float64(total)))
		}
	}
	if method == MethodQuick {
		opts.OnImprove = func(c search.Candidate) {
			log.Info("better match",
				zap.Float64("scale", c.Scale),
				zap.Int("x", c.OffsetX),
				zap.Int("y", c.OffsetY),
				zap.Float64("corr", c.Correlation))
		}
	}

	res, err := search.Search(ctx, bm, am, opts)
	if err != nil {
		return nil, err
	}
	if r.cfg.Search.Refine {
		if res, err = search.Refine(ctx, bm, am, res, opts); err != nil {
			return nil, err
		}
	}
	out.Search = &res
	log.Info("best alignment",
		zap.Float64("scale", res.Scale),
		zap.Int("offset_x", res.OffsetX),
		zap.Int("offset_y", res.OffsetY),
		zap.Float64("correlation", res.Correlation),
		zap.Int("evaluated", res.Evaluated),
		zap.Int("skipped", res.Skipped))

	if !r.cfg.Search.Write {
		return out, nil
	}
	if !res.Found {
		log.Warn("no correlation peak found, writing unscaled after image")
	}
	placement := search.ToFullResolution(res.Candidate, out.BeforeThumb, out.AfterThumb, out.BeforeSize)
	out.Placement = &placement
	aligned, err := imaging.Compose(after, placement.Size.X, placement.Size.Y, placement.Origin, out.BeforeSize.X, out.BeforeSize.Y)
	if err != nil {
		return nil, fmt.Errorf("pair %s: %w", pair.Name, err)
	}
	if err := r.writePair(out, dir, before, aligned); err != nil {
		return nil, err
	}
	return out, nil
}

// prepare turns a thumbnail into the matrix that is scored: optional
// Gaussian blur, luma, then optional gradient magnitude.
func (r *Runner) prepare(thumb image.Image) *correlate.Matrix {
	img := imaging.Blur(thumb, r.cfg.Search.Blur)
	m := imaging.GrayMatrix(img)
	if r.cfg.Search.Gradient {
		m = imaging.Gradient(m)
	}
	return m
}

// maskText finds text on the full-resolution image and neutralizes the
// matching thumbnail boxes in m. Detection failures only disable masking.
func (r *Runner) maskText(log *zap.Logger, m *correlate.Matrix, full, thumb image.Image) int {
	if r.detectText == nil {
		return 0
	}
	regions, err := r.detectText(full, r.cfg.Search.TextConfidence)
	if err != nil {
		log.Warn("text detection failed, scoring unmasked", zap.Error(err))
		return 0
	}
	if len(regions) == 0 {
		return 0
	}
	fb, tb := full.Bounds(), thumb.Bounds()
	sx := float64(tb.Dx()) / float64(fb.Dx())
	sy := float64(tb.Dy()) / float64(fb.Dy())
	scaled := ocr.ScaleRegions(regions, sx, sy, maskPad)
	m.Neutralize(ocr.Rects(scaled))
	log.Debug("masked text", zap.Int("regions", len(scaled)))
	return len(scaled)
}
