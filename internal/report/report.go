// Package report renders alignment outcomes as the human-readable text
// printed by the CLI and as a YAML summary file.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/slider-align/internal/align"
	"github.com/ironsheep/slider-align/internal/search"
)

const separator = "========================================"

// Title returns the heading printed before a method's results.
func Title(method align.Method) string {
	switch method {
	case align.MethodSearch:
		return "=== Image Alignment Analysis ==="
	case align.MethodQuick:
		return "=== Fast Image Alignment Analysis ==="
	case align.MethodFeatures:
		return "=== Feature-Based Image Alignment ==="
	default:
		return "=== Manual Crop Alignment ==="
	}
}

// CSS returns the slider transform for a search result. The exhaustive
// search prints a style attribute with three-decimal scale, the quick
// search a bare declaration with two decimals.
func CSS(method align.Method, c search.Candidate) string {
	if method == align.MethodQuick {
		return fmt.Sprintf("transform: scale(%.2f) translateX(%dpx) translateY(%dpx);", c.Scale, c.OffsetX, c.OffsetY)
	}
	return fmt.Sprintf(`style="transform: scale(%.3f) translateX(%dpx) translateY(%dpx);"`, c.Scale, c.OffsetX, c.OffsetY)
}

// Write prints every outcome of one method in run order, followed by the
// CSS transforms for the correlation methods.
func Write(w io.Writer, method align.Method, outcomes []*align.Outcome) error {
	p := &printer{w: w}
	p.line(Title(method))
	p.line("")

	for i, o := range outcomes {
		if i > 0 && (method == align.MethodSearch || method == align.MethodQuick) {
			p.line("")
			p.line(separator)
		}
		writeOutcome(p, o)
	}

	switch method {
	case align.MethodSearch, align.MethodQuick:
		writeCSS(p, method, outcomes)
	case align.MethodFeatures:
		p.line("")
		p.line("=== Alignment Complete ===")
		p.line("Created aligned image files that can be used directly in the slider")
	case align.MethodCrop:
		p.line("")
		p.line("Done! Created aligned image files.")
	}
	return p.err
}

// WriteOutcome prints a single outcome without headings.
func WriteOutcome(w io.Writer, o *align.Outcome) error {
	p := &printer{w: w}
	writeOutcome(p, o)
	return p.err
}

func writeOutcome(p *printer, o *align.Outcome) {
	switch o.Method {
	case align.MethodSearch, align.MethodQuick:
		p.linef("Processing %s images...", strings.ToUpper(o.Pair))
	default:
		p.linef("Processing %s images...", o.Pair)
	}
	if o.Failed() {
		p.linef("Skipped %s: %s", o.Pair, o.Error)
		return
	}

	switch o.Method {
	case align.MethodCrop:
		writeCrop(p, o)
	case align.MethodSearch, align.MethodQuick:
		writeSearch(p, o)
	case align.MethodFeatures:
		writeFeatures(p, o)
	}

	if o.Delta != nil {
		p.linef("Color difference: mean ΔE %.2f, max ΔE %.2f (%d samples)", o.Delta.Mean, o.Delta.Max, o.Delta.Samples)
	}
}

func writeCrop(p *printer, o *align.Outcome) {
	p.linef("Before size: (%d, %d)", o.BeforeSize.X, o.BeforeSize.Y)
	p.linef("After size: (%d, %d)", o.AfterSize.X, o.AfterSize.Y)
	if o.Crop != nil {
		p.linef("Scale: %.2f, offset: (%d, %d)", o.Crop.Scale, o.Crop.Left, o.Crop.Top)
	}
	p.linef("Saved aligned %s images: (%d, %d)", o.Pair, o.BeforeSize.X, o.BeforeSize.Y)
}

func writeSearch(p *printer, o *align.Outcome) {
	// Shapes are rows x columns.
	name := capitalize(o.Pair)
	p.linef("%s before shape: (%d, %d)", name, o.BeforeThumb.Y, o.BeforeThumb.X)
	p.linef("%s after shape: (%d, %d)", name, o.AfterThumb.Y, o.AfterThumb.X)
	if o.MaskedText > 0 {
		p.linef("Masked %d text regions", o.MaskedText)
	}

	r := o.Search
	if r == nil {
		return
	}
	writeCombinations(p, o.Method, r)

	p.line("")
	p.linef("Best alignment for %s images:", strings.ToUpper(o.Pair))
	p.linef("  Scale: %.3f", r.Scale)
	p.linef("  Offset X: %dpx", r.OffsetX)
	p.linef("  Offset Y: %dpx", r.OffsetY)
	p.linef("  Correlation: %.4f", r.Correlation)
	if !r.Found {
		p.line("  (no correlation peak found)")
	}
	if o.Placement != nil {
		p.linef("  Full resolution: resize to %dx%d, place at (%d, %d)",
			o.Placement.Size.X, o.Placement.Size.Y, o.Placement.Origin.X, o.Placement.Origin.Y)
	}
	if len(o.Outputs) > 0 {
		p.linef("Saved aligned images: %s", strings.Join(baseNames(o.Outputs), ", "))
	}
}

// writeCombinations reports how many candidates the search covered. The
// grid breakdown is only printed when nothing was added by refinement.
func writeCombinations(p *printer, method align.Method, r *search.Result) {
	g := search.QuickGrid()
	if method == align.MethodSearch {
		g = search.ExhaustiveGrid()
	}
	if method == align.MethodSearch && r.Total == g.Total() {
		p.linef("Testing %d scales x %dx%d offsets = %d combinations...", len(g.Scales), len(g.OffsetsX), len(g.OffsetsY), r.Total)
	} else {
		p.linef("Testing %d combinations...", r.Total)
	}
	if r.Total > g.Total() {
		p.linef("  %d coarse + %d refined", g.Total(), r.Total-g.Total())
	}
	if r.Skipped > 0 {
		p.linef("  %d evaluated, %d skipped", r.Evaluated, r.Skipped)
	}
}

func writeFeatures(p *printer, o *align.Outcome) {
	p.linef("Image 1 size: (%d, %d)", o.BeforeSize.Y, o.BeforeSize.X)
	p.linef("Image 2 size: (%d, %d)", o.AfterSize.Y, o.AfterSize.X)

	f := o.Features
	if f == nil {
		return
	}
	p.linef("Using %s feature detector...", strings.ToUpper(string(f.Detector)))
	p.linef("Found %d keypoints in image 1", f.KeypointsBefore)
	p.linef("Found %d keypoints in image 2", f.KeypointsAfter)
	if f.CrossCheck {
		p.line("Ratio test kept nothing, used cross-checked matches...")
	}
	p.linef("Found %d good matches", f.GoodMatches)
	p.linef("RANSAC kept %d inliers", f.Inliers)

	p.line("")
	p.line("Transformation matrix:")
	p.line(f.H.String())
	p.line("")
	p.line("Approximate CSS transform:")
	p.linef("  Scale: %.3f", f.Approx.Scale)
	p.linef("  Translate X: %.1fpx", f.Approx.TranslateX)
	p.linef("  Translate Y: %.1fpx", f.Approx.TranslateY)
	if len(o.Outputs) > 0 {
		p.line("")
		p.linef("Saved aligned images: %s", strings.Join(baseNames(o.Outputs), ", "))
	}
}

func writeCSS(p *printer, method align.Method, outcomes []*align.Outcome) {
	p.line("")
	p.line(separator)
	p.line("CSS TRANSFORMS TO APPLY:")
	p.line("")
	first := true
	for _, o := range outcomes {
		if o.Failed() || o.Search == nil {
			continue
		}
		if !first {
			p.line("")
		}
		first = false
		p.linef("%s after image:", capitalize(o.Pair))
		p.linef("  %s", CSS(method, o.Search.Candidate))
	}
}

// summary is the document written by WriteSummary.
type summary struct {
	Pairs  int              `yaml:"pairs"`
	Failed int              `yaml:"failed"`
	Runs   []*align.Outcome `yaml:"runs"`
}

// WriteSummary writes every outcome to path as YAML.
func WriteSummary(path string, outcomes []*align.Outcome) error {
	doc := summary{Runs: outcomes}
	seen := make(map[string]bool)
	for _, o := range outcomes {
		if !seen[o.Pair] {
			seen[o.Pair] = true
			doc.Pairs++
		}
		if o.Failed() {
			doc.Failed++
		}
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// printer remembers the first write error so callers check once.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(s string) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintln(p.w, s)
}

func (p *printer) linef(format string, args ...any) {
	p.line(fmt.Sprintf(format, args...))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}
