package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ironsheep/slider-align/internal/align"
	"github.com/ironsheep/slider-align/internal/config"
	"github.com/ironsheep/slider-align/internal/ocr"
	"github.com/ironsheep/slider-align/internal/report"
	"github.com/ironsheep/slider-align/internal/server"
	"github.com/ironsheep/slider-align/internal/watch"
)

// tuning holds the per-command flags that override configuration values.
// Only flags the user actually set are applied.
type tuning struct {
	preview   bool
	write     bool
	refine    bool
	gradient  bool
	maskText  bool
	blur      float64
	workers   int
	detector  string
	ratio     float64
	threshold float64
}

func (t *tuning) addPreview(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&t.preview, "preview", false, "also write a 50% overlay of each aligned pair")
}

func (t *tuning) addSearch(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&t.write, "write", "w", false, "write full-resolution aligned images")
	cmd.Flags().BoolVar(&t.refine, "refine", false, "run a finer second pass around the best candidate")
	cmd.Flags().BoolVar(&t.gradient, "gradient", false, "correlate gradient magnitude instead of brightness")
	cmd.Flags().BoolVar(&t.maskText, "mask-text", false, "exclude OCR-detected text (date stamps, watermarks) from scoring")
	cmd.Flags().Float64Var(&t.blur, "blur", 0, "Gaussian blur radius applied before scoring")
	cmd.Flags().IntVarP(&t.workers, "workers", "j", 0, "scales scored concurrently (0 = all CPUs)")
}

func (t *tuning) addFeatures(cmd *cobra.Command) {
	cmd.Flags().StringVar(&t.detector, "detector", "", "keypoint detector (sift|orb|auto)")
	cmd.Flags().Float64Var(&t.ratio, "ratio", 0, "Lowe ratio test bound")
	cmd.Flags().Float64Var(&t.threshold, "ransac-threshold", 0, "RANSAC reprojection threshold in pixels")
}

// apply copies the flags that were set onto cfg and revalidates it.
func (t *tuning) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	set := func(name string) bool {
		return f.Lookup(name) != nil && f.Changed(name)
	}
	if set("preview") {
		cfg.Preview = t.preview
	}
	if set("write") {
		cfg.Search.Write = t.write
	}
	if set("refine") {
		cfg.Search.Refine = t.refine
	}
	if set("gradient") {
		cfg.Search.Gradient = t.gradient
	}
	if set("mask-text") {
		cfg.Search.MaskText = t.maskText
	}
	if set("blur") {
		cfg.Search.Blur = t.blur
	}
	if set("workers") {
		cfg.Search.Workers = t.workers
	}
	if set("detector") {
		cfg.Features.Detector = t.detector
	}
	if set("ratio") {
		cfg.Features.Ratio = t.ratio
	}
	if set("ransac-threshold") {
		cfg.Features.Threshold = t.threshold
	}
	return cfg.Validate()
}

func newMethodCmd(root *Root, method align.Method, short string) *cobra.Command {
	var t tuning

	cmd := &cobra.Command{
		Use:   string(method),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := t.apply(cmd, root.cfg); err != nil {
				return err
			}
			return root.runMethods(cmd.Context(), method)
		},
	}

	t.addPreview(cmd)
	switch method {
	case align.MethodSearch, align.MethodQuick:
		t.addSearch(cmd)
	case align.MethodFeatures:
		t.addFeatures(cmd)
	}
	return cmd
}

func newAllCmd(root *Root) *cobra.Command {
	var t tuning

	cmd := &cobra.Command{
		Use:   "all",
		Short: "Run every aligner, each into its own output subdirectory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := t.apply(cmd, root.cfg); err != nil {
				return err
			}
			return root.runMethods(cmd.Context(), align.Methods...)
		},
	}

	t.addPreview(cmd)
	t.addSearch(cmd)
	t.addFeatures(cmd)
	return cmd
}

func newServeCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the aligners as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root.log.Info("starting MCP server", zap.String("version", root.info.Version))
			srv := server.New(root.cfg, root.log, root.info.Version)
			return srv.Serve(cmd.Context(), cmd.InOrStdin(), root.stdout)
		},
	}
}

func newWatchCmd(root *Root) *cobra.Command {
	var (
		t        tuning
		method   string
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-align a pair whenever one of its images changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := align.ParseMethod(method)
			if err != nil {
				return err
			}
			if err := t.apply(cmd, root.cfg); err != nil {
				return err
			}
			pairs, err := root.cfg.Select(root.pairNames)
			if err != nil {
				return err
			}

			runner := align.NewRunner(root.cfg, root.cache, root.log)
			w, err := watch.New(pairs, func(ctx context.Context, pair config.Pair) (*align.Outcome, error) {
				return runner.Align(ctx, pair, m)
			}, debounce, root.log)
			if err != nil {
				return err
			}
			w.Evict = root.cache.Evict
			w.OnResult = func(pair config.Pair, out *align.Outcome, err error) {
				if err != nil {
					fmt.Fprintf(root.stdout, "Skipped %s: %v\n", pair.Name, err)
					return
				}
				_ = report.WriteOutcome(root.stdout, out)
				if out.Search != nil {
					fmt.Fprintf(root.stdout, "  %s\n", report.CSS(m, out.Search.Candidate))
				}
			}
			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&method, "method", "m", string(align.MethodQuick), "aligner to re-run (crop|search|quick|features)")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before a changed pair is re-run")
	t.addPreview(cmd)
	t.addSearch(cmd)
	t.addFeatures(cmd)
	return cmd
}

func newInitCmd(root *Root) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := root.cfgPath
			if len(args) > 0 {
				path = args[0]
			}
			if !force && fileExists(path) {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Default().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(root.stdout, "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// version needs neither configuration nor logger.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(root.stdout, "slider-align %s\n", root.info.Version)
			fmt.Fprintf(root.stdout, "  Build time: %s\n", root.info.BuildTime)
			fmt.Fprintf(root.stdout, "  Git commit: %s\n", root.info.GitCommit)
			fmt.Fprintf(root.stdout, "  Tesseract:  %s\n", ocr.Version())
			return nil
		},
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
