// Package cli wires the aligners, the MCP server and the watcher into the
// slider-align command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ironsheep/slider-align/internal/align"
	"github.com/ironsheep/slider-align/internal/config"
	"github.com/ironsheep/slider-align/internal/imaging"
	"github.com/ironsheep/slider-align/internal/report"
)

// DefaultConfigPath is read when --config is not given. A missing file
// means the built-in lawn and garden pairs.
const DefaultConfigPath = "slider-align.yaml"

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// Root holds the state shared by every subcommand.
type Root struct {
	info   BuildInfo
	stdout io.Writer
	stderr io.Writer

	// persistent flags
	cfgPath     string
	outDir      string
	logLevel    string
	pairNames   []string
	summaryPath string

	cfg   *config.Config
	log   *zap.Logger
	cache *imaging.ImageCache
}

// Run executes the command line args and returns the command's error.
func Run(ctx context.Context, args []string, info BuildInfo, stdout, stderr io.Writer) error {
	cmd := NewRootCmd(info, stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// NewRootCmd creates the root Cobra command. Results go to stdout, logs to
// stderr.
func NewRootCmd(info BuildInfo, stdout, stderr io.Writer) *cobra.Command {
	root := &Root{
		info:   info,
		stdout: stdout,
		stderr: stderr,
		cache:  imaging.NewImageCache(),
	}

	rootCmd := &cobra.Command{
		Use:   "slider-align",
		Short: "Align before/after photo pairs for slider comparisons",
		Long: `slider-align finds the scale and offset (or full homography) that overlays
an "after" photo onto its "before" photo, writes aligned copies of both, and
prints the CSS transform to apply in the slider markup.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return root.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if root.log != nil {
				_ = root.log.Sync()
			}
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&root.cfgPath, "config", "c", DefaultConfigPath, "configuration file (YAML)")
	flags.StringVarP(&root.outDir, "out", "o", "", "output directory (overrides output_dir)")
	flags.StringVar(&root.logLevel, "log-level", "", "log level (debug|info|warn|error)")
	flags.StringSliceVarP(&root.pairNames, "pair", "p", nil, "only process the named pairs (repeatable)")
	flags.StringVar(&root.summaryPath, "summary", "", "also write a YAML summary of every outcome to this file")

	rootCmd.AddCommand(newMethodCmd(root, align.MethodCrop, "Apply each pair's fixed scale and offset crop"))
	rootCmd.AddCommand(newMethodCmd(root, align.MethodSearch, "Exhaustive correlation search over scale and offset"))
	rootCmd.AddCommand(newMethodCmd(root, align.MethodQuick, "Coarse correlation search over scale and offset"))
	rootCmd.AddCommand(newMethodCmd(root, align.MethodFeatures, "Keypoint matching and homography warp"))
	rootCmd.AddCommand(newAllCmd(root))
	rootCmd.AddCommand(newServeCmd(root))
	rootCmd.AddCommand(newWatchCmd(root))
	rootCmd.AddCommand(newInitCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))

	return rootCmd
}

// setup loads the configuration, applies the persistent flags and builds
// the logger.
func (r *Root) setup() error {
	cfg, err := config.Load(r.cfgPath)
	if err != nil {
		return err
	}
	if r.outDir != "" {
		cfg.OutputDir = r.outDir
	}
	if r.logLevel != "" {
		cfg.Logging.Level = r.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.cfg = cfg

	r.log, err = newLogger(cfg.Logging.Level, r.stderr)
	return err
}

// newLogger builds a console logger writing to w. stdout is reserved for
// results and, under serve, the protocol stream.
func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), zap.NewAtomicLevelAt(lvl))
	return zap.New(core), nil
}

// runMethods aligns the selected pairs with each method, prints one report
// per method and writes the optional summary.
func (r *Root) runMethods(ctx context.Context, methods ...align.Method) error {
	pairs, err := r.cfg.Select(r.pairNames)
	if err != nil {
		return err
	}

	runner := align.NewRunner(r.cfg, r.cache, r.log)
	outcomes, runErr := runner.Run(ctx, pairs, methods...)

	for i, method := range methods {
		if i > 0 {
			fmt.Fprintln(r.stdout)
		}
		if err := report.Write(r.stdout, method, byMethod(outcomes, method)); err != nil {
			return err
		}
	}
	if r.summaryPath != "" {
		if err := report.WriteSummary(r.summaryPath, outcomes); err != nil {
			return err
		}
		r.log.Info("wrote summary", zap.String("path", r.summaryPath))
	}
	if runErr != nil {
		return runErr
	}
	return allFailed(outcomes)
}

func byMethod(outcomes []*align.Outcome, method align.Method) []*align.Outcome {
	var out []*align.Outcome
	for _, o := range outcomes {
		if o.Method == method {
			out = append(out, o)
		}
	}
	return out
}

// ErrAllFailed is returned when no pair could be aligned.
var ErrAllFailed = errors.New("every alignment failed")

func allFailed(outcomes []*align.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	for _, o := range outcomes {
		if !o.Failed() {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrAllFailed, outcomes[0].Error)
}
