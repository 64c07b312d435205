package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/jdowngrader/downgrade"
	"github.com/gnolang/jdowngrader/formatter"
)

// variable for flags
var (
	outPath      string
	target       string
	jsonOutput   bool
	watchMode    bool
	includes     []string
	excludes     []string
	ignoreRules  []string
	disableSteps []string
	threads      int
	runtimePath  string
	libraries    []string
	cacheDir     string
)

var downgradeCmd = &cobra.Command{
	Use:   "downgrade [paths...]",
	Short: "Lower jars, class directories or class files to the target release",
	Long: `Rewrites every selected class newer than the target release so it runs on
the target JVM, and bundles the runtime shims the rewritten code needs.
Without --output the inputs are rewritten in place.
Example) jdowngrader downgrade --target 8 -o app-j8.jar app.jar`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			fmt.Println("error: Please provide jar, directory or class file paths")
			os.Exit(1)
		}
		if code := runDowngrade(cmd, args); code != 0 {
			os.Exit(code)
		}
	},
}

func init() {
	flags := downgradeCmd.Flags()
	flags.StringVarP(&outPath, "output", "o", "", "Output path; a directory when several inputs are given")
	flags.StringVarP(&target, "target", "t", "", "Target Java release, e.g. 8, 1.8 or java11")
	flags.BoolVar(&jsonOutput, "json", false, "Print the run reports as JSON")
	flags.BoolVarP(&watchMode, "watch", "w", false, "Keep lowering class files as they change below a directory")
	flags.StringSliceVar(&includes, "include", nil, "Class name prefixes to lower (default all)")
	flags.StringSliceVar(&excludes, "exclude", nil, "Class name prefixes to copy unchanged")
	flags.StringSliceVar(&ignoreRules, "ignore", nil, "Call-site rules to leave alone, e.g. java/util/List;of")
	flags.StringSliceVar(&disableSteps, "disable", nil, "Version steps to disable, e.g. java9-to-java8")
	flags.IntVarP(&threads, "threads", "j", 0, "Worker count (default every CPU)")
	flags.StringVar(&runtimePath, "runtime", "", "Directory or jar holding the runtime shims")
	flags.StringSliceVar(&libraries, "lib", nil, "Jars or directories used to resolve the class hierarchy")
	flags.StringVar(&cacheDir, "cache-dir", "", "Directory for the rewritten-class cache")
}

func runDowngrade(cmd *cobra.Command, args []string) int {
	if watchMode && (len(args) != 1 || outPath == "") {
		fmt.Println("error: --watch takes one directory and an --output directory")
		return 1
	}

	config, err := buildConfig(cmd)
	if err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return 1
	}

	t, err := downgrade.NewTransformer(config, logger)
	if err != nil {
		logger.Error("Failed to initialize transformer", zap.Error(err))
		return 1
	}
	defer t.Close()
	t.Progress = !jsonOutput && isatty.IsTerminal(os.Stderr.Fd())

	if watchMode {
		return runWatch(logger, t, args[0], outPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	failed, err := runDowngradeProcess(ctx, logger, t, args, outPath, downgrade.ProcessPath, os.Stdout, jsonOutput)
	if err != nil {
		logger.Error("Error processing inputs", zap.Error(err))
		return 1
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// buildConfig loads the configuration file, if any, and applies the
// flags given on the command line on top of it.
func buildConfig(cmd *cobra.Command) (downgrade.Config, error) {
	config, err := loadConfigFile(cfgFile)
	if err != nil {
		return config, err
	}

	flags := cmd.Flags()
	if flags.Changed("target") {
		config.Target = target
	}
	if flags.Changed("threads") {
		config.Threads = threads
	}
	if flags.Changed("runtime") {
		config.Runtime = runtimePath
	}
	if flags.Changed("cache-dir") {
		config.CacheDir = cacheDir
	}
	config.Include = append(config.Include, includes...)
	config.Exclude = append(config.Exclude, excludes...)
	config.Libraries = append(config.Libraries, libraries...)
	config.IgnoredRules = append(config.IgnoredRules, ignoreRules...)
	config.DisabledSteps = append(config.DisabledSteps, disableSteps...)

	if _, err := config.Floor(); err != nil {
		return config, err
	}
	return config, nil
}

// loadConfigFile reads path, or the default file when path is empty and
// the default exists. A missing default is not an error.
func loadConfigFile(path string) (downgrade.Config, error) {
	if path == "" {
		if _, err := os.Stat(downgrade.DefaultConfigFile); errors.Is(err, os.ErrNotExist) {
			return downgrade.DefaultConfig(), nil
		}
		path = downgrade.DefaultConfigFile
	}
	return downgrade.LoadConfig(path)
}

type processFunc func(ctx context.Context, logger *zap.Logger, t *downgrade.Transformer, in, out string) (*downgrade.Report, error)

// runDowngradeProcess lowers every path and prints one report per path. It
// returns the number of classes that failed.
func runDowngradeProcess(
	ctx context.Context,
	logger *zap.Logger,
	t *downgrade.Transformer,
	paths []string,
	output string,
	process processFunc,
	w io.Writer,
	isJson bool,
) (int, error) {
	if output != "" && len(paths) > 1 {
		if err := os.MkdirAll(output, 0o755); err != nil {
			return 0, err
		}
	}

	var reports []*downgrade.Report
	failed := 0
	for _, in := range paths {
		out := outputFor(in, output, len(paths))
		report, err := process(ctx, logger, t, in, out)
		if err != nil {
			return failed, fmt.Errorf("%s: %w", in, err)
		}
		failed += report.Failed()
		reports = append(reports, report)
	}

	if isJson {
		d, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return failed, err
		}
		fmt.Fprintln(w, string(d))
		return failed, nil
	}
	for _, report := range reports {
		fmt.Fprint(w, formatter.FormatReport(report))
	}
	return failed, nil
}

// outputFor maps an input to its output path. With several inputs the
// output is a directory holding one entry per input.
func outputFor(in, output string, inputs int) string {
	if output == "" || inputs == 1 {
		return output
	}
	return filepath.Join(output, filepath.Base(filepath.Clean(in)))
}

func runWatch(logger *zap.Logger, t *downgrade.Transformer, in, out string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	if err := downgrade.Watch(ctx, logger, t, in, out); err != nil {
		logger.Error("Watch failed", zap.Error(err))
		return 1
	}
	logger.Info("Watch stopped", zap.Duration("after", time.Since(start)))
	return 0
}
