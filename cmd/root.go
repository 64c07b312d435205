package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultTimeout = 10 * time.Minute

var (
	cfgFile string
	timeout time.Duration
	verbose bool

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:              "jdowngrader [paths...]",
	Short:            "jdowngrader - lower compiled Java classes to an older release",
	TraverseChildren: true, // Prioritize subcommands
	SilenceUsage:     true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(verbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			_ = cmd.Help()
			return
		}
		// jdowngrader [path1 path2 ...] behaves like the downgrade subcommand
		downgradeCmd.Run(downgradeCmd, args)
	},
}

func Execute() error {
	defer func() { _ = logger.Sync() }()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file (default "+defaultConfigHint+")")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", defaultTimeout, "Abort the run after this long")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every class")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(downgradeCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(inspectCmd)
}

// newLogger logs human readable lines to stderr. Only warnings and errors
// are shown unless verbose is set.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		config := zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return config.Build()
	}
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	config.DisableStacktrace = true
	return config.Build()
}
