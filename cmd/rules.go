package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gnolang/jdowngrader/formatter"
	"github.com/gnolang/jdowngrader/internal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	rulesVerbose bool
	rulesJson    bool
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the version steps and the calls each one rewrites",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := loadConfigFile(cfgFile)
		if err != nil {
			logger.Fatal("Invalid configuration", zap.Error(err))
		}
		engine, err := internal.NewEngine(config.Overrides)
		if err != nil {
			logger.Fatal("Failed to initialize engine", zap.Error(err))
		}
		if err := printSteps(os.Stdout, engine, rulesVerbose, rulesJson); err != nil {
			logger.Fatal("Error printing steps", zap.Error(err))
		}
	},
}

func init() {
	rulesCmd.Flags().BoolVar(&rulesVerbose, "rules", false, "List every call-site rule under its step")
	rulesCmd.Flags().BoolVar(&rulesJson, "json", false, "Output steps in JSON format")
}

func printSteps(w io.Writer, engine *internal.Engine, verbose, isJson bool) error {
	steps := engine.Steps()
	if isJson {
		d, err := json.MarshalIndent(steps, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(d))
		return err
	}
	_, err := fmt.Fprint(w, formatter.FormatSteps(steps, verbose))
	return err
}
