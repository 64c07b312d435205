package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gnolang/jdowngrader/downgrade"
	"github.com/gnolang/jdowngrader/formatter"
	"github.com/gnolang/jdowngrader/internal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var inspectJson bool

var inspectCmd = &cobra.Command{
	Use:   "inspect [class files...]",
	Short: "Show the version, nest and record data of classes and the calls that would be rewritten",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config, err := loadConfigFile(cfgFile)
		if err != nil {
			logger.Fatal("Invalid configuration", zap.Error(err))
		}
		engine, err := internal.NewEngine(config.Overrides)
		if err != nil {
			logger.Fatal("Failed to initialize engine", zap.Error(err))
		}
		failed := false
		for _, path := range args {
			if err := inspectFile(os.Stdout, engine, path, inspectJson); err != nil {
				logger.Error("Error inspecting class", zap.String("path", path), zap.Error(err))
				failed = true
			}
		}
		if failed {
			os.Exit(1)
		}
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJson, "json", false, "Output class data in JSON format")
}

func inspectFile(w io.Writer, engine *internal.Engine, path string, isJson bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	info, err := downgrade.Inspect(engine, data)
	if err != nil {
		return err
	}
	if isJson {
		d, err := json.Marshal(info)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(d))
		return err
	}
	_, err = fmt.Fprint(w, formatter.FormatClass(info))
	return err
}
