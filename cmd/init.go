package cmd

import (
	"fmt"

	"github.com/gnolang/jdowngrader/downgrade"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultConfigHint = downgrade.DefaultConfigFile

// initCmd: jdowngrader init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		path, err := initConfigurationFile(cfgFile)
		if err != nil {
			logger.Error("Error initializing config file", zap.Error(err))
			return
		}
		fmt.Printf("Configuration file created/updated: %s\n", path)
	},
}

func initConfigurationFile(configurationPath string) (string, error) {
	if configurationPath == "" {
		configurationPath = downgrade.DefaultConfigFile
	}
	return configurationPath, downgrade.WriteConfig(configurationPath, downgrade.DefaultConfig())
}
