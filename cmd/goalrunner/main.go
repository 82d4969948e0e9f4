// Command goalrunner runs goals from the command line or serves them over HTTP.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	logLevel    string
	versionName = "dev"
)

var rootCmd = &cobra.Command{
	Use:           "goalrunner",
	Short:         "Plan and execute free-text goals with tools",
	Version:       versionName,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	rootCmd.AddCommand(serveCmd, runCmd, toolsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
