package main

import (
	"os"

	"github.com/spf13/cobra"

	"contractapi/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "api",
	Short:         "Contract API: serves the operations declared by its OpenAPI document",
	RunE:          runServe, // serve by default
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"),
		"Path to a YAML config file (env: CONFIG_FILE); environment variables override it")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(contractCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.AppConfig, error) {
	return config.LoadFile(configPath)
}
