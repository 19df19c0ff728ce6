package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"qualityportal/internal/util"
	"qualityportal/services/portal/internal/app"
	"qualityportal/services/portal/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "Quality document portal for the A-11 works",
	Long: `portal serves the quality management documentation of the works,
organized in 21 chapters of five subchapters each. Besides the web server
it can bulk-import files into a subchapter and clean up orphaned blobs.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.ConfigPath, "config file path")
}

// loadApp reads the configuration and wires the application state.
func loadApp(ctx context.Context) (config.FileConfig, *app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	logger := util.InitLogger(cfg.LogLevel)
	a, err := app.New(ctx, cfg, app.Deps{}, logger)
	if err != nil {
		return cfg, nil, fmt.Errorf("init app: %w", err)
	}
	return cfg, a, nil
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
