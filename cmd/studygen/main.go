// Package main is the studygen CLI: it watches generation jobs and runs the
// development API server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/studygen/internal/app"
	"github.com/yungbote/studygen/internal/platform/logger"
)

var (
	configPath string
	apiURL     string
	logMode    string
)

var rootCmd = &cobra.Command{
	Use:           "studygen",
	Short:         "Follow study-content generation jobs",
	Long:          "studygen submits summary, quiz and flashcard generation jobs, follows their progress live, and serves a local development API.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "generation API base URL (overrides STUDYGEN_API_URL)")
	rootCmd.PersistentFlags().StringVar(&logMode, "log-mode", "", "development or production (overrides LOG_MODE)")
}

// setup loads configuration with flag overrides applied and builds the logger.
func setup(cmd *cobra.Command, override func(*app.Config)) (app.Config, *logger.Logger, error) {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return cfg, nil, err
	}
	if cmd.Flags().Changed("api-url") {
		cfg.APIURL = apiURL
	}
	if cmd.Flags().Changed("log-mode") {
		cfg.LogMode = logMode
	}
	if override != nil {
		override(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return cfg, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
