package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-recognition/internal/config"
	"github.com/kozaktomas/face-recognition/internal/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "face-recognition",
	Short: "Live face recognition, enrollment and analytics service",
	Long: `Face Recognition matches faces in a live camera stream against a small set
of enrolled profiles. It serves a REST API and a WebSocket channel for the
camera UI, guides new users through pose-by-pose enrollment and keeps
rolling session analytics.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads the environment configuration and applies global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// setupLogger builds the logger and installs it as the package default.
func setupLogger(cfg *config.Config) (*logrus.Logger, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logger)
	return logger, nil
}
