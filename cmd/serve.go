package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-recognition/internal/analytics"
	"github.com/kozaktomas/face-recognition/internal/constants"
	"github.com/kozaktomas/face-recognition/internal/enrollment"
	"github.com/kozaktomas/face-recognition/internal/geometry"
	"github.com/kozaktomas/face-recognition/internal/matcher"
	"github.com/kozaktomas/face-recognition/internal/pipeline"
	"github.com/kozaktomas/face-recognition/internal/quality"
	"github.com/kozaktomas/face-recognition/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Recognition web server.
The server exposes the REST API and the /ws WebSocket channel used by the
camera UI for live recognition, guided enrollment and analytics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 5001, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
// WEB_PORT and WEB_HOST override the flags.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	cfg.Server.Port, cfg.Server.Host = resolveServeHostPort(cmd)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	profiles, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	logger.WithField("profiles", profiles.Count()).Info("profiles loaded")

	geo := geometry.NewClient(cfg.Geometry.URL)
	aggregator := analytics.New(cfg.Analytics.RetentionSeconds)
	m := matcher.New(profiles, cfg.Recognition.MatchThreshold)

	server := web.NewServer(cfg, web.Deps{
		Store: profiles,
		Enrollment: enrollment.NewManager(geo, profiles, quality.New(cfg.Quality), cfg.Enrollment.Poses,
			logger.WithField("component", "enrollment")),
		Pipeline:  pipeline.New(geo, m, aggregator, cfg.Recognition, logger.WithField("component", "pipeline")),
		Analytics: aggregator,
	}, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("error during shutdown")
		}
	}()

	fmt.Printf("Starting Face Recognition on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("Face geometry service: %s\n", cfg.Geometry.URL)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
