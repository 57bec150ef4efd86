package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cmena/presente/internal/academic"
	"github.com/cmena/presente/internal/attendance"
	"github.com/cmena/presente/internal/camera"
	"github.com/cmena/presente/internal/config"
	"github.com/cmena/presente/internal/database/postgres"
	"github.com/cmena/presente/internal/gallery"
	"github.com/cmena/presente/internal/matcher"
	"github.com/cmena/presente/internal/recognizer"
	"github.com/cmena/presente/internal/vision"
	"github.com/cmena/presente/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance server",
	Long: `Start the camera worker and the web server.
The worker matches faces against enrolled students and registers
attendance; the HTTP API serves the live video, status and the
enrollment flow.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// newLogger builds the process logger, honoring LOG_LEVEL (debug, info,
// warn, error).
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (string, int) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return host, port
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := newLogger()
	slog.SetDefault(logger)

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	store, err := postgres.Initialize(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer store.Close()

	gal := gallery.New(store)
	if err := gal.Reload(ctx); err != nil {
		logger.Warn("initial gallery load failed, starting empty", "error", err)
	} else {
		logger.Info("gallery loaded", "entries", gal.Size())
	}

	visionClient := vision.NewClient(cfg.FaceService.URL)
	resolver := academic.NewResolver(store)
	recorder := attendance.NewRecorder(store, resolver, cfg.Recognition.Cooldown, logger)
	enroller := recognizer.NewEnroller(visionClient, store, logger)
	cam := camera.New(cfg.Camera.Indices, cfg.Camera.Width, cfg.Camera.Height, logger)

	worker := recognizer.NewWorker(
		cam,
		matcher.New(visionClient, cfg.Recognition.Tolerance, cfg.Recognition.ConfidenceFloor),
		gal,
		recorder,
		enroller,
		recognizer.Config{
			FrameInterval: cfg.Recognition.FrameInterval,
			LoopDelay:     cfg.Recognition.LoopDelay,
		},
		logger,
	)

	if err := worker.Start(); err != nil {
		// The API still serves status and stored data without a camera.
		logger.Error("recognition worker not started", "error", err)
	}
	defer worker.Stop()

	host, port := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, host, port, worker, store, resolver, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		logger.Info("received signal, shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
