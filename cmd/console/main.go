// cmd/console/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"iot-console/internal/alerting"
	"iot-console/internal/anomaly"
	"iot-console/internal/api"
	"iot-console/internal/auth"
	"iot-console/internal/config"
	"iot-console/internal/health"
	"iot-console/internal/logging"
	"iot-console/internal/storage"
	"iot-console/internal/telemetry"
	"iot-console/internal/websocket"
)

const (
	alertLogSize    = 200
	shutdownTimeout = 10 * time.Second
)

func main() {
	// --- Configuration ---
	configPath := flag.String("config", ".", "Path to the configuration file directory")
	webDir := flag.String("webdir", "./web", "Path to the web assets directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Error loading config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *webDir, logger); err != nil {
		logger.Error("Console stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Console gracefully stopped")
}

func run(ctx context.Context, cfg *config.Config, webDir string, logger *slog.Logger) error {
	// --- Initialize Components ---
	hub := websocket.NewHub(logger)
	formatter := health.NewFormatter(cfg.Health.Locale)
	detector := anomaly.NewDetector(cfg.Anomaly.Rules)
	alerter := alerting.NewAlerter(hub, storage.NewAlertLog(alertLogSize), detector, logger)
	feed := api.NewFeed(hub, alerter, formatter)

	commands := telemetry.NewCommandClient(cfg.Generator, nil)
	console := telemetry.NewConsole(storage.NewReadingStore(), commands, logger, feed)
	poller := health.NewPoller(cfg.Health, nil, logger, feed)

	var source telemetry.Source
	switch cfg.Telemetry.Source {
	case "kafka":
		source = telemetry.NewKafkaSource(cfg.Telemetry.Kafka, logger)
	default:
		source = telemetry.NewStreamSource(cfg.Telemetry, logger)
	}

	apiHandler, err := api.NewAPIHandler(api.Deps{
		Console:   console,
		Poller:    poller,
		Formatter: formatter,
		Alerter:   alerter,
		Hub:       hub,
		Auth:      auth.NewAuthManager(cfg.Auth),
		Logger:    logger,
	}, webDir)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	// --- Background loops ---
	go hub.Run(ctx)
	go poller.Run(ctx)
	go func() {
		if err := source.Run(ctx, console); err != nil {
			logger.Error("Telemetry source stopped", "source", cfg.Telemetry.Source, "error", err)
		}
	}()

	// --- HTTP Server ---
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.SetupRouter(apiHandler),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting console server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	// --- Graceful Shutdown ---
	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
