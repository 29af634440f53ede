package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"veil/internal/app"
	"veil/internal/config"
	"veil/internal/secretvote"
	"veil/internal/tally"
	"veil/internal/telemetry"
	httpTransport "veil/internal/transport/http"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Set up logger
	var logger *slog.Logger
	logOpts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, logOpts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, logOpts))
	}

	slog.SetDefault(logger)

	logger.Info("starting veil server",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"version", version,
	)

	shutdownTracing, err := telemetry.Setup(context.Background(), telemetry.Options{
		ServiceName:    "veil",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Enabled:        cfg.TracingEnabled(),
	})
	if err != nil {
		logger.Error("tracing disabled", "error", err)
	} else {
		logger.Info("tracing configured", "enabled", cfg.TracingEnabled(), "endpoint", cfg.Telemetry.Endpoint)
	}

	// Key pair for vote sealing; lives only as long as the process
	keys, err := secretvote.NewKeypair()
	if err != nil {
		logger.Error("failed to generate vote key pair", "error", err)
		os.Exit(1)
	}

	engine := tally.NewEngine(keys, tally.CryptoPicker{}, cfg.Tally.Delay, logger)

	dir := app.NewDirectory(app.DirectoryConfig{
		MaxPlayers:     cfg.Room.MaxPlayers,
		RoomCodeLength: cfg.Room.RoomCodeLength,
		IdleTimeout:    cfg.Room.IdleTimeout,
		SweepInterval:  cfg.Room.SweepInterval,
	}, engine, logger)

	registry := app.NewRegistry(dir, cfg.Room.ReconnectGracePeriod, logger)

	// Create HTTP server
	server := httpTransport.NewServer(cfg, dir, registry, keys.PublicKey(), logger)

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	registry.Close()
	dir.Close()

	if err := shutdownTracing(ctx); err != nil {
		logger.Error("failed to flush traces", "error", err)
	}

	logger.Info("server stopped")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
