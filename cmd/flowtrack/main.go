package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"flowtrack/internal/backend"
	"flowtrack/internal/cli"
	apphttp "flowtrack/internal/http"
	"flowtrack/internal/log"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	loc := cli.Location(logger, cfg)

	backendCfg, err := backend.FromAppConfig(cfg, loc)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).Open(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Store:              res.Store,
		Verifier:           cli.Verifier(logger, cfg),
		Location:           loc,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              res.Ready,
		Logger: log.New(log.Config{
			Level:     log.ParseLevel(cfg.LogLevel),
			Component: log.ComponentHTTP,
			Handler:   logger.Handler(),
		}),
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting flowtrack server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", loc.String(),
		"auth_enabled", !cfg.AuthDisabled)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
