package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xfoli-web/internal/app"
	"xfoli-web/internal/config"
	"xfoli-web/internal/logger"
	"xfoli-web/internal/telemetry"
)

const serviceName = "xfoli-web"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info", false)
		logger.Fatal("invalid configuration", map[string]any{
			"error": err.Error(),
		})
	}
	logger.Init(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to initialize tracing", map[string]any{
			"error": err.Error(),
		})
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize app", map[string]any{
			"error": err.Error(),
		})
	}

	go func() {
		if err := application.Run(); err != nil {
			logger.Fatal("http server failed", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	logger.Info("xfoli-web started", map[string]any{
		"port": cfg.AppPort,
		"env":  cfg.Env,
	})

	<-ctx.Done() // wait for Ctrl+C

	logger.Info("shutdown signal received", nil)

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", map[string]any{
			"error": err.Error(),
		})
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracer shutdown failed", map[string]any{
			"error": err.Error(),
		})
	}

	logger.Info("xfoli-web stopped cleanly", nil)
}
