package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akmmp241/catalog-gateway/shared"
)

func main() {
	shared.InitLogger(os.Getenv("LOG_LEVEL"))

	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthcheck())
	}

	cfg, err := LoadConfig(shared.NewValidator())
	if err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}
	shared.InitLogger(cfg.LogLevel)

	app, err := NewAppServer(context.Background(), cfg)
	if err != nil {
		slog.Error("Error occurred while starting Catalog Gateway", "err", err)
		os.Exit(1)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- app.Run() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		slog.Info("Shutting down Catalog Gateway", "signal", sig.String())
	case err := <-serveErr:
		slog.Error("HTTP server stopped", "err", err)
		exitCode = 1
	}

	if err := app.Shutdown(); err != nil {
		slog.Error("Error occurred during shutdown", "err", err)
		exitCode = 1
	}
	os.Exit(exitCode)
}

func runHealthcheck() int {
	port := os.Getenv("GRPC_PORT")
	if port == "" {
		port = "5001"
	}

	err := probeHealth(context.Background(), "127.0.0.1:"+port, 3*time.Second)
	if err != nil {
		slog.Error("Healthcheck failed", "port", port, "err", err)
		return 1
	}
	return 0
}
