package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atelier/internal/config"
	"atelier/internal/logging"
	"atelier/internal/services"
)

func main() {
	// 0. Parse Command Line Flags
	host := flag.String("host", "", "Listen host (overrides server.host)")
	flag.Parse()

	// 1. Load Configuration
	cfg := config.LoadConfig()
	if err := logging.Initialize(cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer func() { _ = logging.Shutdown() }()

	slog.Info("Starting Atelier...",
		"backend", cfg.Storage.Backend,
		"pubsub", cfg.PubSub.Provider,
		"views", len(cfg.Views),
		"admin", cfg.Auth.AdminEnabled(),
	)

	// 2. Initialize Service Manager
	mgr := services.NewManager(cfg, services.Options{ListenHost: *host})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := mgr.Init(ctx); err != nil {
		slog.Error("Failed to initialize services", "error", err)
		mgr.Shutdown(context.Background())
		os.Exit(1)
	}

	// 3. Start Services
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	if err := mgr.Start(bgCtx); err != nil {
		slog.Error("Failed to start services", "error", err)
		mgr.Shutdown(context.Background())
		os.Exit(1)
	}

	// 4. Wait for Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	exitCode := 0
	select {
	case sig := <-quit:
		slog.Info("Shutting down services...", "signal", sig.String())
	case err := <-mgr.Errors():
		slog.Error("Service failed, shutting down", "error", err)
		exitCode = 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	bgCancel()
	mgr.Shutdown(shutdownCtx)

	slog.Info("All services stopped.")
	if exitCode != 0 {
		_ = logging.Shutdown()
		os.Exit(exitCode)
	}
}
