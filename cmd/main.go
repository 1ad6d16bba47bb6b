/*
Package main is the entry point for the bitcollab collaboration server.

It loads configuration, initializes the global logging system, wires the
room store, session registry and broadcast coordinator together, starts the
HTTP server, and handles operating system interrupt signals (SIGINT,
SIGTERM) for a graceful shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bitcollab/internal/app/collab"
	"bitcollab/internal/app/room"
	"bitcollab/internal/app/session"
	"bitcollab/internal/configs"
	"bitcollab/internal/handler"
	"bitcollab/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("postgres_store", cfg.DatabaseDSN != "").
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Room store: postgres when a DSN is configured, in-memory otherwise
	// (development only; configs enforces the DSN elsewhere).
	var store room.Store
	if cfg.DatabaseDSN != "" {
		pool, err := room.NewPool(cfg.DatabaseDSN)
		if err != nil {
			logx.Fatal(err, "Failed to connect to room store database")
		}
		store = room.NewPostgresStore(pool)
	} else {
		logx.Warn("DATABASE_URL not set. Using in-memory room store.")
		store = room.NewMemoryStore()
	}
	defer store.Close()

	// The session registry lives and dies with the process.
	registry := session.NewRegistry()

	coordinator := collab.NewCoordinator(store, registry)

	// Setup HTTP server and routes
	router := handler.Router(&handler.AppDeps{
		Coordinator: coordinator,
		Store:       store,
		Config:      cfg,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("bitcollab server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	logx.Info("Server gracefully stopped.")
}
