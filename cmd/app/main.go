package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"vend_go/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Background artwork sync
	go bootstrap.SyncArtwork(ctx)

	// 5. Event feed server for external indexers
	mux := http.NewServeMux()
	mux.Handle("/events", bootstrap.Feed)
	srv := &http.Server{
		Addr:    bootstrap.Config.Feed.Addr,
		Handler: mux,
	}
	go func() {
		slog.Info("Event feed listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Feed server failed", slog.Any("error", err))
		}
	}()

	slog.InfoContext(ctx, "VendGo operational",
		slog.Int("listed", bootstrap.Engine.Count()),
		slog.String("price", bootstrap.Engine.Price().String()))

	// Wait for shutdown signal
	<-ctx.Done()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Feed server shutdown failed", slog.Any("error", err))
	}
	bootstrap.Feed.Close()

	// Post-mortem snapshot of engine state
	bootstrap.Engine.DumpState(filepath.Join("logs", "state_dump.json"))
}
