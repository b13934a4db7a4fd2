package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/rss-funnel/app/api"
	"github.com/lysyi3m/rss-funnel/app/cfg"
	"github.com/lysyi3m/rss-funnel/app/config"
	"github.com/lysyi3m/rss-funnel/app/endpoint"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	setupLogger(appCfg.Debug)
	slog.Info("Starting rss-funnel", "version", appCfg.Version)

	var base *url.URL
	if appCfg.BaseUrl != "" {
		base, err = url.Parse(appCfg.BaseUrl)
		if err != nil {
			slog.Error("Invalid base url", "url", appCfg.BaseUrl, "error", err)
			os.Exit(1)
		}
	}

	registry := endpoint.NewRegistry()
	reload := func() error {
		loaded, err := config.Load(appCfg.ConfigFile)
		if err != nil {
			return err
		}
		return registry.Update(loaded.Endpoints)
	}

	slog.Info("Loading configuration", "file", appCfg.ConfigFile)
	loaded, err := config.Load(appCfg.ConfigFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := registry.Update(loaded.Endpoints); err != nil {
		slog.Error("Failed to build endpoints", "error", err)
		os.Exit(1)
	}
	slog.Info("Endpoints in service", "paths", registry.Paths())

	handler := api.NewHandler(registry, base, reload)
	server := api.NewServer(handler, loaded.Auth)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	slog.Info("Shutdown complete")
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}
