// Package main is the entry point for the pass-through relay.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/playground-ai/agent-platform/internal/config"
	"github.com/playground-ai/agent-platform/internal/relay"
	"github.com/playground-ai/agent-platform/pkg/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	rl, err := relay.New(cfg.UpstreamURL, log)
	if err != nil {
		log.Error("invalid upstream URL", "url", cfg.UpstreamURL, "error", err)
		os.Exit(1)
	}

	// No write timeout: the relay carries streams that outlive any sane
	// deadline.
	server := &http.Server{
		Addr:        ":" + cfg.RelayPort,
		Handler:     rl,
		ReadTimeout: cfg.ServerReadTimeout,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Info("relay listening", "port", cfg.RelayPort, "upstream", cfg.UpstreamURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("relay error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down relay")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("relay forced to shutdown", "error", err)
	}
}
