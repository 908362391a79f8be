// Package main is the entry point for the AdWave adapter harness, a local
// HTTP driver for exercising the adapter against a demand endpoint.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thenexusengine/tne_adwave/pkg/logger"
)

func main() {
	// Parse configuration from flags and environment
	cfg := ParseConfig()

	// Initialize structured logger
	logger.Init(logger.DefaultConfig())
	log := logger.Log

	// Create harness
	harness, err := NewHarness(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create harness")
	}

	// Start harness in goroutine
	go func() {
		if err := harness.Start(); err != nil {
			log.Fatal().Err(err).Msg("Harness error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := harness.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Harness forced to shutdown")
	}
}
