package main

import (
	"flag"
	"os"
	"time"

	"github.com/thenexusengine/tne_adwave/internal/adwave/demand"
)

// HarnessConfig holds all harness configuration
type HarnessConfig struct {
	// Server
	Port    string
	Timeout time.Duration

	// Partner
	AppKey string
	Demand demand.Config
}

// ParseConfig parses configuration from flags and environment variables
func ParseConfig() *HarnessConfig {
	// Parse flags with environment variable fallbacks
	port := flag.String("port", getEnvOrDefault("HARNESS_PORT", "8000"), "Harness port")
	appKey := flag.String("app-key", os.Getenv("ADWAVE_APP_KEY"), "AdWave app key")
	timeout := flag.Duration("timeout", 10*time.Second, "Load and show timeout")
	flag.Parse()

	return &HarnessConfig{
		Port:    *port,
		Timeout: *timeout,
		AppKey:  *appKey,
		Demand:  demand.DefaultConfig(),
	}
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
