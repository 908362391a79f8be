// Package logger provides structured logging for the AdWave adapter
package logger

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log is the global logger instance
var Log zerolog.Logger

type contextKey string

const (
	// RequestIDKey is the context key for the host framework's request ID
	RequestIDKey contextKey = "request_id"
	// PlacementKey is the context key for the placement being loaded or shown
	PlacementKey contextKey = "placement"
)

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	TimeFormat string
}

// DefaultConfig returns the default logger configuration.
// LOG_LEVEL and LOG_FORMAT environment variables override the defaults.
func DefaultConfig() Config {
	return Config{
		Level:      getEnv("LOG_LEVEL", "info"),
		Format:     getEnv("LOG_FORMAT", "json"),
		TimeFormat: time.RFC3339,
	}
}

// getEnv returns the environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Init configures the global logger
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	var base zerolog.Logger
	if cfg.Format == "console" {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: cfg.TimeFormat})
	} else {
		base = zerolog.New(os.Stdout)
	}

	Log = base.Level(level).With().
		Timestamp().
		Str("service", "adwave").
		Logger()
}

func init() {
	Init(DefaultConfig())
}

// WithRequestID stores the host framework's request ID in the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithPlacement stores the placement identifier in the context
func WithPlacement(ctx context.Context, placement string) context.Context {
	return context.WithValue(ctx, PlacementKey, placement)
}

// FromContext returns a logger carrying any IDs stored in the context
func FromContext(ctx context.Context) zerolog.Logger {
	logger := Log

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		logger = logger.With().Str("request_id", requestID).Logger()
	}

	if placement, ok := ctx.Value(PlacementKey).(string); ok && placement != "" {
		logger = logger.With().Str("placement", placement).Logger()
	}

	return logger
}

// Placement returns a logger scoped to one placement and ad format
func Placement(format, placement string) zerolog.Logger {
	return Log.With().
		Str("ad_format", format).
		Str("placement", placement).
		Logger()
}

// Router returns a logger scoped to the callback router
func Router() zerolog.Logger {
	return Log.With().Str("component", "router").Logger()
}

// Partner returns a logger scoped to partner SDK interactions
func Partner() zerolog.Logger {
	return Log.With().Str("component", "partner").Logger()
}

// Telemetry returns a logger scoped to the lifecycle event recorder
func Telemetry() zerolog.Logger {
	return Log.With().Str("component", "telemetry").Logger()
}
