// Package logger provides structured logging for Perfect Connect on top of zerolog.
// It supports log levels, JSON or console output, and context propagation
// of loggers and correlation IDs.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options configures the logger.
type Options struct {
	// Level is the minimum level: trace, debug, info, warn, error, fatal, disabled.
	Level string

	// Format is json or console.
	Format string

	// AddCaller includes file:line of the call site.
	AddCaller bool

	// Output defaults to os.Stdout.
	Output io.Writer

	// Service is attached to every entry as "service" when set.
	Service string
}

// DefaultOptions returns sensible defaults for the logger.
func DefaultOptions() Options {
	return Options{
		Level:  "info",
		Format: "json",
		Output: os.Stdout,
	}
}

// New creates a new zerolog.Logger with the given options.
func New(opts Options) zerolog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.MessageFieldName = "message"

	out := opts.Output
	if strings.EqualFold(opts.Format, "console") {
		out = zerolog.ConsoleWriter{Out: opts.Output, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	if opts.AddCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// Default creates a logger with default options.
func Default() zerolog.Logger {
	return New(DefaultOptions())
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// ParseLevel parses a string into a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Context keys.
type ctxKey int

const (
	loggerKey ctxKey = iota
	correlationIDKey
)

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext retrieves the logger from context, or returns a default logger.
// The correlation ID, when present, is added as a field.
func FromContext(ctx context.Context) zerolog.Logger {
	l, ok := ctx.Value(loggerKey).(zerolog.Logger)
	if !ok {
		l = Default()
	}
	if id := CorrelationID(ctx); id != "" {
		l = l.With().Str(CorrelationIDKey, id).Logger()
	}
	return l
}

// CorrelationIDKey is the field key for request tracing.
const CorrelationIDKey = "correlation_id"

// NewCorrelationID creates a short correlation ID.
func NewCorrelationID() string {
	return uuid.New().String()[:8]
}

// WithCorrelationID stores a correlation ID in the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID returns the correlation ID from context or "".
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// Component returns a child logger tagged with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
