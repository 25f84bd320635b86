// Package monitoring records errors, performance timings, and API-usage
// metrics as structured log events. Writes are best-effort: a failing sink
// must never propagate an error into the pipeline it observes.
package monitoring

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds sink configuration.
type Config struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultConfig returns the default sink configuration.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Console:    true,
		File:       false,
		FilePath:   "./data/stokalert.log",
		MaxSizeMB:  100,
		MaxBackups: 7,
		MaxAgeDays: 30,
	}
}

// APIUsage is one accounting record for a real or attempted upstream call.
// Exactly one record is emitted per call, success or failure, so quota and
// cost accounting stay accurate.
type APIUsage struct {
	ID           string
	Provider     string
	Endpoint     string
	ResponseTime time.Duration
	StatusCode   int
	QuotaCost    decimal.Decimal
	Timestamp    time.Time
}

// Sink writes structured observability records.
type Sink struct {
	log zerolog.Logger
}

// New creates a sink writing to the console and, when enabled, a rotating
// file. Unwritable file destinations degrade to console-only.
func New(cfg Config) *Sink {
	var writers []io.Writer

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}

	if cfg.File && cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				Compress:   true,
			})
		}
	}

	var w io.Writer
	switch len(writers) {
	case 0:
		w = os.Stderr
	case 1:
		w = writers[0]
	default:
		w = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(w).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
	return &Sink{log: logger}
}

// NewNop returns a sink that discards everything. Intended for tests.
func NewNop() *Sink {
	return &Sink{log: zerolog.Nop()}
}

// NewWithWriter returns a sink writing JSON records to w. Intended for tests
// that assert on emitted records.
func NewWithWriter(w io.Writer) *Sink {
	return &Sink{log: zerolog.New(w).With().Timestamp().Logger()}
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger exposes the underlying logger for general service logging.
func (s *Sink) Logger() zerolog.Logger {
	return s.log
}

// LogError records an error with service/operation/symbol context.
func (s *Sink) LogError(service, operation, symbol string, err error) {
	s.log.Error().
		Str("record", "error").
		Str("service", service).
		Str("operation", operation).
		Str("symbol", symbol).
		Err(err).
		Msg("operation failed")
}

// LogPerformance records the elapsed time of one operation.
func (s *Sink) LogPerformance(component, operation string, elapsed time.Duration) {
	s.log.Info().
		Str("record", "performance").
		Str("component", component).
		Str("operation", operation).
		Dur("elapsed", elapsed).
		Msg("operation timed")
}

// LogAPIUsage records one upstream API call for quota and cost accounting.
func (s *Sink) LogAPIUsage(u APIUsage) {
	s.log.Info().
		Str("record", "api_usage").
		Str("id", u.ID).
		Str("provider", u.Provider).
		Str("endpoint", u.Endpoint).
		Dur("response_time", u.ResponseTime).
		Int("status_code", u.StatusCode).
		Str("quota_cost", u.QuotaCost.String()).
		Time("timestamp", u.Timestamp).
		Msg("api call accounted")
}

// Timed wraps fn with performance timing reported to the sink. It replaces
// annotation-based timing: any operation can be measured by wrapping its body.
func Timed(s *Sink, component, operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.LogPerformance(component, operation, time.Since(start))
	return err
}
