// Package logging builds the process logger and lets admins change its
// level at runtime.
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every log line.
const ServiceName = "level-funnel"

// Levels lists the levels an admin may switch to. Panic and fatal are
// excluded since setting them would silence error reporting.
var Levels = []string{"debug", "info", "warn", "error"}

// Logger wraps zap.Logger with runtime level adjustment.
type Logger struct {
	*zap.Logger
	level       zap.AtomicLevel
	mu          *sync.Mutex
	environment string
}

// Config holds configuration for logger initialization.
type Config struct {
	// Level is the initial log level (debug, info, warn, error)
	Level string
	// Format is the output format (json, console)
	Format string
	// Environment is the deployment environment (development, production)
	Environment string
}

// New creates a Logger writing to stderr.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = &Config{Level: "info", Format: "json", Environment: "development"}
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	atomicLevel := zap.NewAtomicLevelAt(level)

	var encoderConfig zapcore.EncoderConfig
	if cfg.Environment == "production" {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	opts := []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service", ServiceName)),
	}
	if cfg.Environment == "development" {
		opts = append(opts, zap.Development())
	}

	return &Logger{
		Logger:      zap.New(zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), atomicLevel), opts...),
		level:       atomicLevel,
		mu:          &sync.Mutex{},
		environment: cfg.Environment,
	}, nil
}

// ParseLevel parses one of Levels. "warning" is accepted for warn.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown level %q (valid: %s)", level, strings.Join(Levels, ", "))
	}
}

// SetLevel changes the log level of this logger and every child.
func (l *Logger) SetLevel(level string) error {
	parsed, err := ParseLevel(level)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	previous := l.level.Level()
	l.level.SetLevel(parsed)
	l.Logger.Info("log level changed",
		zap.Stringer("previous_level", previous),
		zap.Stringer("new_level", parsed),
	)
	return nil
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() string {
	return l.level.Level().String()
}

// Named returns a named child logger sharing the level.
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		Logger:      l.Logger.Named(name),
		level:       l.level,
		mu:          l.mu,
		environment: l.environment,
	}
}

// Zap returns the underlying zap.Logger.
func (l *Logger) Zap() *zap.Logger {
	return l.Logger
}

// Environment returns the deployment environment the logger was built for.
func (l *Logger) Environment() string {
	return l.environment
}
