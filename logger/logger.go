// Package logger is the process-wide structured logger. It keeps the
// printf-style call sites the handlers were written with while emitting JSON
// through zap.
package logger

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the default logger.
type Options struct {
	Level string
	// File enables size-based rotation through lumberjack when set.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var defaultLogger = zap.NewNop()

func init() {
	l, err := build(Options{Level: "info"})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defaultLogger = l
}

// Init replaces the default logger.
func Init(opts Options) error {
	l, err := build(opts)
	if err != nil {
		return err
	}
	_ = defaultLogger.Sync()
	defaultLogger = l
	return nil
}

// SetLogger replaces the default logger with l. Tests use zap.NewNop or an
// observer core.
func SetLogger(l *zap.Logger) {
	defaultLogger = l
}

func build(opts Options) (*zap.Logger, error) {
	level := parseLevel(opts.Level)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.MessageKey = "message"

	if opts.File == "" {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.EncoderConfig = encoderConfig
		return cfg.Build(zap.AddCallerSkip(1))
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    defaultInt(opts.MaxSizeMB, 100),
		MaxBackups: defaultInt(opts.MaxBackups, 3),
		MaxAge:     defaultInt(opts.MaxAgeDays, 28),
		Compress:   true,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)), nil
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// L returns the underlying zap logger for call sites that log fields.
func L() *zap.Logger {
	return defaultLogger.WithOptions(zap.AddCallerSkip(-1))
}

func Debug(format string, args ...interface{}) {
	defaultLogger.Debug(fmt.Sprintf(format, args...))
}

func Info(format string, args ...interface{}) {
	defaultLogger.Info(fmt.Sprintf(format, args...))
}

func Warn(format string, args ...interface{}) {
	defaultLogger.Warn(fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	defaultLogger.Error(fmt.Sprintf(format, args...))
}

func Fatal(format string, args ...interface{}) {
	defaultLogger.Fatal(fmt.Sprintf(format, args...))
}

// Sync flushes buffered entries.
func Sync() {
	_ = defaultLogger.Sync()
}
