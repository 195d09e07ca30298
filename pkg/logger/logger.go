// Package logger holds the process-wide structured logger.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names. Use these instead of raw strings.
const (
	FieldComponent    = "component"
	FieldChapter      = "chapter"
	FieldCount        = "count"
	FieldFactID       = "fact_id"
	FieldExistingID   = "existing_id"
	FieldCanonicalKey = "canonical_key"
	FieldAction       = "action"
	FieldScore        = "score"
	FieldPath         = "path"
	FieldBackend      = "backend"
	FieldError        = "error"
)

var (
	// Logger is the global logger. It is a no-op until Initialize is called.
	Logger *zap.SugaredLogger
	// JSONOutput records whether Initialize chose the JSON encoder.
	JSONOutput bool
)

func init() {
	Logger = zap.NewNop().Sugar()
}

// Initialize replaces the global logger. level is one of debug, info, warn,
// error; unknown values fall back to info.
func Initialize(level string, jsonOutput bool) error {
	JSONOutput = jsonOutput

	lvl := zap.NewAtomicLevelAt(parseLevel(level))

	var cfg zap.Config
	if jsonOutput {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	}
	cfg.Level = lvl
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	zapLogger, err := cfg.Build()
	if err != nil {
		return err
	}
	Logger = zapLogger.Sugar()
	return nil
}

// Named returns a child logger tagged with a component name.
func Named(component string) *zap.SugaredLogger {
	return Logger.With(FieldComponent, component)
}

// Cleanup flushes buffered entries.
func Cleanup() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
