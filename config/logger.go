package config

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var globalLogger *zap.Logger

// InitLogger builds a Zap logger at the given level. format "json" selects
// the production encoder; anything else keeps the development console output.
func InitLogger(logLevelStr string, format string) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	if strings.EqualFold(format, "json") {
		config = zap.NewProductionConfig()
	}

	config.Level = zap.NewAtomicLevelAt(parseLevel(logLevelStr))

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	// Store for cleanup purposes
	globalLogger = logger

	return logger, nil
}

func parseLevel(logLevelStr string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(logLevelStr)) {
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

// Cleanup flushes any buffered log entries
func Cleanup() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}
