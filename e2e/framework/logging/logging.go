package logging

import (
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/informasjonsforvaltning/fdk-fuseki-service/e2e/framework/config"
)

// NewLogger builds a zap logger based on runner config.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if strings.EqualFold(cfg.LogFormat, "console") {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(Level(cfg.LogLevel))

	return zapCfg.Build()
}

// Level maps a config level name to a zap level, defaulting to info.
func Level(name string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// Logr bridges a zap logger to the logr interface used by the store clients.
// At debug level, verbosity 1 and 2 (per-attempt and per-request logs) are enabled.
func Logr(logger *zap.Logger) logr.Logger {
	return zapr.NewLogger(logger)
}
