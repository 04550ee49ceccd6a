package logging

import (
	"strings"

	"github.com/RyanW02/chainsocial/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func Build(cfg config.Config) (*zap.Logger, error) {
	var logCfg zap.Config
	if cfg.Production {
		logCfg = zap.NewProductionConfig()

		if cfg.PrettyLogs {
			logCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
			logCfg.Encoding = "console"
		}
	} else {
		logCfg = zap.NewDevelopmentConfig()
		logCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logCfg.Level = zap.NewAtomicLevelAt(ParseLevel(cfg.LogLevel))

	return logCfg.Build()
}

// ParseLevel falls back to info for unrecognised levels.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "error":
		return zapcore.ErrorLevel
	case "warn":
		return zapcore.WarnLevel
	case "info":
		return zapcore.InfoLevel
	case "debug":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
