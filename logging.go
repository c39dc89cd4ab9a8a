package embedhttp

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// buildLogger returns existing verbatim if non-nil, otherwise a logger
// writing to stderr, or to a lumberjack-rotated file when cfg.LogFile is
// set. Worker-level warnings (slow client, parse failure, drain overflow)
// are logged at Warn; accept/close at Debug; listener errors at Error.
func buildLogger(cfg *Config, existing *zap.Logger) *zap.Logger {
	if existing != nil {
		return existing
	}
	if cfg.LogFile == "" {
		logger, err := zap.NewProduction()
		if err != nil {
			return zap.NewNop()
		}
		return logger
	}

	sink := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(sink),
		zap.InfoLevel,
	)
	return zap.New(core)
}
