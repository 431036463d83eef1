package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options control how the process logger is assembled.
type Options struct {
	Level    string
	Encoding string
	Service  string
	Version  string
}

// New builds the process-wide zap.Logger and installs it as the global.
// Level accepts debug, info, warn and error; encoding accepts json and
// console.
func New(opts Options) (*zap.Logger, error) {
	level := zap.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	encoding := opts.Encoding
	if encoding == "" {
		encoding = "json"
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         encoding,
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if opts.Service != "" {
		logger = logger.With(
			zap.String("service", opts.Service),
			zap.String("version", opts.Version),
		)
	}

	zap.ReplaceGlobals(logger)
	return logger, nil
}
