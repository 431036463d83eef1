package logger

import (
	"context"

	"github.com/revstrux/revstrux/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewFromConfig assembles the service logger from application config.
func NewFromConfig(appCfg config.Config) (*zap.Logger, error) {
	return New(Options{
		Level:    appCfg.Logger.Level,
		Encoding: appCfg.Logger.Encoding,
		Service:  appCfg.AppName,
		Version:  appCfg.AppVersion,
	})
}

func registerHooks(lc fx.Lifecycle, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
}

// Module wires the global zap logger for the application.
var Module = fx.Module("logger",
	fx.Provide(NewFromConfig),
	fx.Invoke(registerHooks),
)
