package migration

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/revstrux/revstrux/internal/config"
	sessiondomain "github.com/revstrux/revstrux/internal/session/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if cfg.DBType != "postgres" {
			// sqlite and mysql installs rely on the model schema.
			return conn.AutoMigrate(&sessiondomain.Session{}, &sessiondomain.SessionData{})
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB, log.Named("migration"))
	}),
)
