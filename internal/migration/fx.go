package migration

import (
	"github.com/smallbiznis/filmbilling/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(run),
)

// run migrates postgres only; sqlite and mysql deployments bring their own schema.
func run(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	log = log.Named("migration")
	if cfg.DBType != "postgres" {
		log.Warn("skipping migrations for non-postgres database", zap.String("type", cfg.DBType))
		return nil
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	_, err = RunMigrations(sqlDB, log)
	return err
}
