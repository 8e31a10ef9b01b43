package main

import (
	"context"

	"github.com/DEEKSHA240406/stress-management-sub001/internal/config"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/database"
	"github.com/rs/zerolog/log"
)

func runMigrate(ctx context.Context, envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err := database.NewSQLite(ctx, cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.Migrate(ctx, db, database.DialectSQLite); err != nil {
			return err
		}
	case config.DriverPostgres:
		pool, err := database.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := database.MigratePostgres(ctx, pool); err != nil {
			return err
		}
	default:
		log.Info().Str("driver", cfg.StoreDriver).Msg("Store has no schema, nothing to migrate")
		return nil
	}

	log.Info().Str("driver", cfg.StoreDriver).Msg("Migrations applied")
	return nil
}
