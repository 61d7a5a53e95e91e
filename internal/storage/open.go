// Package storage selects the relational backend named by DB_DRIVER.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"hotel_pricing/internal/domain"
	"hotel_pricing/internal/shared"
	mysqlrepo "hotel_pricing/internal/storage/mysql"
	"hotel_pricing/internal/storage/postgres"
)

// Open connects the configured backend and applies its schema. The returned
// func releases the connection pool.
func Open(ctx context.Context, cfg shared.Config) (domain.Repository, func(), error) {
	if cfg.DBDriver == "postgres" {
		pool, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info().Str("driver", "postgres").Msg("database connection ok")
		return postgres.NewRepository(pool), pool.Close, nil
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db.Ping: %w", err)
	}
	if err := mysqlrepo.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	log.Info().Str("driver", "mysql").Msg("database connection ok")
	return mysqlrepo.New(db), func() { _ = db.Close() }, nil
}
