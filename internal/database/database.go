// Package database opens the entity store connection and bootstraps its schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ms-resale/internal/config"
	"ms-resale/internal/logger"
	"ms-resale/internal/models"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Tables in creation order.
var Tables = []interface{}{
	(*models.User)(nil),
	(*models.Ticket)(nil),
	(*models.Transaction)(nil),
	(*models.Dispute)(nil),
	(*models.SellerVerification)(nil),
}

// PostgresDSN builds a lib/pq connection string from cfg.
func PostgresDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode)
}

// Connect opens the configured database, retrying the first ping a few times.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	var (
		sqldb *sql.DB
		err   error
	)

	switch cfg.Driver {
	case DriverSQLite:
		sqldb, err = sql.Open(sqliteshim.ShimName, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		sqldb.SetMaxOpenConns(1)
	case DriverPostgres, "":
		sqldb, err = sql.Open("postgres", PostgresDSN(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	const maxRetries = 5
	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to %s (attempt %d/%d)", cfg.Driver, i+1, maxRetries))
		if err = sqldb.PingContext(ctx); err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect: %v", err))
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
	if err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, err)
	}

	if cfg.Driver == DriverSQLite {
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// CreateSchema creates every table that does not exist yet. Postgres
// deployments use the SQL migrations instead; this serves sqlite and tests.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, model := range Tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}
	return nil
}

// NewTestDB opens a private in-memory sqlite database with the schema applied.
func NewTestDB(ctx context.Context) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := CreateSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
