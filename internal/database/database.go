// Package database opens the backing store and applies the schema.
package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"public-eye-service/config"

	"github.com/avast/retry-go"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/postgres.sql
var postgresSchema string

//go:embed migrations/sqlite.sql
var sqliteSchema string

const (
	connectAttempts = 5
	connectDelay    = 1 * time.Second
)

// Open connects to the configured database and waits for it to answer,
// retrying with backoff while it starts up.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == config.DriverSQLite {
		// SQLite allows one writer; a single connection makes every
		// transaction serialize instead of failing with SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	err = retry.Do(
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return db.PingContext(ctx)
		},
		retry.Attempts(connectAttempts),
		retry.Delay(connectDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("database: ping failed, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	return db, nil
}

// Migrate applies the schema for driver. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var schema string
	switch driver {
	case config.DriverPostgres:
		schema = postgresSchema
	case config.DriverSQLite:
		schema = sqliteSchema
	default:
		return fmt.Errorf("no schema for driver %q", driver)
	}

	for _, stmt := range splitStatements(schema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w (statement: %.60s)", err, stmt)
		}
	}
	return nil
}

func splitStatements(schema string) []string {
	var stmts []string
	for _, s := range strings.Split(schema, ";") {
		if s = strings.TrimSpace(s); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
