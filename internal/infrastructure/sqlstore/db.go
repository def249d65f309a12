// Package sqlstore persists profiles in a relational database through sqlx.
// PostgreSQL (lib/pq) and SQLite (modernc) are supported.
package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to dsn using driver and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}
	if driver == DriverSQLite {
		// single writer; also keeps ":memory:" databases on one connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", driver, err)
	}
	return db, nil
}

const profilesDDL = `
CREATE TABLE IF NOT EXISTS profiles (
  id TEXT PRIMARY KEY,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  phone_number TEXT NOT NULL DEFAULT '',
  pin_hash TEXT NOT NULL DEFAULT '',
  risk_tolerance TEXT NOT NULL DEFAULT '',
  exchange_api_key TEXT NOT NULL DEFAULT '',
  onboarding_completed BOOLEAN NOT NULL DEFAULT false,
  created_at %[1]s NOT NULL,
  updated_at %[1]s NOT NULL
)`

// EnsureTable creates the profiles table if not exists (idempotent).
// Prefer migrations in production.
func EnsureTable(ctx context.Context, db *sqlx.DB) error {
	tsType := "TIMESTAMP"
	if db.DriverName() == DriverPostgres {
		tsType = "TIMESTAMPTZ"
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(profilesDDL, tsType)); err != nil {
		return fmt.Errorf("ensure profiles table: %w", err)
	}
	return nil
}
