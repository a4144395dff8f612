// Package history records spot occupancy transitions in a SQL database
// (DuckDB file or Postgres) and serves per-spot history queries.
package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/marcboeker/go-duckdb"
)

// Supported drivers.
const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(DriverDuckDB, sqlx.QUESTION)
}

const schema = `
CREATE TABLE IF NOT EXISTS occupancy_events (
	lot_id      VARCHAR NOT NULL,
	spot_id     VARCHAR NOT NULL,
	occupied    BOOLEAN NOT NULL,
	ts          VARCHAR NOT NULL,
	source      VARCHAR NOT NULL,
	recorded_at TIMESTAMP NOT NULL
)`

const index = `CREATE INDEX IF NOT EXISTS idx_events_spot ON occupancy_events(spot_id, recorded_at)`

// Open connects to the history database and creates the schema. For
// DuckDB an empty dsn opens an in-memory database.
func Open(ctx context.Context, driverName, dsn string) (*sqlx.DB, error) {
	var db *sqlx.DB
	switch driverName {
	case DriverDuckDB, "":
		connector, err := duckdb.NewConnector(dsn, func(execer driver.ExecerContext) error {
			for _, pragma := range []string{
				"PRAGMA memory_limit='256MB'",
				"PRAGMA threads=2",
			} {
				if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("history: duckdb connector: %w", err)
		}
		db = sqlx.NewDb(sql.OpenDB(connector), DriverDuckDB)
	case DriverPostgres:
		var err error
		db, err = sqlx.ConnectContext(ctx, DriverPostgres, dsn)
		if err != nil {
			return nil, fmt.Errorf("history: connect postgres: %w", err)
		}
	default:
		return nil, fmt.Errorf("history: unsupported driver %q", driverName)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the events table and its index.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("history: create table: %w", err)
	}
	if _, err := db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("history: create index: %w", err)
	}
	return nil
}
