// Package dbclient connects to the survey database and the report catalog
// described by a DatabaseConnection.
package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reports/internal/domain"
	"reports/internal/storage"
)

// Open connects to a SQL database and verifies it with a ping. SQLite files
// are created on first use with the survey schema; for MySQL and Postgres
// the schema must already exist. The password comes from a SecretStore.
func Open(ctx context.Context, conn *domain.DatabaseConnection, password string) (*storage.DB, error) {
	if err := conn.Validate(); err != nil {
		return nil, err
	}

	var driverName, dsn string
	switch conn.Driver {
	case domain.DatabaseDriverSQLite:
		return storage.New(conn.Host)
	case domain.DatabaseDriverMySQL:
		driverName, dsn = "mysql", buildMySQLDSN(conn, password)
	case domain.DatabaseDriverPostgres:
		driverName, dsn = "postgres", buildPostgresDSN(conn, password)
	default:
		return nil, fmt.Errorf("unsupported sql driver: %s", conn.Driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}
	return storage.Wrap(db, conn.Driver), nil
}
