package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	maxOpenConns    = 20
	maxIdleConns    = 10
	connMaxLifetime = 30 * time.Minute
	connMaxIdleTime = 5 * time.Minute
	connectTimeout  = 10 * time.Second
)

//go:embed schema.sql
var schemaSQL string

// NewPostgresConnection opens the connection pool and waits up to
// connectTimeout for the first successful ping.
func NewPostgresConnection(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	configurePool(db)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if _, err := Health(pingCtx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Every transition holds one connection for the length of its transaction,
// so the pool bounds how many run at once.
func configurePool(db *sql.DB) {
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)
}

// ApplySchema creates the rental tables, constraints and indexes if they do not exist.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Health pings the database and reports the round trip.
func Health(ctx context.Context, db *sql.DB) (time.Duration, error) {
	start := time.Now()
	if err := db.PingContext(ctx); err != nil {
		return 0, fmt.Errorf("database ping failed: %w", err)
	}
	return time.Since(start), nil
}
