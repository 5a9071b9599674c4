// Package database opens the in-memory SQLite connection backing the sqlite cache store.
//
// Nothing is written to disk: the database lives as long as the process and is
// discarded on shutdown.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB wraps an in-memory database connection
type DB struct {
	conn *sql.DB
	name string // Database name for logging and the shared-cache URI
}

// Config holds database configuration
type Config struct {
	Name string // Friendly name, also used as the in-memory database name
}

// New opens a named in-memory database.
func New(cfg Config) (*DB, error) {
	if cfg.Name == "" {
		cfg.Name = "macrolens"
	}

	conn, err := sql.Open("sqlite", buildConnectionString(cfg.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}

	configureConnectionPool(conn)

	// Test connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{conn: conn, name: cfg.Name}, nil
}

// buildConnectionString creates the shared-cache memory URI with cache-friendly PRAGMAs
func buildConnectionString(name string) string {
	var b strings.Builder
	b.WriteString("file:")
	b.WriteString(name)
	b.WriteString("?mode=memory&cache=shared")
	b.WriteString("&_pragma=synchronous(OFF)")   // nothing to fsync
	b.WriteString("&_pragma=temp_store(MEMORY)") // Temp tables in RAM
	b.WriteString("&_pragma=busy_timeout(5000)")
	return b.String()
}

// configureConnectionPool keeps exactly one connection open.
// An in-memory database disappears when its last connection closes.
func configureConnectionPool(conn *sql.DB) {
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)
	conn.SetConnMaxIdleTime(0)
}

// Close closes the database connection, discarding its contents
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying *sql.DB
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Name returns the database name
func (db *DB) Name() string {
	return db.name
}

// QuickCheck performs a quick health check (just ping, no integrity check)
func (db *DB) QuickCheck(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// HealthCheck pings the database and runs an integrity check
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed for %s: %w", db.name, err)
	}

	var integrityResult string
	err := db.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrityResult)
	if err != nil {
		return fmt.Errorf("integrity check query failed for %s: %w", db.name, err)
	}

	if integrityResult != "ok" {
		return fmt.Errorf("integrity check failed for %s: %s", db.name, integrityResult)
	}

	return nil
}
