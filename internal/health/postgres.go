package health

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresChecker verifies database connectivity over its own connection,
// independent of the repository pool
type PostgresChecker struct {
	db *sql.DB
}

// NewPostgresChecker opens a health-check connection for the given DSN
func NewPostgresChecker(dsn string) (*PostgresChecker, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	// Keep the health path lightweight
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresChecker{db: db}, nil
}

// Name returns the dependency name
func (c *PostgresChecker) Name() string {
	return "postgres"
}

// Check verifies PostgreSQL connectivity
func (c *PostgresChecker) Check(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the health-check connection
func (c *PostgresChecker) Close() error {
	return c.db.Close()
}
