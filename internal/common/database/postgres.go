// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"policy-extraction-workers/internal/common/config"

	_ "github.com/lib/pq"
)

// schemaStatements create the tables written by the store-policy-record worker.
// Each statement is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS policy_records (
		id                 UUID PRIMARY KEY,
		policy_number      VARCHAR(64) NOT NULL,
		endorsement_number VARCHAR(32) NOT NULL DEFAULT '',
		line_of_business   VARCHAR(128) NOT NULL,
		currency_code      CHAR(3) NOT NULL,
		start_date         DATE,
		end_date           DATE,
		commercial_premium NUMERIC(14,2) NOT NULL DEFAULT 0,
		completeness       NUMERIC(5,2) NOT NULL DEFAULT 0,
		requires_review    BOOLEAN NOT NULL DEFAULT FALSE,
		status             VARCHAR(32) NOT NULL,
		source_file_id     VARCHAR(128),
		record             JSONB NOT NULL,
		installments       JSONB,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS policy_records_number_endorsement_idx
		ON policy_records (policy_number, endorsement_number)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id            BIGSERIAL PRIMARY KEY,
		event_type    VARCHAR(64) NOT NULL,
		resource_type VARCHAR(64) NOT NULL,
		resource_id   VARCHAR(128) NOT NULL,
		details       JSONB,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// EnsureSchema creates the policy tables when they are missing. All statements
// run in one transaction.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
