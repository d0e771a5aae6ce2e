// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence. Kestrel stores
// screened transactions (the source of recent history for later calls),
// ruleset documents, and screening results. All methods require tenantID
// for strict multi-tenancy isolation.
type Repository interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, tenantID string, tx *Transaction) error
	GetTransaction(ctx context.Context, tenantID string, txID string) (*Transaction, error)
	GetCustomerTransactions(ctx context.Context, tenantID string, customerID string, since time.Time) ([]Transaction, error)

	// Ruleset documents. One active document per tenant; the global
	// tenant "*" applies to everyone without an override.
	SaveRuleset(ctx context.Context, tenantID string, rs *Ruleset) error
	GetRuleset(ctx context.Context, tenantID string) (*Ruleset, error)

	// Screening results
	SaveScreening(ctx context.Context, tenantID string, s *Screening) error
	GetScreening(ctx context.Context, tenantID string, screeningID string) (*Screening, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
