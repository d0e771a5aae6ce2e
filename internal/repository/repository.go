// Package repository provides persistent storage for transactions,
// rulesets, and screening results over SQLite or PostgreSQL.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput is returned when required fields are missing.
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository over database/sql.
// The same code path serves both SQLite and PostgreSQL; placeholders
// are rebound per driver.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a repository from the given configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return newSQLite(cfg)
	case "postgres":
		return newPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported repository driver: %s", cfg.Driver)
	}
}

// rebind converts ? placeholders to $1, $2, ... for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
		} else {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func (r *SQLRepository) initSchema() error {
	for _, stmt := range AllSchemas() {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema init: %w", err)
		}
	}
	return nil
}

// SaveTransaction persists a transaction scoped to the tenant.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tenantID string, tx *domain.Transaction) error {
	if tenantID == "" || tx == nil || tx.ID == "" {
		return fmt.Errorf("%w: tenant and transaction id are required", ErrInvalidInput)
	}
	countries, err := json.Marshal(tx.Countries)
	if err != nil {
		return fmt.Errorf("marshal countries: %w", err)
	}
	metadata, err := json.Marshal(tx.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	query := r.rebind(`INSERT INTO transactions
		(id, tenant_id, customer_id, amount, currency, timestamp, created_at, cash, international, crypto, countries, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.db.ExecContext(ctx, query,
		tx.ID, tenantID, tx.CustomerID, tx.Amount, tx.Currency,
		tx.Timestamp.UTC(), createdAt,
		boolToInt(tx.Cash), boolToInt(tx.International), boolToInt(tx.Crypto),
		string(countries), string(metadata))
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a transaction by ID within the tenant.
func (r *SQLRepository) GetTransaction(ctx context.Context, tenantID, txID string) (*domain.Transaction, error) {
	if tenantID == "" || txID == "" {
		return nil, fmt.Errorf("%w: tenant and transaction id are required", ErrInvalidInput)
	}
	query := r.rebind(`SELECT id, tenant_id, customer_id, amount, currency, timestamp, created_at,
		cash, international, crypto, countries, metadata
		FROM transactions WHERE tenant_id = ? AND id = ?`)
	row := r.db.QueryRowContext(ctx, query, tenantID, txID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, txID)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

// GetCustomerTransactions returns a customer's transactions at or after
// the given instant, newest first.
func (r *SQLRepository) GetCustomerTransactions(ctx context.Context, tenantID, customerID string, since time.Time) ([]domain.Transaction, error) {
	if tenantID == "" || customerID == "" {
		return nil, fmt.Errorf("%w: tenant and customer id are required", ErrInvalidInput)
	}
	query := r.rebind(`SELECT id, tenant_id, customer_id, amount, currency, timestamp, created_at,
		cash, international, crypto, countries, metadata
		FROM transactions
		WHERE tenant_id = ? AND customer_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC`)
	rows, err := r.db.QueryContext(ctx, query, tenantID, customerID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query customer transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// SaveRuleset stores the tenant's ruleset as a JSON document, replacing
// any prior version.
func (r *SQLRepository) SaveRuleset(ctx context.Context, tenantID string, rs *domain.Ruleset) error {
	if tenantID == "" || rs == nil {
		return fmt.Errorf("%w: tenant and ruleset are required", ErrInvalidInput)
	}
	doc, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("marshal ruleset: %w", err)
	}
	now := time.Now().UTC()
	createdAt := rs.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	var query string
	if r.driver == "postgres" {
		query = r.rebind(`INSERT INTO rulesets (tenant_id, version, document, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (tenant_id) DO UPDATE SET
				version = EXCLUDED.version,
				document = EXCLUDED.document,
				updated_at = EXCLUDED.updated_at`)
	} else {
		query = `INSERT OR REPLACE INTO rulesets (tenant_id, version, document, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`
	}
	if _, err := r.db.ExecContext(ctx, query, tenantID, rs.Version, string(doc), createdAt, now); err != nil {
		return fmt.Errorf("save ruleset: %w", err)
	}
	return nil
}

// GetRuleset loads the tenant's ruleset.
func (r *SQLRepository) GetRuleset(ctx context.Context, tenantID string) (*domain.Ruleset, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant is required", ErrInvalidInput)
	}
	query := r.rebind(`SELECT document FROM rulesets WHERE tenant_id = ?`)
	var doc string
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: ruleset for tenant %s", ErrNotFound, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("get ruleset: %w", err)
	}
	var rs domain.Ruleset
	if err := json.Unmarshal([]byte(doc), &rs); err != nil {
		return nil, fmt.Errorf("unmarshal ruleset: %w", err)
	}
	return &rs, nil
}

// SaveScreening persists a screening result. The full result is stored
// as a JSON document alongside indexed columns for querying.
func (r *SQLRepository) SaveScreening(ctx context.Context, tenantID string, s *domain.Screening) error {
	if tenantID == "" || s == nil || s.ID == "" {
		return fmt.Errorf("%w: tenant and screening id are required", ErrInvalidInput)
	}
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal screening: %w", err)
	}
	query := r.rebind(`INSERT INTO screenings
		(id, tenant_id, tx_id, customer_id, composite_score, tier, decision, timestamp, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.db.ExecContext(ctx, query,
		s.ID, tenantID, s.TxID, s.CustomerID, s.CompositeScore,
		string(s.Alert.Tier), string(s.Alert.Decision), s.Timestamp.UTC(), string(doc))
	if err != nil {
		return fmt.Errorf("save screening: %w", err)
	}
	return nil
}

// GetScreening retrieves a screening result by ID within the tenant.
func (r *SQLRepository) GetScreening(ctx context.Context, tenantID, screeningID string) (*domain.Screening, error) {
	if tenantID == "" || screeningID == "" {
		return nil, fmt.Errorf("%w: tenant and screening id are required", ErrInvalidInput)
	}
	query := r.rebind(`SELECT document FROM screenings WHERE tenant_id = ? AND id = ?`)
	var doc string
	err := r.db.QueryRowContext(ctx, query, tenantID, screeningID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: screening %s", ErrNotFound, screeningID)
	}
	if err != nil {
		return nil, fmt.Errorf("get screening: %w", err)
	}
	var s domain.Screening
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		return nil, fmt.Errorf("unmarshal screening: %w", err)
	}
	return &s, nil
}

// Ping verifies database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the database handle.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx                        domain.Transaction
		cash, international, cryp int
		countries, metadata       sql.NullString
	)
	err := row.Scan(&tx.ID, &tx.TenantID, &tx.CustomerID, &tx.Amount, &tx.Currency,
		&tx.Timestamp, &tx.CreatedAt, &cash, &international, &cryp, &countries, &metadata)
	if err != nil {
		return nil, err
	}
	tx.Cash = cash != 0
	tx.International = international != 0
	tx.Crypto = cryp != 0
	if countries.Valid && countries.String != "" && countries.String != "null" {
		if err := json.Unmarshal([]byte(countries.String), &tx.Countries); err != nil {
			return nil, fmt.Errorf("unmarshal countries: %w", err)
		}
	}
	if metadata.Valid && metadata.String != "" && metadata.String != "null" {
		if err := json.Unmarshal([]byte(metadata.String), &tx.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &tx, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
