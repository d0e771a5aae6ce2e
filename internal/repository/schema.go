package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    cash INTEGER NOT NULL DEFAULT 0,
    international INTEGER NOT NULL DEFAULT 0,
    crypto INTEGER NOT NULL DEFAULT 0,
    countries TEXT,
    metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_tenant ON transactions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_transactions_customer ON transactions(tenant_id, customer_id);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(tenant_id, customer_id, timestamp);
`

const schemaRulesets = `
CREATE TABLE IF NOT EXISTS rulesets (
    tenant_id TEXT NOT NULL,
    version TEXT NOT NULL,
    document TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id)
);
`

const schemaScreenings = `
CREATE TABLE IF NOT EXISTS screenings (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    tx_id TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    composite_score REAL NOT NULL,
    tier TEXT NOT NULL,
    decision TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    document TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_screenings_tenant ON screenings(tenant_id);
CREATE INDEX IF NOT EXISTS idx_screenings_tx ON screenings(tenant_id, tx_id);
CREATE INDEX IF NOT EXISTS idx_screenings_decision ON screenings(tenant_id, decision);
CREATE INDEX IF NOT EXISTS idx_screenings_timestamp ON screenings(tenant_id, timestamp);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaRulesets,
		schemaScreenings,
	}
}
