package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		id TEXT PRIMARY KEY,
		subdomain TEXT NOT NULL UNIQUE,
		currency CHAR(3) NOT NULL,
		locale TEXT NOT NULL DEFAULT 'en',
		fee_percent NUMERIC(5,2) NOT NULL DEFAULT 0,
		merchant_config_id TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants(id),
		email TEXT NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT,
		password_system_generated BOOLEAN NOT NULL DEFAULT FALSE,
		last_login_at TIMESTAMPTZ,
		invited_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL,
		tenant_id TEXT NOT NULL REFERENCES tenants(id),
		customer_id TEXT NOT NULL REFERENCES customers(id),
		status TEXT NOT NULL,
		total NUMERIC(18,2) NOT NULL,
		currency CHAR(3) NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (tenant_id, number)
	)`,
	`CREATE TABLE IF NOT EXISTS merchant_configs (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants(id),
		environment TEXT NOT NULL CHECK (environment IN ('test', 'live')),
		api_key TEXT NOT NULL DEFAULT '',
		account_record_id TEXT,
		fee_percent NUMERIC(5,2) NOT NULL DEFAULT 0,
		precision INTEGER NOT NULL DEFAULT 2,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS merchant_configs_active_idx
		ON merchant_configs (tenant_id, environment) WHERE active`,
	`CREATE TABLE IF NOT EXISTS merchant_accounts (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL REFERENCES tenants(id),
		config_id TEXT NOT NULL REFERENCES merchant_configs(id),
		account_id TEXT NOT NULL,
		account_lookup TEXT UNIQUE,
		charges_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		payouts_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		details_submitted BOOLEAN NOT NULL DEFAULT FALSE,
		requirements TEXT[] NOT NULL DEFAULT '{}',
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		charge_intent_id TEXT NOT NULL,
		charge_id TEXT,
		refund_id TEXT UNIQUE,
		tenant_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		order_id TEXT,
		amount NUMERIC(18,2) NOT NULL,
		currency CHAR(3) NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('full_payment', 'checkout', 'refund')),
		status TEXT NOT NULL CHECK (status IN ('pending', 'succeeded', 'failed', 'canceled')),
		failure_reason TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		processed_at TIMESTAMPTZ,
		version INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ledger_entries_charge_intent_idx
		ON ledger_entries (charge_intent_id) WHERE kind <> 'refund'`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_order_idx ON ledger_entries (order_id)`,
	`CREATE TABLE IF NOT EXISTS security_deposits (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL UNIQUE,
		charge_intent_id TEXT NOT NULL UNIQUE,
		tenant_id TEXT NOT NULL,
		currency CHAR(3) NOT NULL,
		authorized_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		captured_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		status TEXT NOT NULL CHECK (status IN ('pending', 'authorized', 'captured', 'released', 'failed')),
		reason TEXT,
		operation_charge_id TEXT,
		authorized_at TIMESTAMPTZ,
		captured_at TIMESTAMPTZ,
		released_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		CHECK (captured_amount <= authorized_amount)
	)`,
	`CREATE TABLE IF NOT EXISTS payment_methods (
		processor_id TEXT PRIMARY KEY,
		customer_ref TEXT NOT NULL,
		brand TEXT NOT NULL DEFAULT '',
		last4 CHAR(4) NOT NULL DEFAULT '',
		exp_month INTEGER NOT NULL DEFAULT 0,
		exp_year INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS transfers (
		processor_id TEXT PRIMARY KEY,
		tenant_id TEXT,
		amount NUMERIC(18,2) NOT NULL,
		currency CHAR(3) NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		paid_at TIMESTAMPTZ,
		failed_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payouts (
		processor_id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		amount NUMERIC(18,2) NOT NULL,
		currency CHAR(3) NOT NULL,
		status TEXT NOT NULL,
		failure_code TEXT,
		failure_message TEXT,
		arrival_date TIMESTAMPTZ,
		paid_at TIMESTAMPTZ,
		failed_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the payments tables inside one transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[DATABASE] Schema up to date (%d statements)", len(schema))
	return nil
}
