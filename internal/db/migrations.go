package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'contract_status') THEN
			CREATE TYPE contract_status AS ENUM ('draft', 'active', 'replaced', 'cancelled', 'completed');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS contracts (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		contract_number VARCHAR(64) NOT NULL,
		customer_id UUID NOT NULL,
		customer_name VARCHAR(128) NOT NULL,
		customer_phone VARCHAR(32) NOT NULL,
		worker_id UUID NOT NULL,
		worker_name VARCHAR(128) NOT NULL,
		worker_phone VARCHAR(32) NOT NULL,
		worker_salary NUMERIC(12,2) NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		contract_status contract_status NOT NULL DEFAULT 'draft',
		is_latest BOOLEAN NOT NULL DEFAULT TRUE,
		replaces_contract_id UUID REFERENCES contracts(id),
		replaced_by_contract_id UUID REFERENCES contracts(id),
		service_days INTEGER,
		termination_reason TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_contract_number ON contracts (contract_number);`,
	// Invariant backstop: at most one latest, non-cancelled contract per customer.
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_contracts_latest_per_customer
		ON contracts (customer_phone)
		WHERE is_latest AND contract_status <> 'cancelled';`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_customer_phone ON contracts (customer_phone);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_status ON contracts (contract_status);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_end_date ON contracts (end_date) WHERE is_latest;`,
	`CREATE TABLE IF NOT EXISTS customer_ledgers (
		customer_phone VARCHAR(32) PRIMARY KEY,
		customer_name VARCHAR(128) NOT NULL,
		latest_contract_id UUID REFERENCES contracts(id),
		total_workers INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		customer_phone VARCHAR(32) NOT NULL REFERENCES customer_ledgers(customer_phone),
		contract_id UUID NOT NULL REFERENCES contracts(id),
		contract_number VARCHAR(64) NOT NULL,
		worker_name VARCHAR(128) NOT NULL,
		worker_phone VARCHAR(32) NOT NULL,
		worker_salary NUMERIC(12,2) NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		status VARCHAR(16) NOT NULL,
		position INTEGER NOT NULL,
		service_days INTEGER,
		termination_reason TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_ledger_entries_contract ON ledger_entries (contract_id);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_ledger_entries_position ON ledger_entries (customer_phone, position);`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_customer ON ledger_entries (customer_phone);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
