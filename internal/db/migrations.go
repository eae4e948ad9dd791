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
			CREATE TYPE contract_status AS ENUM ('active', 'paused', 'completed', 'cancelled');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'visit_status') THEN
			CREATE TYPE visit_status AS ENUM ('scheduled', 'in_progress', 'completed', 'cancelled', 'missed');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'visit_priority') THEN
			CREATE TYPE visit_priority AS ENUM ('low', 'medium', 'high', 'urgent');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS maintenance_contracts (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		tenant_id UUID NOT NULL,
		branch_id UUID NOT NULL,
		customer_id UUID NOT NULL,
		product_id UUID NOT NULL,
		technician_id UUID,
		frequency_kind VARCHAR(16) NOT NULL,
		frequency_value INT NOT NULL DEFAULT 0,
		frequency_unit VARCHAR(16) NOT NULL DEFAULT '',
		start_date DATE NOT NULL,
		end_date DATE,
		value NUMERIC(18,2) NOT NULL DEFAULT 0,
		instructions TEXT NOT NULL DEFAULT '',
		status contract_status NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT chk_contract_window CHECK (end_date IS NULL OR end_date > start_date)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_tenant_branch ON maintenance_contracts (tenant_id, branch_id);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_status ON maintenance_contracts (status);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_end_date ON maintenance_contracts (end_date) WHERE end_date IS NOT NULL;`,
	`CREATE TABLE IF NOT EXISTS maintenance_visits (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		tenant_id UUID NOT NULL,
		branch_id UUID NOT NULL,
		contract_id UUID NOT NULL REFERENCES maintenance_contracts(id),
		scheduled_date DATE NOT NULL,
		scheduled_time VARCHAR(5),
		technician_id UUID,
		priority visit_priority NOT NULL DEFAULT 'medium',
		status visit_status NOT NULL DEFAULT 'scheduled',
		actual_start_at TIMESTAMPTZ,
		actual_end_at TIMESTAMPTZ,
		work_description TEXT NOT NULL DEFAULT '',
		completion_notes TEXT NOT NULL DEFAULT '',
		cancel_reason TEXT NOT NULL DEFAULT '',
		total_cost NUMERIC(18,2) NOT NULL DEFAULT 0,
		rating SMALLINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT chk_visit_rating CHECK (rating IS NULL OR (rating >= 1 AND rating <= 5))
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_visit_contract_date ON maintenance_visits (contract_id, scheduled_date);`,
	`CREATE INDEX IF NOT EXISTS idx_visits_tenant_branch ON maintenance_visits (tenant_id, branch_id);`,
	`CREATE INDEX IF NOT EXISTS idx_visits_status ON maintenance_visits (status);`,
	`CREATE INDEX IF NOT EXISTS idx_visits_scheduled_date ON maintenance_visits (scheduled_date);`,
	`CREATE INDEX IF NOT EXISTS idx_visits_technician ON maintenance_visits (technician_id) WHERE technician_id IS NOT NULL;`,
	`CREATE TABLE IF NOT EXISTS visit_parts (
		visit_id UUID NOT NULL REFERENCES maintenance_visits(id) ON DELETE CASCADE,
		part_id UUID NOT NULL,
		quantity INT NOT NULL,
		unit_cost NUMERIC(18,2) NOT NULL,
		PRIMARY KEY (visit_id, part_id)
	);`,
	`CREATE TABLE IF NOT EXISTS branch_stock (
		tenant_id UUID NOT NULL,
		branch_id UUID NOT NULL,
		part_id UUID NOT NULL,
		quantity INT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (tenant_id, branch_id, part_id),
		CONSTRAINT chk_stock_non_negative CHECK (quantity >= 0)
	);`,
	`CREATE TABLE IF NOT EXISTS stock_movements (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		tenant_id UUID NOT NULL,
		branch_id UUID NOT NULL,
		part_id UUID NOT NULL,
		quantity_delta INT NOT NULL,
		visit_id UUID REFERENCES maintenance_visits(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_stock_movements_part ON stock_movements (tenant_id, branch_id, part_id);`,
	`CREATE INDEX IF NOT EXISTS idx_stock_movements_visit ON stock_movements (visit_id) WHERE visit_id IS NOT NULL;`,
	`CREATE TABLE IF NOT EXISTS visit_corrections (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		tenant_id UUID NOT NULL,
		visit_id UUID NOT NULL REFERENCES maintenance_visits(id),
		corrected_by UUID NOT NULL,
		field VARCHAR(64) NOT NULL,
		old_value TEXT NOT NULL DEFAULT '',
		new_value TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
}

// Migrate applies the idempotent startup statements in order.
func Migrate(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
