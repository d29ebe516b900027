package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Migrations returns the portal's schema statements in apply order.
// Every statement is idempotent so Migrate can run on each start.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS intake_audit (
			id UUID PRIMARY KEY,
			job_id UUID NOT NULL,
			document_name VARCHAR(100) NOT NULL DEFAULT '',
			form_type VARCHAR(50) NOT NULL DEFAULT '',
			fields_mapped INT NOT NULL DEFAULT 0,
			warnings TEXT[] NOT NULL DEFAULT '{}',
			processor VARCHAR(50) NOT NULL,
			cached BOOLEAN NOT NULL DEFAULT FALSE,
			status VARCHAR(20) NOT NULL,
			error TEXT,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			content_sha256 CHAR(64) NOT NULL,
			requested_by VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT intake_audit_form_type_valid CHECK (form_type IN ('', 'hereditary_cancer', 'gene_mutation_testing', 'non_invasive_prenatal_testing')),
			CONSTRAINT intake_audit_status_valid CHECK (status IN ('completed', 'failed'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_intake_audit_created_at ON intake_audit (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_intake_audit_requested_by ON intake_audit (requested_by)`,
	}
}

// Migrate applies Migrations inside a single transaction
func (db *DB) Migrate(ctx context.Context) error {
	stmts := Migrations()
	err := db.inTx(ctx, func(tx *sqlx.Tx) error {
		for i, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %d failed: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.logger.Info().Int("statements", len(stmts)).Msg("schema up to date")
	return nil
}
