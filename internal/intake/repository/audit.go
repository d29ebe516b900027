package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/genelab/lab-portal/internal/intake/domain"
	"github.com/genelab/lab-portal/pkg/database"
)

// AuditRepository persists one row per finished intake job.
// Only metadata is stored; scans and extracted patient values never reach the database.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert writes an audit entry and fills in its ID and creation time
func (r *AuditRepository) Insert(ctx context.Context, e *domain.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	warnings := e.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	query := `
		INSERT INTO intake_audit (
			id, job_id, document_name, form_type, fields_mapped, warnings,
			processor, cached, status, error, duration_ms, content_sha256, requested_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		e.ID, e.JobID, e.DocumentName, e.FormType, e.FieldsMapped, pq.Array(warnings),
		e.Processor, e.Cached, e.Status, e.Error, e.DurationMs, e.ContentSHA256, e.RequestedBy,
	).Scan(&e.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("insert intake audit: %w", err)
	}
	return nil
}

// auditRow adds the scan target for the warnings array
type auditRow struct {
	domain.AuditEntry
	WarningsArr pq.StringArray `db:"warnings"`
}

// ErrRequesterRequired is returned by ListRecent when no requester is given
var ErrRequesterRequired = errors.New("intake audit: requester is required")

// ListRecent returns one requester's entries, newest first
func (r *AuditRepository) ListRecent(ctx context.Context, requestedBy string, page, perPage int) ([]domain.AuditEntry, int64, error) {
	if requestedBy == "" {
		return nil, 0, ErrRequesterRequired
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM intake_audit WHERE requested_by = $1`, requestedBy); err != nil {
		return nil, 0, fmt.Errorf("count intake audit: %w", err)
	}

	query := `
		SELECT id, job_id, document_name, form_type, fields_mapped, warnings,
			processor, cached, status, error, duration_ms, content_sha256, requested_by, created_at
		FROM intake_audit WHERE requested_by = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	args := []interface{}{requestedBy, perPage, (page - 1) * perPage}

	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list intake audit: %w", err)
	}

	entries := make([]domain.AuditEntry, len(rows))
	for i, row := range rows {
		entries[i] = row.AuditEntry
		entries[i].Warnings = []string(row.WarningsArr)
	}
	return entries, total, nil
}
