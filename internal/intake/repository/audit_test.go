package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genelab/lab-portal/internal/intake/domain"
	"github.com/genelab/lab-portal/internal/intake/repository"
	apperrors "github.com/genelab/lab-portal/pkg/errors"
	"github.com/genelab/lab-portal/pkg/testutil"
)

func TestAuditRepository_Insert(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	created := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mockDB.ExpectQuery("INSERT INTO intake_audit").
		WithArgs(testutil.AnyUUID{}, "job-1", "nipt", "non_invasive_prenatal_testing", 12, sqlmock.AnyArg(),
			"ocr_engine", false, "completed", nil, int64(840), "abc", "u-1").
		WillReturnRows(testutil.MockRows("created_at").AddRow(created))

	repo := repository.NewAuditRepository(mockDB.DB)
	entry := &domain.AuditEntry{
		JobID:         "job-1",
		DocumentName:  "nipt",
		FormType:      "non_invasive_prenatal_testing",
		FieldsMapped:  12,
		Processor:     "ocr_engine",
		Status:        "completed",
		DurationMs:    840,
		ContentSHA256: "abc",
		RequestedBy:   "u-1",
	}

	require.NoError(t, repo.Insert(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, created, entry.CreatedAt)
	mockDB.ExpectationsWereMet(t)
}

func TestAuditRepository_Insert_MapsCheckViolation(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("INSERT INTO intake_audit").
		WillReturnError(&pq.Error{Code: "23514", Constraint: "intake_audit_status_valid"})

	repo := repository.NewAuditRepository(mockDB.DB)
	err := repo.Insert(context.Background(), &domain.AuditEntry{JobID: "job-1", Status: "weird"})

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestAuditRepository_ListRecent(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	now := time.Now().UTC()
	mockDB.ExpectQuery("SELECT COUNT(*) FROM intake_audit WHERE requested_by = $1").
		WithArgs("u-1").
		WillReturnRows(testutil.MockRows("count").AddRow(1))
	mockDB.Mock.ExpectQuery("FROM intake_audit WHERE requested_by").
		WithArgs("u-1", 20, 0).
		WillReturnRows(testutil.MockRows(
			"id", "job_id", "document_name", "form_type", "fields_mapped", "warnings",
			"processor", "cached", "status", "error", "duration_ms", "content_sha256", "requested_by", "created_at",
		).AddRow(
			"a-1", "job-1", "hereditary_cancer", "hereditary_cancer", 9, "{\"package: multiple selections\"}",
			"json_passthrough", true, "completed", nil, 3, "abc", "u-1", now,
		))

	repo := repository.NewAuditRepository(mockDB.DB)
	entries, total, err := repo.ListRecent(context.Background(), "u-1", 1, 20)

	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, "job-1", entries[0].JobID)
	assert.True(t, entries[0].Cached)
	assert.Equal(t, []string{"package: multiple selections"}, entries[0].Warnings)
	assert.Nil(t, entries[0].Error)
	mockDB.ExpectationsWereMet(t)
}

func TestAuditRepository_ListRecentRequiresRequester(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewAuditRepository(mockDB.DB)
	_, _, err := repo.ListRecent(context.Background(), "", 1, 20)

	assert.ErrorIs(t, err, repository.ErrRequesterRequired)
	mockDB.ExpectationsWereMet(t)
}

func TestAuditRepository_Integration(t *testing.T) {
	testutil.SkipIfShort(t)
	suite := testutil.NewIntegrationSuite(t)
	suite.Truncate(t, "intake_audit")

	repo := repository.NewAuditRepository(suite.RawDB)
	ctx := context.Background()
	reason := "OCR engine request failed"

	require.NoError(t, repo.Insert(ctx, &domain.AuditEntry{
		JobID:         uuid.NewString(),
		FormType:      "gene_mutation_testing",
		DocumentName:  "gene_mutation_testing",
		FieldsMapped:  7,
		Warnings:      []string{"biopsy_date: unreadable date \"32/13/2025\""},
		Processor:     "ocr_engine",
		Status:        "completed",
		ContentSHA256: "0000000000000000000000000000000000000000000000000000000000000000",
		RequestedBy:   "tech-1",
	}))
	require.NoError(t, repo.Insert(ctx, &domain.AuditEntry{
		JobID:         uuid.NewString(),
		Processor:     "ocr_engine",
		Status:        "failed",
		Error:         &reason,
		ContentSHA256: "1111111111111111111111111111111111111111111111111111111111111111",
		RequestedBy:   "tech-2",
	}))

	entries, total, err := repo.ListRecent(ctx, "tech-1", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"biopsy_date: unreadable date \"32/13/2025\""}, entries[0].Warnings)

	entries, total, err = repo.ListRecent(ctx, "tech-2", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, "failed", entries[0].Status)

	err = repo.Insert(ctx, &domain.AuditEntry{
		JobID: uuid.NewString(), Processor: "x", Status: "exploded",
		ContentSHA256: "2222222222222222222222222222222222222222222222222222222222222222", RequestedBy: "tech-1",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}
