// Package testutil holds shared test helpers: a throwaway PostgreSQL for
// the intake audit store, sqlmock setup, a recording event publisher and
// HTTP request builders.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	auditImage    = "postgres:15-alpine"
	auditDatabase = "labportal_test"
	auditUser     = "labportal"
	auditPassword = "labportal"
)

// PostgresContainer is a disposable PostgreSQL started for integration tests
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// StartAuditPostgres runs an empty PostgreSQL the audit schema can be migrated into.
// The server logs "ready" twice: once for the init pass and once for real.
func StartAuditPostgres(ctx context.Context) (*PostgresContainer, error) {
	c, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(auditImage),
		postgres.WithDatabase(auditDatabase),
		postgres.WithUsername(auditUser),
		postgres.WithPassword(auditPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start audit postgres: %w", err)
	}

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("audit postgres dsn: %w", err)
	}
	return &PostgresContainer{PostgresContainer: c, DSN: dsn}, nil
}

// Open returns a raw sqlx handle on the container
func (c *PostgresContainer) Open(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect audit postgres: %w", err)
	}
	return db, nil
}
