package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/genelab/lab-portal/pkg/config"
	"github.com/genelab/lab-portal/pkg/logger"
)

// DB is the portal's Postgres handle. The portal only stores its intake audit trail here.
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

// connect retry schedule: Postgres often comes up after the portal in compose
var (
	connectAttempts = 5
	connectBackoff  = time.Second
)

// New connects with the pool settings from cfg
func New(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	db, err := Open(cfg.DSN(), log)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// Open connects to a DSN, retrying with a linear backoff
func Open(dsn string, log *logger.Logger) (*DB, error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		conn, err := sqlx.Connect("postgres", dsn)
		if err == nil {
			return &DB{DB: conn, logger: log.WithComponent("database")}, nil
		}
		lastErr = err

		if attempt < connectAttempts {
			log.Warn().Err(err).Int("attempt", attempt).Msg("database not reachable, retrying")
			time.Sleep(time.Duration(attempt) * connectBackoff)
		}
	}
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", connectAttempts, lastErr)
}

// Close closes the pool
func (db *DB) Close() error {
	return db.DB.Close()
}

// Health pings with a short timeout and reports pool usage
func (db *DB) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	stats := db.Stats()
	status := map[string]string{
		"status":           "up",
		"open_connections": strconv.Itoa(stats.OpenConnections),
		"in_use":           strconv.Itoa(stats.InUse),
	}
	if err := db.PingContext(ctx); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}
	return status
}

// inTx runs fn in a transaction, rolling back when fn fails
func (db *DB) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
