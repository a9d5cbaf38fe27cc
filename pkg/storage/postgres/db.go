// Package postgres implements the storage interfaces on PostgreSQL using
// database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/quillhq/quill/pkg/storage"
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaks.
const uniqueViolation = "23505"

// Open connects to PostgreSQL, configures the pool, and verifies the
// connection with a ping bounded by config.PostgresTimeout.
func Open(config storage.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(config.PostgresMaxConns)
	db.SetMaxIdleConns(config.PostgresMinConns)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), config.PostgresTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// rowsAffected maps a zero-row result onto storage.ErrNotFound.
func rowsAffected(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for %s: %w", op, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
