// Package repository implements the PostgreSQL storage for payments and
// subscriptions, including the transactional reconciliation surface.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	// Register the pgx driver for database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/swadiqdev/school-billing/internal/storage"
)

// Storage wraps the PostgreSQL connection and implements the payment
// and subscription queries plus storage.TxRunner.
type Storage struct {
	DB *sql.DB
}

// New opens a connection to PostgreSQL and pings it.
func New(storageConnectionString string) (*Storage, error) {
	const op = "repository.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady verifies the schema has been migrated.
func CheckDatabaseReady(s *Storage) error {
	var exists bool
	err := s.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'subscriptions'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table subscriptions missing or query error: %w", err)
	}
	return nil
}

// WithTx implements storage.TxRunner. fn runs against a transaction-
// scoped view; any error rolls the whole unit back.
func (s *Storage) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	const op = "repository.WithTx"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := fn(&sqlTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%s: rollback after %v: %w", op, err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
