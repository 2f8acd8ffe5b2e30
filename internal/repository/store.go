package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// NewPostgresStore wires the sqlx-backed repositories.
func NewPostgresStore(db *sqlx.DB) *Store {
	return &Store{
		Users:    NewUserRepository(db),
		Follows:  NewFollowRepository(db),
		Posts:    NewPostRepository(db),
		Comments: NewCommentRepository(db),
		Repairer: NewRepairer(db),
	}
}

// withTx runs fn inside a transaction, rolling back on error or panic.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// nonNil keeps empty arrays serialising as [] instead of null.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
