package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/repository"
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// Ping checks the database connection; used by the readiness probe.
func (r *BaseRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// notFound maps sql.ErrNoRows to repository.ErrNotFound and wraps anything
// else with the operation name.
func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// expectAffected turns a zero-row write into repository.ErrNotFound.
func expectAffected(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// filterBuilder accumulates positional WHERE clauses the way the list
// queries build them.
type filterBuilder struct {
	clauses []string
	args    []interface{}
}

func (b *filterBuilder) add(clause string, arg interface{}) {
	b.args = append(b.args, arg)
	b.clauses = append(b.clauses, fmt.Sprintf(clause, len(b.args)))
}

func (b *filterBuilder) where() string {
	if len(b.clauses) == 0 {
		return ""
	}
	q := " WHERE " + b.clauses[0]
	for _, c := range b.clauses[1:] {
		q += " AND " + c
	}
	return q
}
