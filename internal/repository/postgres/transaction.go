package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

const transactionColumns = `
	id, clinic_id, date, type, origin, origin_id, description, amount, created_at`

func (r *transactionRepository) Create(ctx context.Context, tx *model.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, clinic_id, date, type, origin, origin_id, description, amount, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	tx.ID = uuid.New()
	tx.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		tx.ID,
		tx.ClinicID,
		tx.Date,
		tx.Type,
		tx.Origin,
		tx.OriginID,
		tx.Description,
		tx.Amount,
		tx.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *transactionRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE clinic_id = $1 AND id = $2`

	var tx model.Transaction
	if err := r.db.GetContext(ctx, &tx, query, clinicID, id); err != nil {
		return nil, notFound(err, "get transaction")
	}
	return &tx, nil
}

func (r *transactionRepository) Update(ctx context.Context, tx *model.Transaction) error {
	query := `
		UPDATE transactions
		SET date = $1, type = $2, description = $3, amount = $4
		WHERE clinic_id = $5 AND id = $6
	`
	result, err := r.db.ExecContext(ctx, query,
		tx.Date,
		tx.Type,
		tx.Description,
		tx.Amount,
		tx.ClinicID,
		tx.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return expectAffected(result, "update transaction")
}

func (r *transactionRepository) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	query := `DELETE FROM transactions WHERE clinic_id = $1 AND id = $2`

	result, err := r.db.ExecContext(ctx, query, clinicID, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return expectAffected(result, "delete transaction")
}

func (r *transactionRepository) List(ctx context.Context, filters *model.TransactionFilters) ([]*model.Transaction, error) {
	var b filterBuilder
	b.add("clinic_id = $%d", filters.ClinicID)
	if filters.Type != "" {
		b.add("type = $%d", filters.Type)
	}
	if filters.Origin != "" {
		b.add("origin = $%d", filters.Origin)
	}
	if filters.Query != "" {
		b.add("description ILIKE $%d", "%"+filters.Query+"%")
	}
	if filters.StartDate != nil {
		b.add("date >= $%d", timeslot.DateOf(*filters.StartDate))
	}
	if filters.EndDate != nil {
		b.add("date <= $%d", timeslot.DateOf(*filters.EndDate))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions` + b.where() + ` ORDER BY date DESC, created_at DESC`

	var txs []*model.Transaction
	if err := r.db.SelectContext(ctx, &txs, query, b.args...); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

func (r *transactionRepository) FindByOrigin(ctx context.Context, clinicID uuid.UUID, origin model.TransactionOrigin, originID uuid.UUID) (*model.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE clinic_id = $1 AND origin = $2 AND origin_id = $3`

	var tx model.Transaction
	if err := r.db.GetContext(ctx, &tx, query, clinicID, origin, originID); err != nil {
		return nil, notFound(err, "find transaction by origin")
	}
	return &tx, nil
}

func (r *transactionRepository) DeleteByOrigin(ctx context.Context, clinicID uuid.UUID, origin model.TransactionOrigin, originID uuid.UUID) (bool, error) {
	query := `DELETE FROM transactions WHERE clinic_id = $1 AND origin = $2 AND origin_id = $3`

	result, err := r.db.ExecContext(ctx, query, clinicID, origin, originID)
	if err != nil {
		return false, fmt.Errorf("failed to delete transaction by origin: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// Totals sums income and expenses with date in [from, to).
func (r *transactionRepository) Totals(ctx context.Context, clinicID uuid.UUID, from, to timeslot.Date) (*model.TransactionTotals, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = $4), 0) AS revenue,
			COALESCE(SUM(amount) FILTER (WHERE type = $5), 0) AS expenses,
			COUNT(*) AS count,
			COUNT(*) FILTER (WHERE type = $4) AS income_count
		FROM transactions
		WHERE clinic_id = $1 AND date >= $2 AND date < $3
	`
	var totals model.TransactionTotals
	err := r.db.GetContext(ctx, &totals, query, clinicID, from, to,
		model.TransactionTypeIncome, model.TransactionTypeExpense)
	if err != nil {
		return nil, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return &totals, nil
}
