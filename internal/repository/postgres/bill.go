package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

const billColumns = `
	id, clinic_id, name, description, amount, due_date, status,
	settled_date, category, created_at, updated_at`

func (r *billRepository) Kind() model.BillKind {
	return r.kind
}

func (r *billRepository) stamp(bills ...*model.Bill) {
	for _, b := range bills {
		b.Kind = r.kind
	}
}

func (r *billRepository) Create(ctx context.Context, bill *model.Bill) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, clinic_id, name, description, amount, due_date, status,
			settled_date, category, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, r.kind.Table())

	bill.ID = uuid.New()
	bill.Kind = r.kind
	bill.CreatedAt = time.Now()
	bill.UpdatedAt = bill.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		bill.ID,
		bill.ClinicID,
		bill.Name,
		bill.Description,
		bill.Amount,
		bill.DueDate,
		bill.Category,
		bill.CreatedAt,
		bill.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create %s bill: %w", r.kind, err)
	}
	return nil
}

func (r *billRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Bill, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE clinic_id = $1 AND id = $2`, billColumns, r.kind.Table())

	var bill model.Bill
	if err := r.db.GetContext(ctx, &bill, query, clinicID, id); err != nil {
		return nil, notFound(err, "get bill")
	}
	r.stamp(&bill)
	return &bill, nil
}

func (r *billRepository) Update(ctx context.Context, bill *model.Bill) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, description = $2, amount = $3, due_date = $4,
			category = $5, updated_at = $6
		WHERE clinic_id = $7 AND id = $8
	`, r.kind.Table())
	bill.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		bill.Name,
		bill.Description,
		bill.Amount,
		bill.DueDate,
		bill.Category,
		bill.UpdatedAt,
		bill.ClinicID,
		bill.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update bill: %w", err)
	}
	return expectAffected(result, "update bill")
}

func (r *billRepository) UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, status model.BillStatus, settledDate *timeslot.Date) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, settled_date = $2, updated_at = $3
		WHERE clinic_id = $4 AND id = $5
	`, r.kind.Table())

	result, err := r.db.ExecContext(ctx, query, status, settledDate, time.Now(), clinicID, id)
	if err != nil {
		return fmt.Errorf("failed to update bill status: %w", err)
	}
	return expectAffected(result, "update bill status")
}

func (r *billRepository) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE clinic_id = $1 AND id = $2`, r.kind.Table())

	result, err := r.db.ExecContext(ctx, query, clinicID, id)
	if err != nil {
		return fmt.Errorf("failed to delete bill: %w", err)
	}
	return expectAffected(result, "delete bill")
}

func (r *billRepository) List(ctx context.Context, filters *model.BillFilters) ([]*model.Bill, error) {
	var b filterBuilder
	b.add("clinic_id = $%d", filters.ClinicID)
	if filters.Status != "" {
		b.add("status = $%d", filters.Status)
	}
	if filters.Category != "" {
		b.add("category = $%d", filters.Category)
	}
	if filters.Name != "" {
		b.add("name ILIKE $%d", "%"+filters.Name+"%")
	}
	if filters.MinAmount != nil {
		b.add("amount >= $%d", *filters.MinAmount)
	}
	if filters.MaxAmount != nil {
		b.add("amount <= $%d", *filters.MaxAmount)
	}
	if filters.StartDate != nil {
		b.add("due_date >= $%d", timeslot.DateOf(*filters.StartDate))
	}
	if filters.EndDate != nil {
		b.add("due_date <= $%d", timeslot.DateOf(*filters.EndDate))
	}

	query := fmt.Sprintf(`SELECT %s FROM %s`, billColumns, r.kind.Table()) + b.where() + ` ORDER BY due_date ASC`

	var bills []*model.Bill
	if err := r.db.SelectContext(ctx, &bills, query, b.args...); err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	r.stamp(bills...)
	return bills, nil
}

func (r *billRepository) Statistics(ctx context.Context, clinicID uuid.UUID) (*model.BillStatistics, error) {
	query := fmt.Sprintf(`
		SELECT
			COALESCE(SUM(amount), 0) AS total,
			COALESCE(SUM(amount) FILTER (WHERE status = $2), 0) AS settled,
			COALESCE(SUM(amount) FILTER (WHERE status = $3), 0) AS pending,
			COUNT(*) AS count
		FROM %s
		WHERE clinic_id = $1
	`, r.kind.Table())

	var stats model.BillStatistics
	err := r.db.GetContext(ctx, &stats, query, clinicID, r.kind.SettledStatus(), model.BillStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to get bill statistics: %w", err)
	}
	return &stats, nil
}
