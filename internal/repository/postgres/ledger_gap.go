package postgres

import (
	"context"
	"fmt"

	"github.com/jwalitptl/clinic-api/internal/model"
)

func (r *ledgerGapRepository) MissingTransactions(ctx context.Context, limit int) ([]model.LedgerGap, error) {
	query := `
		SELECT a.clinic_id, 'agendamento' AS origin, a.id AS origin_id
		FROM appointments a
		WHERE a.status = 'completed'
		AND NOT EXISTS (
			SELECT 1 FROM transactions t
			WHERE t.clinic_id = a.clinic_id AND t.origin = 'agendamento' AND t.origin_id = a.id
		)
		UNION ALL
		SELECT p.clinic_id, 'conta_a_pagar', p.id
		FROM accounts_payable p
		WHERE p.status = 'pago'
		AND NOT EXISTS (
			SELECT 1 FROM transactions t
			WHERE t.clinic_id = p.clinic_id AND t.origin = 'conta_a_pagar' AND t.origin_id = p.id
		)
		UNION ALL
		SELECT rc.clinic_id, 'conta_a_receber', rc.id
		FROM accounts_receivable rc
		WHERE rc.status = 'recebido'
		AND NOT EXISTS (
			SELECT 1 FROM transactions t
			WHERE t.clinic_id = rc.clinic_id AND t.origin = 'conta_a_receber' AND t.origin_id = rc.id
		)
		LIMIT $1
	`
	var gaps []model.LedgerGap
	if err := r.db.SelectContext(ctx, &gaps, query, limit); err != nil {
		return nil, fmt.Errorf("failed to find missing transactions: %w", err)
	}
	return gaps, nil
}

// StaleTransactions skips rows whose entity was deleted; those are kept as
// financial history.
func (r *ledgerGapRepository) StaleTransactions(ctx context.Context, limit int) ([]model.LedgerGap, error) {
	query := `
		SELECT t.clinic_id, t.origin, t.origin_id
		FROM transactions t
		LEFT JOIN appointments a
			ON t.origin = 'agendamento' AND a.id = t.origin_id AND a.clinic_id = t.clinic_id
		LEFT JOIN accounts_payable p
			ON t.origin = 'conta_a_pagar' AND p.id = t.origin_id AND p.clinic_id = t.clinic_id
		LEFT JOIN accounts_receivable rc
			ON t.origin = 'conta_a_receber' AND rc.id = t.origin_id AND rc.clinic_id = t.clinic_id
		WHERE t.origin_id IS NOT NULL
		AND (
			(a.id IS NOT NULL AND a.status <> 'completed')
			OR (p.id IS NOT NULL AND p.status <> 'pago')
			OR (rc.id IS NOT NULL AND rc.status <> 'recebido')
		)
		LIMIT $1
	`
	var gaps []model.LedgerGap
	if err := r.db.SelectContext(ctx, &gaps, query, limit); err != nil {
		return nil, fmt.Errorf("failed to find stale transactions: %w", err)
	}
	return gaps, nil
}
