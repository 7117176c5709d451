package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/ledger"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

type ReconcilerConfig struct {
	Interval  time.Duration
	BatchSize int
	// Location is the clinic timezone used to date repaired rows.
	Location *time.Location
}

// LedgerReconciler repairs ledger rows the request path failed to write or
// remove: realized entities with no row get one, and rows whose entity left
// its realized state are deleted.
type LedgerReconciler struct {
	gaps         repository.LedgerGapRepository
	appointments repository.AppointmentRepository
	services     repository.ServiceRepository
	bills        map[model.TransactionOrigin]repository.BillRepository
	coordinator  *ledger.Coordinator
	config       ReconcilerConfig
	logger       *logger.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

// RunStats counts the outcome of one pass.
type RunStats struct {
	Created int
	Deleted int
	Failed  int
}

func NewLedgerReconciler(
	gaps repository.LedgerGapRepository,
	appointments repository.AppointmentRepository,
	services repository.ServiceRepository,
	bills []repository.BillRepository,
	coordinator *ledger.Coordinator,
	config ReconcilerConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *LedgerReconciler {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	byOrigin := make(map[model.TransactionOrigin]repository.BillRepository, len(bills))
	for _, b := range bills {
		byOrigin[b.Kind().Origin()] = b
	}
	return &LedgerReconciler{
		gaps:         gaps,
		appointments: appointments,
		services:     services,
		bills:        byOrigin,
		coordinator:  coordinator,
		config:       config,
		logger:       log.With("component", "ledger_reconciler"),
		metrics:      m,
		now:          time.Now,
	}
}

// Start runs a pass immediately and then on every tick until ctx is done.
func (w *LedgerReconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.logger.Info("Starting ledger reconciler", "interval", w.config.Interval.String())
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Shutting down ledger reconciler")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *LedgerReconciler) runOnce(ctx context.Context) {
	stats, err := w.Reconcile(ctx)
	if err != nil {
		w.logger.Error(err, "Ledger reconciliation failed")
		return
	}
	if stats.Created+stats.Deleted+stats.Failed > 0 {
		w.logger.Info("Ledger reconciled",
			"created", stats.Created, "deleted", stats.Deleted, "failed", stats.Failed)
	}
}

// Reconcile runs one pass over at most BatchSize gaps of each kind.
func (w *LedgerReconciler) Reconcile(ctx context.Context) (RunStats, error) {
	var stats RunStats

	missing, err := w.gaps.MissingTransactions(ctx, w.config.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("failed to list missing transactions: %w", err)
	}
	for _, gap := range missing {
		if err := w.createMissing(ctx, gap); err != nil {
			stats.Failed++
			w.metrics.ReconcilerRepairs.WithLabelValues("missing", "failed").Inc()
			w.logger.Warn(err, "Failed to create missing transaction",
				"clinic_id", gap.ClinicID.String(), "origin", string(gap.Origin), "origin_id", gap.OriginID.String())
			continue
		}
		stats.Created++
		w.metrics.ReconcilerRepairs.WithLabelValues("missing", "repaired").Inc()
	}

	stale, err := w.gaps.StaleTransactions(ctx, w.config.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("failed to list stale transactions: %w", err)
	}
	for _, gap := range stale {
		result := w.coordinator.Unrealize(ctx, gap.ClinicID, gap.Origin, gap.OriginID)
		if result.Err != nil {
			stats.Failed++
			w.metrics.ReconcilerRepairs.WithLabelValues("stale", "failed").Inc()
			w.logger.Warn(result.Err, "Failed to delete stale transaction",
				"clinic_id", gap.ClinicID.String(), "origin", string(gap.Origin), "origin_id", gap.OriginID.String())
			continue
		}
		stats.Deleted++
		w.metrics.ReconcilerRepairs.WithLabelValues("stale", "repaired").Inc()
	}

	return stats, nil
}

func (w *LedgerReconciler) today() timeslot.Date {
	return timeslot.DateOf(w.now().In(w.config.Location))
}

func (w *LedgerReconciler) createMissing(ctx context.Context, gap model.LedgerGap) error {
	var realization ledger.Realization
	switch gap.Origin {
	case model.OriginAppointment:
		apt, err := w.appointments.Get(ctx, gap.ClinicID, gap.OriginID)
		if err != nil {
			return fmt.Errorf("failed to load appointment: %w", err)
		}
		svc, err := w.services.Get(ctx, gap.ClinicID, apt.ServiceID)
		if err != nil {
			return fmt.Errorf("failed to load service: %w", err)
		}
		realization = ledger.ForAppointment(apt, svc, w.today())
	default:
		bills, ok := w.bills[gap.Origin]
		if !ok {
			return fmt.Errorf("no bill store for origin %s", gap.Origin)
		}
		bill, err := bills.Get(ctx, gap.ClinicID, gap.OriginID)
		if err != nil {
			return fmt.Errorf("failed to load bill: %w", err)
		}
		realization = ledger.ForBill(bill, w.today())
	}

	return w.coordinator.Realize(ctx, realization).Err
}
