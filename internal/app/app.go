// Package app wires stores, services and handlers into the HTTP router.
// Both binaries open their stores through it.
package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/handler/appointment"
	"github.com/jwalitptl/clinic-api/internal/handler/billing"
	"github.com/jwalitptl/clinic-api/internal/handler/catalog"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	promhandler "github.com/jwalitptl/clinic-api/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-api/internal/handler/schedule"
	"github.com/jwalitptl/clinic-api/internal/handler/transaction"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/router"
	appointmentService "github.com/jwalitptl/clinic-api/internal/service/appointment"
	"github.com/jwalitptl/clinic-api/internal/service/availability"
	billingService "github.com/jwalitptl/clinic-api/internal/service/billing"
	catalogService "github.com/jwalitptl/clinic-api/internal/service/catalog"
	"github.com/jwalitptl/clinic-api/internal/service/ledger"
	scheduleService "github.com/jwalitptl/clinic-api/internal/service/schedule"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "clinic"

type Stores struct {
	Schedules    repository.ScheduleRepository
	Appointments repository.AppointmentRepository
	Services     repository.ServiceRepository
	Payables     repository.BillRepository
	Receivables  repository.BillRepository
	Transactions repository.TransactionRepository
	LedgerGaps   repository.LedgerGapRepository
	Pinger       health.Pinger
}

func MemoryStores(store *memory.Store) Stores {
	return Stores{
		Schedules:    store.Schedules(),
		Appointments: store.Appointments(),
		Services:     store.Services(),
		Payables:     store.Bills(model.BillKindPayable),
		Receivables:  store.Bills(model.BillKindReceivable),
		Transactions: store.Transactions(),
		LedgerGaps:   store.LedgerGaps(),
		Pinger:       store,
	}
}

func PostgresStores(db *sqlx.DB) Stores {
	base := postgres.NewBaseRepository(db)
	return Stores{
		Schedules:    postgres.NewScheduleRepository(db),
		Appointments: postgres.NewAppointmentRepository(db),
		Services:     postgres.NewServiceRepository(db),
		Payables:     postgres.NewBillRepository(db, model.BillKindPayable),
		Receivables:  postgres.NewBillRepository(db, model.BillKindReceivable),
		Transactions: postgres.NewTransactionRepository(db),
		LedgerGaps:   postgres.NewLedgerGapRepository(db),
		Pinger:       &base,
	}
}

// OpenStores connects the configured driver. The returned close func is
// never nil.
func OpenStores(cfg config.DatabaseConfig) (Stores, func() error, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return MemoryStores(memory.NewStore()), func() error { return nil }, nil
	case config.DriverPostgres, "":
		db, err := postgres.NewDB(cfg)
		if err != nil {
			return Stores{}, nil, err
		}
		return PostgresStores(db), db.Close, nil
	}
	return Stores{}, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

type Deps struct {
	Config    *config.Config
	Stores    Stores
	Publisher messaging.Publisher
	// Registry receives the HTTP metrics and is served on /metrics.
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Logger   *logger.Logger
}

// NewRouter builds every service and handler and returns a router with its
// routes registered.
func NewRouter(deps Deps) (*router.Router, error) {
	cfg := deps.Config
	loc, err := cfg.Scheduling.Location()
	if err != nil {
		return nil, err
	}
	if err := validator.Register(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	schedules := scheduleService.NewCachedRepository(deps.Stores.Schedules, cfg.Scheduling.ScheduleCacheTTL)
	engine := availability.NewEngine(
		schedules,
		deps.Stores.Services,
		deps.Stores.Appointments,
		availability.Config{
			Location:               loc,
			DefaultDurationMinutes: cfg.Scheduling.DefaultDurationMinutes,
			DefaultIntervalMinutes: cfg.Scheduling.DefaultSlotIntervalMinutes,
		},
		deps.Logger,
		deps.Metrics,
	)
	coordinator := ledger.NewCoordinator(deps.Stores.Transactions, deps.Publisher, deps.Logger, deps.Metrics)

	scheduleSvc := scheduleService.NewService(schedules, cfg.Scheduling.DefaultSlotIntervalMinutes, deps.Logger)
	catalogSvc := catalogService.NewService(deps.Stores.Services)
	appointmentSvc := appointmentService.NewService(
		deps.Stores.Appointments,
		deps.Stores.Services,
		coordinator,
		deps.Publisher,
		loc,
		deps.Logger,
		deps.Metrics,
	)
	payableSvc := billingService.NewService(deps.Stores.Payables, coordinator, loc, deps.Logger)
	receivableSvc := billingService.NewService(deps.Stores.Receivables, coordinator, loc, deps.Logger)
	ledgerSvc := ledger.NewService(deps.Stores.Transactions, loc, deps.Logger)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer)

	r := router.NewRouter(
		middleware.NewAuthMiddleware(jwtService),
		promhandler.New(MetricsNamespace, deps.Registry),
		health.NewHandler(deps.Stores.Pinger),
		[]router.Handler{
			schedule.NewHandler(scheduleSvc),
			catalog.NewHandler(catalogSvc),
			appointment.NewHandler(appointmentSvc, engine),
			billing.NewHandler(payableSvc),
			billing.NewHandler(receivableSvc),
			transaction.NewHandler(ledgerSvc),
		},
		router.RouterConfig{
			Mode:             cfg.Server.Mode,
			Timeout:          cfg.Server.Timeout(),
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			CORSConfig: middleware.CORSConfig{
				AllowOrigins: cfg.Server.AllowedOrigins,
				MaxAge:       middleware.DefaultCORSConfig().MaxAge,
			},
			Security: middleware.SecurityConfig{
				HSTSMaxAge: cfg.Server.HSTSMaxAge,
				NoStore:    true,
			},
			SizeLimit: middleware.SizeLimitConfig{
				MaxBodyBytes:   cfg.Server.MaxBodyBytes,
				MaxHeaderBytes: middleware.DefaultSizeLimitConfig().MaxHeaderBytes,
			},
		},
	)
	r.Setup()
	return r, nil
}
