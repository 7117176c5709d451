package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/app"
	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/ledger"
	"github.com/jwalitptl/clinic-api/internal/worker"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

const healthPort = 8081

func setupHealthCheck(registry *prometheus.Registry, stores app.Stores, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := stores.Pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", healthPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "Health check server failed")
		}
	}()
	return srv
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Log.Console,
	}).With("service", "worker")
	log.Logger = *appLog.Zerolog()

	if cfg.Database.Driver == config.DriverMemory {
		appLog.Fatal(fmt.Errorf("driver %q", cfg.Database.Driver), "The reconciler needs a shared database")
	}

	loc, err := cfg.Scheduling.Location()
	if err != nil {
		appLog.Fatal(err, "Invalid scheduling timezone")
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(app.MetricsNamespace, registry)

	stores, closeStores, err := app.OpenStores(cfg.Database)
	if err != nil {
		appLog.Fatal(err, "Failed to connect to database")
	}
	defer closeStores()

	var broker messaging.Broker = messaging.NopBroker{}
	if cfg.Redis.URL != "" {
		broker, err = redis.NewRedisBroker(redis.Config{URL: cfg.Redis.URL, FailureThreshold: 5, OpenTimeout: 30 * time.Second}, appLog, m)
		if err != nil {
			appLog.Fatal(err, "Failed to create Redis broker")
		}
	}
	defer broker.Close()

	coordinator := ledger.NewCoordinator(stores.Transactions, messaging.NewEventPublisher(broker, cfg.Redis.Channel), appLog, m)
	reconciler := worker.NewLedgerReconciler(
		stores.LedgerGaps,
		stores.Appointments,
		stores.Services,
		[]repository.BillRepository{stores.Payables, stores.Receivables},
		coordinator,
		worker.ReconcilerConfig{
			Interval:  cfg.Reconciler.Interval,
			BatchSize: cfg.Reconciler.BatchSize,
			Location:  loc,
		},
		appLog,
		m,
	)

	healthSrv := setupHealthCheck(registry, stores, appLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLog.Info("Shutting down...")
		cancel()
	}()

	reconciler.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		appLog.Error(err, "Health server forced to shutdown")
	}
}
