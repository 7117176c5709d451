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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/app"
	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Log.Console,
	})
	// Middleware logs through the global logger.
	log.Logger = *appLog.Zerolog()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(app.MetricsNamespace, registry)

	// Initialize stores
	stores, closeStores, err := app.OpenStores(cfg.Database)
	if err != nil {
		appLog.Fatal(err, "failed to open stores", "driver", cfg.Database.Driver)
	}
	defer closeStores()

	// Initialize message broker
	var broker messaging.Broker = messaging.NopBroker{}
	if cfg.Redis.URL != "" {
		broker, err = redis.NewRedisBroker(redis.Config{
			URL:              cfg.Redis.URL,
			MaxRetries:       3,
			RetryBackoff:     100 * time.Millisecond,
			PoolSize:         10,
			FailureThreshold: 5,
			OpenTimeout:      30 * time.Second,
		}, appLog, m)
		if err != nil {
			appLog.Fatal(err, "failed to connect to Redis")
		}
	} else {
		appLog.Info("redis.url not set, events are dropped")
	}
	defer broker.Close()

	r, err := app.NewRouter(app.Deps{
		Config:    cfg,
		Stores:    stores,
		Publisher: messaging.NewEventPublisher(broker, cfg.Redis.Channel),
		Registry:  registry,
		Metrics:   m,
		Logger:    appLog,
	})
	if err != nil {
		appLog.Fatal(err, "failed to build router")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		appLog.Info("starting server", "port", cfg.Server.Port, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error(err, "server forced to shutdown")
	}

	appLog.Info("server exited")
}
