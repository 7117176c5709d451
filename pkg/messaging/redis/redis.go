package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// publishClient is the part of *redis.Client the broker uses.
type publishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

type RedisBroker struct {
	client  publishClient
	cb      *gobreaker.CircuitBreaker
	logger  *logger.Logger
	metrics *metrics.Metrics
}

type Config struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
	// FailureThreshold is the number of consecutive publish failures that
	// opens the breaker.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

func NewRedisBroker(config Config, log *logger.Logger, m *metrics.Metrics) (messaging.Broker, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pooling
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}
	if config.RetryBackoff > 0 {
		opts.MinRetryBackoff = config.RetryBackoff
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newBroker(client, config, log, m), nil
}

func newBroker(client publishClient, config Config, log *logger.Logger, m *metrics.Metrics) *RedisBroker {
	threshold := config.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	timeout := config.OpenTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	b := &RedisBroker{client: client, logger: log, metrics: m}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-broker",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return b
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	start := time.Now()
	_, err = b.cb.Execute(func() (interface{}, error) {
		return nil, b.client.Publish(ctx, channel, payload).Err()
	})
	b.metrics.RedisLatency.WithLabelValues("publish").Observe(time.Since(start).Seconds())

	if err != nil {
		b.metrics.RedisOperations.WithLabelValues("publish", "error").Inc()
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	b.metrics.RedisOperations.WithLabelValues("publish", "success").Inc()
	return nil
}

// State exposes the breaker state for the readiness probe.
func (b *RedisBroker) State() gobreaker.State {
	return b.cb.State()
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
