package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes"`
	HSTSMaxAge     int      `mapstructure:"hsts_max_age"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// DatabaseConfig selects the store. Driver "memory" keeps everything in
// process and ignores the connection fields.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type RedisConfig struct {
	URL     string `mapstructure:"url"`
	Channel string `mapstructure:"channel"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type SchedulingConfig struct {
	Timezone                   string        `mapstructure:"timezone"`
	DefaultSlotIntervalMinutes int           `mapstructure:"default_slot_interval_minutes"`
	DefaultDurationMinutes     int           `mapstructure:"default_duration_minutes"`
	ScheduleCacheTTL           time.Duration `mapstructure:"schedule_cache_ttl"`
}

// Location loads the clinic timezone used to interpret calendar dates.
func (s SchedulingConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduling.timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type ReconcilerConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

// Secrets are read from the environment and override the config file.
type Secrets struct {
	JWTSecret  string `envconfig:"JWT_SECRET"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	RedisURL   string `envconfig:"REDIS_URL"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.hsts_max_age", 31536000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("jwt.issuer", "clinic-api")
	v.SetDefault("redis.channel", "clinic.events")
	v.SetDefault("log.level", "info")
	v.SetDefault("scheduling.timezone", "America/Sao_Paulo")
	v.SetDefault("scheduling.default_slot_interval_minutes", 30)
	v.SetDefault("scheduling.default_duration_minutes", 60)
	v.SetDefault("scheduling.schedule_cache_ttl", 5*time.Minute)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("reconciler.interval", 10*time.Minute)
	v.SetDefault("reconciler.batch_size", 100)
}

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var secrets Secrets
	if err := envconfig.Process("clinic", &secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets from environment: %w", err)
	}
	config.applySecrets(secrets)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applySecrets(s Secrets) {
	if s.JWTSecret != "" {
		c.JWT.Secret = s.JWTSecret
	}
	if s.DBPassword != "" {
		c.Database.Password = s.DBPassword
	}
	if s.RedisURL != "" {
		c.Redis.URL = s.RedisURL
	}
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required (or CLINIC_JWT_SECRET)")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if c.Database.Driver != DriverPostgres && c.Database.Driver != DriverMemory {
		return fmt.Errorf("database.driver must be %q or %q", DriverPostgres, DriverMemory)
	}
	if c.Scheduling.DefaultSlotIntervalMinutes <= 0 {
		return fmt.Errorf("scheduling.default_slot_interval_minutes must be positive")
	}
	if c.Scheduling.DefaultDurationMinutes <= 0 {
		return fmt.Errorf("scheduling.default_duration_minutes must be positive")
	}
	if _, err := c.Scheduling.Location(); err != nil {
		return err
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate_limit.requests_per_second and rate_limit.burst must be positive")
	}
	return nil
}
