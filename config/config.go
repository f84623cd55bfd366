// Package config loads Perfect Connect configuration.
//
// Values are layered, lowest precedence first:
//  1. defaults (New)
//  2. YAML file named by PERFECT_CONNECT_CONFIG
//  3. environment variables with the PC_ prefix
//
// Environment keys map onto sections by their first underscore:
// PC_DATABASE_URL -> database.url, PC_RECONCILE_BATCH_SIZE -> reconcile.batch_size.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/Moeed-Tahir/perfect-connect/internal/domain/social"
	"github.com/Moeed-Tahir/perfect-connect/internal/infrastructure/persistence/dynamo"
	"github.com/Moeed-Tahir/perfect-connect/internal/infrastructure/persistence/postgres"
	"github.com/Moeed-Tahir/perfect-connect/internal/infrastructure/persistence/redis"
)

const (
	// FileEnvVar names the variable holding the optional YAML config path.
	FileEnvVar = "PERFECT_CONNECT_CONFIG"

	// EnvPrefix is the prefix of override variables.
	EnvPrefix = "PC_"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendDynamo   = "dynamo"
	BackendMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	App           AppConfig           `koanf:"app"`
	HTTP          HTTPConfig          `koanf:"http"`
	Database      DatabaseConfig      `koanf:"database"`
	Redis         RedisConfig         `koanf:"redis"`
	Dynamo        DynamoConfig        `koanf:"dynamo"`
	Storage       StorageConfig       `koanf:"storage"`
	Scoring       ScoringConfig       `koanf:"scoring"`
	Reconcile     ReconcileConfig     `koanf:"reconcile"`
	Breaker       BreakerConfig       `koanf:"breaker"`
	Observability ObservabilityConfig `koanf:"observability"`

	// Features maps a feature name to its rollout percentage (0-100).
	Features map[string]int `koanf:"features"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name            string        `koanf:"name"`
	Environment     string        `koanf:"environment"`
	InstanceID      string        `koanf:"instance_id"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`

	// APIKeyHashes are bcrypt hashes of accepted API keys.
	// Empty disables the API key check.
	APIKeyHashes []string `koanf:"api_key_hashes"`

	// CORSOrigins lists allowed origins. Empty allows none.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimit is the number of requests allowed per RateWindow per client IP.
	// Zero disables rate limiting.
	RateLimit  int           `koanf:"rate_limit"`
	RateWindow time.Duration `koanf:"rate_window"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Name            string        `koanf:"name"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxConns        int32         `koanf:"max_conns"`
	MinConns        int32         `koanf:"min_conns"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `koanf:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// RedisConfig holds Redis settings.
type RedisConfig struct {
	// Disabled switches the event bus and notifier to in-process implementations.
	Disabled bool `koanf:"disabled"`

	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	PoolSize int    `koanf:"pool_size"`

	// EventChannel carries domain events between instances.
	EventChannel string `koanf:"event_channel"`

	// ParticipantCacheTTL is the TTL of cached participant profiles.
	ParticipantCacheTTL time.Duration `koanf:"participant_cache_ttl"`
}

// DynamoConfig holds DynamoDB settings.
type DynamoConfig struct {
	Region          string `koanf:"region"`
	Endpoint        string `koanf:"endpoint"`
	EdgeTable       string `koanf:"edge_table"`
	ConnectionTable string `koanf:"connection_table"`
}

// StorageConfig selects the store implementation.
type StorageConfig struct {
	// Backend is one of postgres, dynamo or memory. With dynamo, edges and
	// connections live in DynamoDB while participants and blocks stay in PostgreSQL.
	Backend string `koanf:"backend"`
}

// ScoringConfig feeds social.ScoringPolicy.
type ScoringConfig struct {
	AgeWindowYears        int    `koanf:"age_window_years"`
	LinkRequiresBothSides bool   `koanf:"link_requires_both_sides"`
	ScheduleRule          string `koanf:"schedule_rule"`
}

// ReconcileConfig holds reconciliation job settings.
type ReconcileConfig struct {
	Interval     time.Duration `koanf:"interval"`
	BatchSize    int           `koanf:"batch_size"`
	Timeout      time.Duration `koanf:"timeout"`
	MaxAttempts  int           `koanf:"max_attempts"`
	InitialDelay time.Duration `koanf:"initial_delay"`
	LockTTL      time.Duration `koanf:"lock_ttl"`
	RunOnStart   bool          `koanf:"run_on_start"`
}

// BreakerConfig holds storage circuit breaker settings.
type BreakerConfig struct {
	FailureThreshold int           `koanf:"failure_threshold"`
	Timeout          time.Duration `koanf:"timeout"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel       string `koanf:"log_level"`
	LogFormat      string `koanf:"log_format"`
	MetricsEnabled bool   `koanf:"metrics_enabled"`
	MetricsPrefix  string `koanf:"metrics_prefix"`
}

// New returns the default configuration.
func New() *Config {
	pg := postgres.DefaultConfig()
	rd := redis.DefaultConfig()
	dy := dynamo.DefaultConfig()
	policy := social.DefaultScoringPolicy()

	return &Config{
		App: AppConfig{
			Name:            "perfect-connect",
			Environment:     "development",
			ShutdownTimeout: 15 * time.Second,
		},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
			RateLimit:    100,
			RateWindow:   time.Minute,
		},
		Database: DatabaseConfig{
			Host:            pg.Host,
			Port:            pg.Port,
			Name:            pg.Database,
			User:            pg.User,
			SSLMode:         pg.SSLMode,
			MaxConns:        pg.MaxConns,
			MinConns:        pg.MinConns,
			MaxConnLifetime: pg.MaxConnLifetime,
			MaxConnIdleTime: pg.MaxConnIdleTime,
			ConnectTimeout:  pg.ConnectTimeout,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{
			Host:                rd.Host,
			Port:                rd.Port,
			PoolSize:            rd.PoolSize,
			EventChannel:        "perfect-connect:events",
			ParticipantCacheTTL: redis.TTLParticipantCache,
		},
		Dynamo: DynamoConfig{
			Region:          dy.Region,
			EdgeTable:       dy.EdgeTable,
			ConnectionTable: dy.ConnectionTable,
		},
		Storage: StorageConfig{
			Backend: BackendPostgres,
		},
		Scoring: ScoringConfig{
			AgeWindowYears:        policy.AgeWindowYears,
			LinkRequiresBothSides: policy.LinkRequiresBothSides,
			ScheduleRule:          string(policy.ScheduleRule),
		},
		Reconcile: ReconcileConfig{
			Interval:     15 * time.Minute,
			BatchSize:    500,
			Timeout:      5 * time.Minute,
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			LockTTL:      10 * time.Minute,
			RunOnStart:   true,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			Timeout:          30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			MetricsEnabled: true,
			MetricsPrefix:  "perfect_connect",
		},
		Features: map[string]int{},
	}
}

// Load builds a Config by layering defaults, the optional file, and env vars.
func Load(ctx context.Context) (*Config, error) {
	return load(os.Getenv(FileEnvVar))
}

func load(path string) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps PC_RECONCILE_BATCH_SIZE to reconcile.batch_size.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr must not be empty"))
	}
	if c.HTTP.RateLimit < 0 {
		errs = append(errs, errors.New("http.rate_limit must not be negative"))
	}
	if c.HTTP.RateLimit > 0 && c.HTTP.RateWindow <= 0 {
		errs = append(errs, errors.New("http.rate_window must be positive when rate limiting is on"))
	}

	switch c.Storage.Backend {
	case BackendPostgres, BackendMemory:
	case BackendDynamo:
		if c.Dynamo.EdgeTable == "" || c.Dynamo.ConnectionTable == "" {
			errs = append(errs, errors.New("dynamo tables must be set for the dynamo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be postgres, dynamo or memory, got %q", c.Storage.Backend))
	}

	if err := c.ScoringPolicy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scoring: %w", err))
	}

	if c.Reconcile.Interval <= 0 {
		errs = append(errs, errors.New("reconcile.interval must be positive"))
	}
	if c.Reconcile.BatchSize <= 0 {
		errs = append(errs, errors.New("reconcile.batch_size must be positive"))
	}
	if c.Reconcile.MaxAttempts <= 0 {
		errs = append(errs, errors.New("reconcile.max_attempts must be positive"))
	}

	if c.Breaker.FailureThreshold <= 0 {
		errs = append(errs, errors.New("breaker.failure_threshold must be positive"))
	}

	for name, pct := range c.Features {
		if pct < 0 || pct > 100 {
			errs = append(errs, fmt.Errorf("features.%s: rollout must be 0-100, got %d", name, pct))
		}
	}

	return errors.Join(errs...)
}

// ScoringPolicy converts the scoring section to the domain policy.
func (c *Config) ScoringPolicy() social.ScoringPolicy {
	return social.ScoringPolicy{
		AgeWindowYears:        c.Scoring.AgeWindowYears,
		LinkRequiresBothSides: c.Scoring.LinkRequiresBothSides,
		ScheduleRule:          social.ScheduleRule(c.Scoring.ScheduleRule),
	}
}

// PostgresConfig converts the database section to the driver config.
func (c *Config) PostgresConfig() postgres.Config {
	pg := postgres.DefaultConfig()
	pg.URL = c.Database.URL
	pg.Host = c.Database.Host
	pg.Port = c.Database.Port
	pg.Database = c.Database.Name
	pg.User = c.Database.User
	pg.Password = c.Database.Password
	pg.SSLMode = c.Database.SSLMode
	pg.MaxConns = c.Database.MaxConns
	pg.MinConns = c.Database.MinConns
	pg.MaxConnLifetime = c.Database.MaxConnLifetime
	pg.MaxConnIdleTime = c.Database.MaxConnIdleTime
	pg.ConnectTimeout = c.Database.ConnectTimeout
	return pg
}

// RedisClientConfig converts the redis section to the client config.
func (c *Config) RedisClientConfig() redis.Config {
	rd := redis.DefaultConfig()
	rd.Host = c.Redis.Host
	rd.Port = c.Redis.Port
	rd.Password = c.Redis.Password
	rd.DB = c.Redis.DB
	if c.Redis.PoolSize > 0 {
		rd.PoolSize = c.Redis.PoolSize
	}
	return rd
}

// DynamoClientConfig converts the dynamo section to the client config.
func (c *Config) DynamoClientConfig() dynamo.Config {
	return dynamo.Config{
		Region:          c.Dynamo.Region,
		Endpoint:        c.Dynamo.Endpoint,
		EdgeTable:       c.Dynamo.EdgeTable,
		ConnectionTable: c.Dynamo.ConnectionTable,
	}
}

// IsProduction returns true if running in production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
