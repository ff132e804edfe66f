// Package config defines the configuration structures of the importer. No I/O
// or parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds the ops HTTP server tunables (/healthz, /metrics).
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	DBName           string        `mapstructure:"db_name"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	MaxConns         int           `mapstructure:"max_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	MigrationPath    string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters. Redis backs the shared tier
// of the lookup cache and is optional.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds the producer parameters used to publish imported entities.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	ClientID     string        `mapstructure:"client_id"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	Compression  string        `mapstructure:"compression"`
	TopicPrefix  string        `mapstructure:"topic_prefix"`
}

// MemoConfig sizes one lookup memo.
type MemoConfig struct {
	MaxEntries int           `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// CacheConfig holds the lookup cache parameters per memoized entity.
type CacheConfig struct {
	Backend       string     `mapstructure:"backend"` // "memory" | "redis"
	Certification MemoConfig `mapstructure:"certification"`
	Organisme     MemoConfig `mapstructure:"organisme"`
}

// ImportConfig holds batch execution parameters.
type ImportConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	QueueDepth  int    `mapstructure:"queue_depth"`
	Persist     bool   `mapstructure:"persist"`
	Publish     bool   `mapstructure:"publish"`
	Index       bool   `mapstructure:"index"`
	SourcePath  string `mapstructure:"source_path"`
}

// ReferentielConfig holds the company-registry and geographic referential
// client parameters.
type ReferentielConfig struct {
	EntrepriseBaseURL string        `mapstructure:"entreprise_base_url"`
	EntrepriseToken   string        `mapstructure:"entreprise_token"`
	GeoBaseURL        string        `mapstructure:"geo_base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RateLimit         float64       `mapstructure:"rate_limit"` // requests per second
	Burst             int           `mapstructure:"burst"`
}

// StorageConfig holds the S3-compatible object store the catalogue exports
// are read from and run reports are archived to. Storage is optional.
type StorageConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	ReportBucket    string `mapstructure:"report_bucket"`
	// ReportRetentionDays expires archived reports; 0 keeps them forever.
	ReportRetentionDays int `mapstructure:"report_retention_days"`
}

// SearchConfig holds the OpenSearch cluster formations are indexed into.
type SearchConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Addresses      []string      `mapstructure:"addresses"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	Index          string        `mapstructure:"index"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	// Refresh is passed through on every write: "true", "wait_for" or "false".
	Refresh string `mapstructure:"refresh"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
	Output string `mapstructure:"output"`
}

// MetricsConfig holds Prometheus parameters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Subsystem string `mapstructure:"subsystem"`
	Path      string `mapstructure:"path"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Import      ImportConfig      `mapstructure:"import"`
	Referentiel ReferentielConfig `mapstructure:"referentiel"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Search      SearchConfig      `mapstructure:"search"`
	Log         LogConfig         `mapstructure:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config and
// returns the first error encountered.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker when kafka is enabled")
	}
	if c.Import.Publish && !c.Kafka.Enabled {
		return fmt.Errorf("config: import.publish requires kafka.enabled")
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("config: cache.backend redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("config: cache.backend %q is invalid; expected memory|redis", c.Cache.Backend)
	}
	for name, m := range map[string]MemoConfig{
		"certification": c.Cache.Certification,
		"organisme":     c.Cache.Organisme,
	} {
		if m.MaxEntries < 1 {
			return fmt.Errorf("config: cache.%s.max_entries must be >= 1, got %d", name, m.MaxEntries)
		}
		if m.TTL <= 0 {
			return fmt.Errorf("config: cache.%s.ttl must be positive", name)
		}
	}

	if c.Search.Enabled {
		if len(c.Search.Addresses) == 0 {
			return fmt.Errorf("config: search.addresses must contain at least one address when search is enabled")
		}
		if c.Search.Index == "" {
			return fmt.Errorf("config: search.index is required when search is enabled")
		}
	}
	if c.Import.Index && !c.Search.Enabled {
		return fmt.Errorf("config: import.index requires search.enabled")
	}
	switch c.Search.Refresh {
	case "true", "false", "wait_for":
	default:
		return fmt.Errorf("config: search.refresh %q is invalid; expected true|false|wait_for", c.Search.Refresh)
	}

	if c.Import.Concurrency < 1 {
		return fmt.Errorf("config: import.concurrency must be >= 1, got %d", c.Import.Concurrency)
	}

	for name, raw := range map[string]string{
		"entreprise_base_url": c.Referentiel.EntrepriseBaseURL,
		"geo_base_url":        c.Referentiel.GeoBaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config: referentiel.%s %q is not an absolute URL", name, raw)
		}
	}
	if c.Referentiel.RateLimit <= 0 {
		return fmt.Errorf("config: referentiel.rate_limit must be positive")
	}

	if c.Storage.Enabled {
		if c.Storage.Endpoint == "" {
			return fmt.Errorf("config: storage.endpoint is required when storage is enabled")
		}
		if c.Storage.ReportBucket == "" {
			return fmt.Errorf("config: storage.report_bucket is required when storage is enabled")
		}
	}
	if c.Storage.ReportRetentionDays < 0 {
		return fmt.Errorf("config: storage.report_retention_days must be >= 0, got %d", c.Storage.ReportRetentionDays)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
