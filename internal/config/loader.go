package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "APPRENTISSAGE"

// envKeys lists the nested keys that may be provided through the environment
// alone. viper only resolves AutomaticEnv for keys it already knows about, so
// LoadFromEnv binds them explicitly.
var envKeys = []string{
	"server.port", "server.mode",
	"database.host", "database.port", "database.user", "database.password",
	"database.db_name", "database.ssl_mode", "database.max_conns", "database.migration_path",
	"redis.enabled", "redis.addr", "redis.password", "redis.db", "redis.key_prefix",
	"kafka.enabled", "kafka.brokers", "kafka.client_id", "kafka.topic_prefix",
	"cache.backend",
	"cache.certification.max_entries", "cache.certification.ttl",
	"cache.organisme.max_entries", "cache.organisme.ttl",
	"import.concurrency", "import.persist", "import.publish", "import.index", "import.source_path",
	"referentiel.entreprise_base_url", "referentiel.entreprise_token",
	"referentiel.geo_base_url", "referentiel.timeout", "referentiel.rate_limit",
	"storage.enabled", "storage.endpoint", "storage.access_key_id", "storage.secret_access_key",
	"storage.use_ssl", "storage.region", "storage.report_bucket",
	"search.enabled", "search.addresses", "search.username", "search.password", "search.index",
	"log.level", "log.format",
	"metrics.enabled", "metrics.namespace",
}

// newViper builds a viper instance with YAML file type, the APPRENTISSAGE_ env
// prefix and a "." -> "_" key replacer so that "database.host" resolves to
// APPRENTISSAGE_DATABASE_HOST.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}
	return v
}

// Load reads the YAML file at configPath, merges APPRENTISSAGE_* overrides,
// applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from APPRENTISSAGE_* environment variables only.
//
//	APPRENTISSAGE_<SECTION>_<FIELD>   e.g.  APPRENTISSAGE_DATABASE_HOST
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch calls onChange with the re-parsed Config each time configPath changes
// on disk. Invalid intermediate states are skipped.
func Watch(configPath string, onChange func(*Config)) {
	v := newViper()
	v.SetConfigFile(configPath)
	_ = v.ReadInConfig()

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}
