package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  port: 9091
  mode: release
database:
  host: db.internal
  port: 5432
  user: importer
  db_name: apprentissage
redis:
  enabled: true
  addr: redis.internal:6379
kafka:
  enabled: true
  brokers: ["kafka-1:9092", "kafka-2:9092"]
cache:
  backend: redis
  certification:
    max_entries: 200
    ttl: 30m
import:
  concurrency: 4
  publish: true
log:
  level: debug
  format: console
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, 9091, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 200, cfg.Cache.Certification.MaxEntries)
	assert.Equal(t, 30*time.Minute, cfg.Cache.Certification.TTL)
	// Untouched memo falls back to defaults.
	assert.Equal(t, DefaultOrganismeCacheSize, cfg.Cache.Organisme.MaxEntries)
	assert.Equal(t, 4, cfg.Import.Concurrency)
	assert.Equal(t, 16, cfg.Import.QueueDepth)
}

func TestLoad_FromFile_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_FromFile_InvalidYAML(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "import: ["))
	require.Error(t, err)
}

func TestLoad_FromFile_ValidationFailure(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "cache:\n  backend: memcached\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.backend")
}

func TestLoad_EnvOverride(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	t.Setenv("APPRENTISSAGE_IMPORT_CONCURRENCY", "12")
	t.Setenv("APPRENTISSAGE_DATABASE_HOST", "db-override")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Import.Concurrency)
	assert.Equal(t, "db-override", cfg.Database.Host)
}

func TestLoadFromEnv_DefaultsOnly(t *testing.T) {
	t.Setenv("APPRENTISSAGE_LOG_LEVEL", "warn")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, DefaultCacheBackend, cfg.Cache.Backend)
	assert.Equal(t, DefaultImportConcurrency, cfg.Import.Concurrency)
	assert.Equal(t, DefaultGeoBaseURL, cfg.Referentiel.GeoBaseURL)
}
