package config

import "time"

const (
	DefaultServerPort = 9090
	DefaultServerMode = "release"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "apprentissage"
	DefaultDBMaxConns = 25

	DefaultRedisAddr   = "localhost:6379"
	DefaultRedisPrefix = "apprentissage:"

	DefaultKafkaBroker   = "localhost:9092"
	DefaultKafkaClientID = "apprentissage-importer"

	DefaultCacheBackend = "memory"

	// Certification lookups are few and stable within a run.
	DefaultCertificationCacheSize = 5000
	DefaultCertificationCacheTTL  = time.Hour

	DefaultOrganismeCacheSize = 10000
	DefaultOrganismeCacheTTL  = time.Hour

	DefaultImportConcurrency = 8

	DefaultEntrepriseBaseURL = "https://entreprise.api.gouv.fr/v3"
	DefaultGeoBaseURL        = "https://geo.api.gouv.fr"
	DefaultReferentielRate   = 7.0
	DefaultReferentielBurst  = 1

	DefaultStorageEndpoint     = "localhost:9000"
	DefaultStorageRegion       = "eu-west-3"
	DefaultStorageReportBucket = "apprentissage-import-reports"

	DefaultSearchAddress = "http://localhost:9200"
	DefaultSearchIndex   = "formations"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsNamespace = "apprentissage"
	DefaultMetricsSubsystem = "import"
	DefaultMetricsPath      = "/metrics"
)

// ApplyDefaults fills every zero-value field in cfg with its default. Fields
// already set are left unchanged so that explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 5 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "migrations"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisPrefix
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = DefaultKafkaClientID
	}
	if cfg.Kafka.BatchSize == 0 {
		cfg.Kafka.BatchSize = 100
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = time.Second
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = 3
	}

	// ── Cache ─────────────────────────────────────────────────────────────────
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = DefaultCacheBackend
	}
	if cfg.Cache.Certification.MaxEntries == 0 {
		cfg.Cache.Certification.MaxEntries = DefaultCertificationCacheSize
	}
	if cfg.Cache.Certification.TTL == 0 {
		cfg.Cache.Certification.TTL = DefaultCertificationCacheTTL
	}
	if cfg.Cache.Organisme.MaxEntries == 0 {
		cfg.Cache.Organisme.MaxEntries = DefaultOrganismeCacheSize
	}
	if cfg.Cache.Organisme.TTL == 0 {
		cfg.Cache.Organisme.TTL = DefaultOrganismeCacheTTL
	}

	// ── Import ────────────────────────────────────────────────────────────────
	if cfg.Import.Concurrency == 0 {
		cfg.Import.Concurrency = DefaultImportConcurrency
	}
	if cfg.Import.QueueDepth == 0 {
		cfg.Import.QueueDepth = cfg.Import.Concurrency * 4
	}

	// ── Referentiel ───────────────────────────────────────────────────────────
	if cfg.Referentiel.EntrepriseBaseURL == "" {
		cfg.Referentiel.EntrepriseBaseURL = DefaultEntrepriseBaseURL
	}
	if cfg.Referentiel.GeoBaseURL == "" {
		cfg.Referentiel.GeoBaseURL = DefaultGeoBaseURL
	}
	if cfg.Referentiel.Timeout == 0 {
		cfg.Referentiel.Timeout = 10 * time.Second
	}
	if cfg.Referentiel.RateLimit == 0 {
		cfg.Referentiel.RateLimit = DefaultReferentielRate
	}
	if cfg.Referentiel.Burst == 0 {
		cfg.Referentiel.Burst = DefaultReferentielBurst
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	if cfg.Storage.Endpoint == "" {
		cfg.Storage.Endpoint = DefaultStorageEndpoint
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = DefaultStorageRegion
	}
	if cfg.Storage.ReportBucket == "" {
		cfg.Storage.ReportBucket = DefaultStorageReportBucket
	}

	// ── Search ────────────────────────────────────────────────────────────────
	if len(cfg.Search.Addresses) == 0 {
		cfg.Search.Addresses = []string{DefaultSearchAddress}
	}
	if cfg.Search.Index == "" {
		cfg.Search.Index = DefaultSearchIndex
	}
	if cfg.Search.RequestTimeout == 0 {
		cfg.Search.RequestTimeout = 30 * time.Second
	}
	if cfg.Search.MaxRetries == 0 {
		cfg.Search.MaxRetries = 3
	}
	if cfg.Search.Refresh == "" {
		cfg.Search.Refresh = "false"
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}
