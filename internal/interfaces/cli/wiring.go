package cli

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	certapp "github.com/mission-apprentissage/api-apprentissage-sub004/internal/application/certification"
	appformation "github.com/mission-apprentissage/api-apprentissage-sub004/internal/application/formation"
	orgapp "github.com/mission-apprentissage/api-apprentissage-sub004/internal/application/organisme"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/config"
	domain "github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/formation"
	orgdomain "github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/organisme"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/cache"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/database/postgres"
	pgrepo "github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/database/postgres/repositories"
	redisclient "github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/database/redis"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/messaging/kafka"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/prometheus"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/referentiel"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/search/opensearch"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/interfaces/http/handlers"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// pipeline is the fully wired import: every adapter built from config, the
// checks the ops server probes and the resources to release afterwards.
type pipeline struct {
	importer *appformation.Importer
	checks   []handlers.HealthChecker
	metrics  prometheus.MetricsCollector
	closers  []func() error
	logger   logging.Logger
}

// pipelineOptions are the per-run overrides of the config file.
type pipelineOptions struct {
	persist     bool
	publish     bool
	index       bool
	concurrency int
	// out receives formations as JSON lines when no other sink is set.
	out io.Writer
}

func buildPipeline(cfg *config.Config, opts pipelineOptions, log logging.Logger) (_ *pipeline, err error) {
	p := &pipeline{logger: log}
	defer func() {
		if err != nil {
			_ = p.Close()
		}
	}()

	conn, err := postgres.NewConnection(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	p.closers = append(p.closers, conn.Close)
	p.checks = append(p.checks, handlers.NamedCheck("postgres", conn.HealthCheck))

	var recorder *prometheus.ImportMetrics
	if cfg.Metrics.Enabled {
		collector, cerr := prometheus.NewMetricsCollector(prometheus.CollectorConfigFrom(cfg.Metrics), log)
		if cerr != nil {
			return nil, cerr
		}
		p.metrics = collector
		recorder = prometheus.NewImportMetrics(collector)
	}

	var rdb *redisclient.Client
	if cfg.Redis.Enabled {
		rdb, err = redisclient.NewClient(cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, rdb.Close)
		p.checks = append(p.checks, handlers.NamedCheck("redis", rdb.HealthCheck))
	}

	memoOpts := []cache.MemoOption{cache.WithLogger(log)}
	if recorder != nil {
		memoOpts = append(memoOpts, cache.WithRecorder(recorder))
	}
	certMemo := cache.NewMemo("certification",
		memoStore[certapp.Result](cfg, rdb, "certification", cfg.Cache.Certification, log), memoOpts...)
	orgMemo := cache.NewMemo("organisme",
		memoStore[orgdomain.Result](cfg, rdb, "organisme", cfg.Cache.Organisme, log), memoOpts...)

	merger, err := certapp.NewMerger(pgrepo.NewCertificationStore(conn, log), pgrepo.NewSourceStore(conn, log), certMemo, log)
	if err != nil {
		return nil, err
	}

	registry, err := referentiel.NewEntrepriseClient(cfg.Referentiel, log)
	if err != nil {
		return nil, err
	}
	geo, err := referentiel.NewGeoClient(cfg.Referentiel, log)
	if err != nil {
		return nil, err
	}

	resolver, err := orgapp.NewResolver(pgrepo.NewOrganismeStore(conn, log), registry, geo, orgMemo, log)
	if err != nil {
		return nil, err
	}
	composer, err := appformation.NewComposer(merger, resolver, geo, log)
	if err != nil {
		return nil, err
	}

	var sinks appformation.MultiSink
	var importerOpts []appformation.ImporterOption
	if recorder != nil {
		importerOpts = append(importerOpts, appformation.WithRecorder(recorder))
	}
	if opts.persist {
		sinks = append(sinks, appformation.RepositorySink(pgrepo.NewFormationStore(conn, log)))
	}
	if opts.publish {
		producer, perr := kafka.NewProducer(kafka.ProducerConfigFrom(cfg.Kafka), log)
		if perr != nil {
			return nil, perr
		}
		p.closers = append(p.closers, producer.Close)
		publisher, perr := kafka.NewFormationPublisher(producer, kafka.NewTopics(cfg.Kafka.TopicPrefix), log)
		if perr != nil {
			return nil, perr
		}
		sinks = append(sinks, publisher)
		importerOpts = append(importerOpts, appformation.WithFailureReporter(publisher))
	}
	if opts.index {
		client, ierr := opensearch.NewClient(cfg.Search, log)
		if ierr != nil {
			return nil, ierr
		}
		p.checks = append(p.checks, handlers.NamedCheck("opensearch", client.Ping))
		indexer, ierr := opensearch.NewFormationIndexer(client, log)
		if ierr != nil {
			return nil, ierr
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Search.RequestTimeout)
		ierr = indexer.EnsureIndex(ctx)
		cancel()
		if ierr != nil {
			return nil, ierr
		}
		sinks = append(sinks, indexer)
	}
	var sink appformation.Sink = sinks
	if len(sinks) == 0 {
		sink = newJSONLinesSink(opts.out)
	}

	concurrency := cfg.Import.Concurrency
	if opts.concurrency > 0 {
		concurrency = opts.concurrency
	}
	p.importer, err = appformation.NewImporter(composer, sink,
		appformation.ImporterConfig{Concurrency: concurrency}, log, importerOpts...)
	if err != nil {
		return nil, err
	}

	log.Info("import pipeline ready",
		logging.Bool("persist", opts.persist),
		logging.Bool("publish", opts.publish),
		logging.Bool("index", opts.index),
		logging.String("cache_backend", cfg.Cache.Backend),
		logging.Int("concurrency", concurrency))
	return p, nil
}

// memoStore picks the lookup store for one memo: in-process only, or an
// in-process tier in front of redis.
func memoStore[V any](cfg *config.Config, rdb *redisclient.Client, name string, m config.MemoConfig, log logging.Logger) cache.Store[V] {
	near := cache.NewMemory[V](m.MaxEntries, m.TTL)
	if cfg.Cache.Backend != "redis" || rdb == nil {
		return near
	}
	far := cache.NewRedisStore[V](rdb, cfg.Redis.KeyPrefix+name+":", m.TTL)
	return cache.NewTiered[V](near, far, log)
}

// Close releases resources in reverse acquisition order and returns the
// first failure.
func (p *pipeline) Close() error {
	var first error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			p.logger.Warn("failed to release import resource", logging.Err(err))
			if first == nil {
				first = err
			}
		}
	}
	p.closers = nil
	return first
}

// jsonLinesSink writes each formation as one JSON document per line.
type jsonLinesSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newJSONLinesSink(w io.Writer) *jsonLinesSink {
	return &jsonLinesSink{enc: json.NewEncoder(w)}
}

func (s *jsonLinesSink) Write(_ context.Context, f *domain.Formation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(f); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to write formation")
	}
	return nil
}
