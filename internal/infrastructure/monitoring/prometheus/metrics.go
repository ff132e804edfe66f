package prometheus

import (
	"strconv"
	"time"

	appformation "github.com/mission-apprentissage/api-apprentissage-sub004/internal/application/formation"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/cache"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// Row durations span a memo hit (sub-millisecond) to several registry calls.
var DefaultRowDurationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}

// ImportMetrics records importer and lookup cache activity. It implements the
// importer's Recorder and the cache AccessRecorder.
type ImportMetrics struct {
	RowsTotal          CounterVec
	RowDuration        HistogramVec
	RunsTotal          CounterVec
	LastRunRows        GaugeVec
	LastRunDuration    GaugeVec
	LastRunTimestamp   GaugeVec
	ActiveWorkers      GaugeVec
	CacheRequestsTotal CounterVec
}

// NewImportMetrics registers the import metrics on c.
func NewImportMetrics(c MetricsCollector) *ImportMetrics {
	return &ImportMetrics{
		RowsTotal: c.RegisterCounter("import_rows_total",
			"Catalogue rows processed, by outcome and error code.", "outcome", "code"),
		RowDuration: c.RegisterHistogram("import_row_duration_seconds",
			"Time spent composing one catalogue row.", DefaultRowDurationBuckets, "outcome"),
		RunsTotal: c.RegisterCounter("import_runs_total",
			"Completed import runs, by whether any row failed.", "clean"),
		LastRunRows: c.RegisterGauge("import_last_run_rows",
			"Rows of the last completed run, by outcome.", "outcome"),
		LastRunDuration: c.RegisterGauge("import_last_run_duration_seconds",
			"Wall time of the last completed run."),
		LastRunTimestamp: c.RegisterGauge("import_last_run_timestamp_seconds",
			"Unix time at which the last run completed."),
		ActiveWorkers: c.RegisterGauge("import_active_workers",
			"Importer workers currently running."),
		CacheRequestsTotal: c.RegisterCounter("lookup_cache_requests_total",
			"Lookup memo reads, by cache and result.", "cache", "result"),
	}
}

func (m *ImportMetrics) RecordRow(outcome string, code errors.ErrorCode, d time.Duration) {
	m.RowsTotal.WithLabelValues(outcome, string(code)).Inc()
	m.RowDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *ImportMetrics) RecordRun(report appformation.RunReport) {
	m.RunsTotal.WithLabelValues(strconv.FormatBool(report.Failed == 0)).Inc()
	m.LastRunRows.WithLabelValues(appformation.OutcomeSucceeded).Set(float64(report.Succeeded))
	m.LastRunRows.WithLabelValues(appformation.OutcomeFailed).Set(float64(report.Failed))
	m.LastRunDuration.WithLabelValues().Set(report.Duration.Seconds())
	m.LastRunTimestamp.WithLabelValues().Set(float64(report.StartedAt.Add(report.Duration).Unix()))
}

func (m *ImportMetrics) WorkerStarted() { m.ActiveWorkers.WithLabelValues().Inc() }
func (m *ImportMetrics) WorkerStopped() { m.ActiveWorkers.WithLabelValues().Dec() }

// RecordCacheAccess counts a memo read as a hit or a miss.
func (m *ImportMetrics) RecordCacheAccess(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequestsTotal.WithLabelValues(cache, result).Inc()
}

var (
	_ appformation.Recorder = (*ImportMetrics)(nil)
	_ cache.AccessRecorder  = (*ImportMetrics)(nil)
)
