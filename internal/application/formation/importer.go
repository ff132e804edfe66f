package formation

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	domain "github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/formation"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// Row outcomes reported to the Recorder.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Sink receives every successfully composed Formation.
type Sink interface {
	Write(ctx context.Context, f *domain.Formation) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, f *domain.Formation) error

func (fn SinkFunc) Write(ctx context.Context, f *domain.Formation) error { return fn(ctx, f) }

// MultiSink writes to every sink in order and stops at the first error.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, f *domain.Formation) error {
	for _, s := range m {
		if err := s.Write(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// RepositorySink persists formations through a domain repository.
func RepositorySink(repo domain.Repository) Sink {
	return SinkFunc(repo.Upsert)
}

// RowFailure describes a row that could not be composed.
type RowFailure struct {
	RunID                string           `json:"run_id"`
	CleMinistereEducatif string           `json:"cle_ministere_educatif"`
	Cfd                  string           `json:"cfd"`
	Rncp                 string           `json:"rncp"`
	Code                 errors.ErrorCode `json:"code"`
	Message              string           `json:"message"`
	At                   time.Time        `json:"at"`
}

// FailureReporter is told about every failed row. Reporting errors are
// logged and never abort the run.
type FailureReporter interface {
	ReportFailure(ctx context.Context, f RowFailure) error
}

// Recorder observes the importer.
type Recorder interface {
	RecordRow(outcome string, code errors.ErrorCode, d time.Duration)
	RecordRun(report RunReport)
	WorkerStarted()
	WorkerStopped()
}

type nopRecorder struct{}

func (nopRecorder) RecordRow(string, errors.ErrorCode, time.Duration) {}
func (nopRecorder) RecordRun(RunReport)                                {}
func (nopRecorder) WorkerStarted()                                     {}
func (nopRecorder) WorkerStopped()                                     {}

// RunReport summarizes an import run.
type RunReport struct {
	ID        string                   `json:"id"`
	StartedAt time.Time                `json:"started_at"`
	Total     int                      `json:"total"`
	Succeeded int                      `json:"succeeded"`
	Failed    int                      `json:"failed"`
	ByCode    map[errors.ErrorCode]int `json:"by_code"`
	Duration  time.Duration            `json:"duration"`
}

// ImporterConfig tunes the worker pool.
type ImporterConfig struct {
	Concurrency int
}

// Importer composes rows concurrently and hands results to a Sink.
type Importer struct {
	composer Composer
	sink     Sink
	failures FailureReporter
	recorder Recorder
	logger   logging.Logger
	cfg      ImporterConfig
	now      func() time.Time
}

type ImporterOption func(*Importer)

func WithFailureReporter(r FailureReporter) ImporterOption {
	return func(i *Importer) { i.failures = r }
}

func WithRecorder(r Recorder) ImporterOption {
	return func(i *Importer) { i.recorder = r }
}

func NewImporter(composer Composer, sink Sink, cfg ImporterConfig, log logging.Logger, opts ...ImporterOption) (*Importer, error) {
	if composer == nil {
		return nil, errors.InvalidParam("formation composer is required")
	}
	if sink == nil {
		return nil, errors.InvalidParam("formation sink is required")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	imp := &Importer{
		composer: composer,
		sink:     sink,
		recorder: nopRecorder{},
		logger:   log.Named("importer"),
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp, nil
}

// Run drains rows until the channel is closed or ctx is done.
//
// A row failing on its own data (bad identifier, unknown certification,
// unresolvable lieu, modalité or sessions) is counted and reported and the
// run continues. Any other error, including sink failures, stops the run and
// is returned unchanged next to the partial report. Cancellation is checked
// between rows.
func (imp *Importer) Run(ctx context.Context, rows <-chan domain.SourceRow) (RunReport, error) {
	started := imp.now()
	runID := uuid.NewString()
	log := imp.logger.With(logging.String("run_id", runID))
	log.Info("import run started", logging.Int("concurrency", imp.cfg.Concurrency))

	var (
		mu     sync.Mutex
		report = RunReport{ID: runID, StartedAt: started, ByCode: map[errors.ErrorCode]int{}}
	)
	count := func(code errors.ErrorCode) {
		mu.Lock()
		defer mu.Unlock()
		report.Total++
		if code == errors.CodeOK {
			report.Succeeded++
			return
		}
		report.Failed++
		report.ByCode[code]++
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < imp.cfg.Concurrency; w++ {
		g.Go(func() error {
			imp.recorder.WorkerStarted()
			defer imp.recorder.WorkerStopped()
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case row, ok := <-rows:
					if !ok {
						return nil
					}
					if err := imp.process(gctx, log, runID, row, count); err != nil {
						return err
					}
				}
			}
		})
	}
	err := g.Wait()

	mu.Lock()
	report.Duration = imp.now().Sub(started)
	final := report
	mu.Unlock()

	imp.recorder.RecordRun(final)
	fields := []logging.Field{
		logging.Int("total", final.Total),
		logging.Int("succeeded", final.Succeeded),
		logging.Int("failed", final.Failed),
		logging.Duration("duration", final.Duration),
	}
	if err != nil {
		log.Error("import run aborted", append(fields, logging.Err(err))...)
		return final, err
	}
	log.Info("import run finished", fields...)
	return final, nil
}

func (imp *Importer) process(ctx context.Context, log logging.Logger, runID string, row domain.SourceRow, count func(errors.ErrorCode)) error {
	start := imp.now()
	rowLog := log.With(logging.String("cle_ministere_educatif", row.CleMinistereEducatif))
	f, err := imp.composer.Compose(logging.WithContext(ctx, rowLog), row)
	if err != nil {
		if ctx.Err() != nil && (stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)) {
			return ctx.Err()
		}
		code := errors.GetCode(err)
		if !errors.IsRowFatal(code) {
			return errors.Wrap(err, errors.CodeUnknown, "formation compose failed").WithDetail(row.CleMinistereEducatif)
		}
		count(code)
		imp.recorder.RecordRow(OutcomeFailed, code, imp.now().Sub(start))
		rowLog.Warn("formation row rejected",
			logging.String("cfd", row.Cfd),
			logging.String("rncp", row.RncpCode),
			logging.String("formateur_siret", row.FormateurSiret),
			logging.String("formateur_uai", row.FormateurUai),
			logging.String("code", string(code)),
			logging.Err(err),
		)
		imp.reportFailure(ctx, log, RowFailure{
			RunID:                runID,
			CleMinistereEducatif: row.CleMinistereEducatif,
			Cfd:                  row.Cfd,
			Rncp:                 row.RncpCode,
			Code:                 code,
			Message:              err.Error(),
			At:                   imp.now(),
		})
		return nil
	}

	if err := imp.sink.Write(ctx, f); err != nil {
		return errors.Wrap(err, errors.CodeUnknown, "formation sink failed").WithDetail(row.CleMinistereEducatif)
	}
	count(errors.CodeOK)
	imp.recorder.RecordRow(OutcomeSucceeded, errors.CodeOK, imp.now().Sub(start))
	return nil
}

func (imp *Importer) reportFailure(ctx context.Context, log logging.Logger, f RowFailure) {
	if imp.failures == nil {
		return
	}
	if err := imp.failures.ReportFailure(ctx, f); err != nil {
		log.Warn("row failure could not be reported",
			logging.String("cle_ministere_educatif", f.CleMinistereEducatif),
			logging.Err(err),
		)
	}
}
