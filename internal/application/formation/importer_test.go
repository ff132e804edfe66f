package formation

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	certapp "github.com/mission-apprentissage/api-apprentissage-sub004/internal/application/certification"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/certification"
	domain "github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/formation"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/organisme"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/cache"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/testutil"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

type composerFunc func(ctx context.Context, row domain.SourceRow) (*domain.Formation, error)

func (fn composerFunc) Compose(ctx context.Context, row domain.SourceRow) (*domain.Formation, error) {
	return fn(ctx, row)
}

type collectingSink struct {
	mu   sync.Mutex
	keys []string
}

func (c *collectingSink) Write(_ context.Context, f *domain.Formation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, f.Identifiant.CleMinistereEducatif)
	return nil
}

type collectingReporter struct {
	mu       sync.Mutex
	failures []RowFailure
	err      error
}

func (c *collectingReporter) ReportFailure(_ context.Context, f RowFailure) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, f)
	return c.err
}

type countingRecorder struct {
	mu      sync.Mutex
	rows    map[string]int
	runs    int
	workers int
}

func (r *countingRecorder) RecordRow(outcome string, _ errors.ErrorCode, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rows == nil {
		r.rows = map[string]int{}
	}
	r.rows[outcome]++
}

func (r *countingRecorder) RecordRun(RunReport) { r.mu.Lock(); r.runs++; r.mu.Unlock() }
func (r *countingRecorder) WorkerStarted()      { r.mu.Lock(); r.workers++; r.mu.Unlock() }
func (r *countingRecorder) WorkerStopped()      { r.mu.Lock(); r.workers--; r.mu.Unlock() }

func feed(rows ...domain.SourceRow) <-chan domain.SourceRow {
	ch := make(chan domain.SourceRow, len(rows))
	for _, r := range rows {
		ch <- r
	}
	close(ch)
	return ch
}

func rowKeyed(key string) domain.SourceRow {
	return domain.SourceRow{CleMinistereEducatif: key}
}

// okUnlessPrefixed fails rows whose key starts with "bad-" on their data.
func okUnlessPrefixed(_ context.Context, row domain.SourceRow) (*domain.Formation, error) {
	if len(row.CleMinistereEducatif) > 4 && row.CleMinistereEducatif[:4] == "bad-" {
		return nil, errors.New(errors.ErrCodeCfdNotFound, "cfd not found")
	}
	return &domain.Formation{Identifiant: domain.Identifiant{CleMinistereEducatif: row.CleMinistereEducatif}}, nil
}

func TestImporter_RowFailuresAreIsolated(t *testing.T) {
	sink := &collectingSink{}
	reporter := &collectingReporter{}
	recorder := &countingRecorder{}
	logger := testutil.NewMockLogger()

	imp, err := NewImporter(composerFunc(okUnlessPrefixed), sink, ImporterConfig{Concurrency: 4}, logger,
		WithFailureReporter(reporter), WithRecorder(recorder))
	require.NoError(t, err)

	var rows []domain.SourceRow
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("ok-%02d", i)
		if i%5 == 0 {
			key = fmt.Sprintf("bad-%02d", i)
		}
		rows = append(rows, rowKeyed(key))
	}

	report, err := imp.Run(context.Background(), feed(rows...))
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, 20, report.Total)
	assert.Equal(t, 16, report.Succeeded)
	assert.Equal(t, 4, report.Failed)
	assert.Equal(t, 4, report.ByCode[errors.ErrCodeCfdNotFound])
	assert.Len(t, sink.keys, 16)

	require.Len(t, reporter.failures, 4)
	for _, f := range reporter.failures {
		assert.Equal(t, report.ID, f.RunID)
		assert.Equal(t, errors.ErrCodeCfdNotFound, f.Code)
	}

	assert.Equal(t, 16, recorder.rows[OutcomeSucceeded])
	assert.Equal(t, 4, recorder.rows[OutcomeFailed])
	assert.Equal(t, 1, recorder.runs)
	assert.Equal(t, 0, recorder.workers)
	assert.Len(t, logger.ByLevel("warn"), 4)
}

func TestImporter_InfrastructureErrorAbortsRun(t *testing.T) {
	boom := stderrors.New("pq: connection refused")
	composer := composerFunc(func(ctx context.Context, row domain.SourceRow) (*domain.Formation, error) {
		if row.CleMinistereEducatif == "k-3" {
			return nil, boom
		}
		return okUnlessPrefixed(ctx, row)
	})

	imp, err := NewImporter(composer, &collectingSink{}, ImporterConfig{Concurrency: 1}, nil)
	require.NoError(t, err)

	report, err := imp.Run(context.Background(), feed(rowKeyed("k-1"), rowKeyed("k-2"), rowKeyed("k-3"), rowKeyed("k-4")))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, report.Succeeded)
}

func TestImporter_SinkErrorAbortsRun(t *testing.T) {
	repo := new(testutil.MockFormationRepository)
	repo.On("Upsert", mock.Anything, mock.Anything).Return(errors.New(errors.ErrCodeDatabaseError, "upsert failed"))

	imp, err := NewImporter(composerFunc(okUnlessPrefixed), RepositorySink(repo), ImporterConfig{Concurrency: 2}, nil)
	require.NoError(t, err)

	_, err = imp.Run(context.Background(), feed(rowKeyed("k-1")))
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
}

func TestImporter_ReporterErrorsDoNotAbort(t *testing.T) {
	reporter := &collectingReporter{err: stderrors.New("kafka down")}
	imp, err := NewImporter(composerFunc(okUnlessPrefixed), &collectingSink{}, ImporterConfig{Concurrency: 1}, nil,
		WithFailureReporter(reporter))
	require.NoError(t, err)

	report, err := imp.Run(context.Background(), feed(rowKeyed("bad-1"), rowKeyed("ok-1")))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Succeeded)
}

func TestImporter_CancellationStopsBetweenRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rows := make(chan domain.SourceRow)
	sink := &collectingSink{}

	imp, err := NewImporter(composerFunc(okUnlessPrefixed), sink, ImporterConfig{Concurrency: 2}, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	var runErr error
	go func() {
		defer close(done)
		_, runErr = imp.Run(ctx, rows)
	}()

	rows <- rowKeyed("k-1")
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("importer did not stop after cancellation")
	}
	assert.ErrorIs(t, runErr, context.Canceled)
}

func TestImporter_MultiSinkWritesAll(t *testing.T) {
	a, b := &collectingSink{}, &collectingSink{}
	imp, err := NewImporter(composerFunc(okUnlessPrefixed), MultiSink{a, b}, ImporterConfig{Concurrency: 3}, nil)
	require.NoError(t, err)

	report, err := imp.Run(context.Background(), feed(rowKeyed("k-1"), rowKeyed("k-2")))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.ElementsMatch(t, a.keys, b.keys)
}

func TestNewImporter_RequiresDependencies(t *testing.T) {
	_, err := NewImporter(nil, &collectingSink{}, ImporterConfig{}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
	_, err = NewImporter(composerFunc(okUnlessPrefixed), nil, ImporterConfig{}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

// gatedCatalog holds every lookup until release is closed and, like a SQL
// driver, gives up when its context ends.
type gatedCatalog struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	calls   int32
	known   *certification.Certification
}

func (g *gatedCatalog) FindByIdentite(ctx context.Context, _, _ *string) (*certification.Certification, error) {
	atomic.AddInt32(&g.calls, 1)
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
		return g.known, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedCatalog) Upsert(context.Context, *certification.Certification) error { return nil }

func TestImporter_SharedCertificationLoadSurvivesFailingRow(t *testing.T) {
	catalog := &gatedCatalog{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		known:   &certification.Certification{Identifiant: certification.Identifiant{Cfd: strp("50022135")}},
	}
	memo := cache.NewMemo[certapp.Result]("certification", cache.NewMemory[certapp.Result](10, time.Hour))
	merger, err := certapp.NewMerger(catalog, new(testutil.MockCertificationSource), memo, nil)
	require.NoError(t, err)

	resolver := new(mockResolver)
	resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(organisme.Result{}, nil)

	good := sampleRow()
	good.CleMinistereEducatif = "row-good"
	bad := sampleRow()
	bad.CleMinistereEducatif = "row-bad"
	bad.CodeCommuneInsee = "BAD"
	bad.CodePostal = "00000"

	goodStarted := make(chan struct{})
	geo := new(testutil.MockGeoReferential)
	geo.On("FindCommuneByInsee", mock.Anything, "69381").
		Run(func(mock.Arguments) { close(goodStarted) }).Return(lyon(), nil)
	// The bad row fails only once both rows wait on the same certification load.
	geo.On("FindCommuneByInsee", mock.Anything, "BAD").
		Run(func(mock.Arguments) {
			<-catalog.entered
			<-goodStarted
			time.Sleep(20 * time.Millisecond)
		}).Return(nil, nil)
	geo.On("FindCommuneByPostal", mock.Anything, "00000").
		Run(func(mock.Arguments) {
			time.AfterFunc(20*time.Millisecond, func() { close(catalog.release) })
		}).Return(nil, nil)

	composer, err := NewComposer(merger, resolver, geo, nil)
	require.NoError(t, err)

	sink := &collectingSink{}
	reporter := &collectingReporter{}
	imp, err := NewImporter(composer, sink, ImporterConfig{Concurrency: 2}, testutil.NewMockLogger(),
		WithFailureReporter(reporter))
	require.NoError(t, err)

	report, err := imp.Run(context.Background(), feed(bad, good))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.ByCode[errors.ErrCodeCommuneNotFound])
	assert.Equal(t, []string{"row-good"}, sink.keys)
	require.Len(t, reporter.failures, 1)
	assert.Equal(t, "row-bad", reporter.failures[0].CleMinistereEducatif)
	assert.Equal(t, int32(1), atomic.LoadInt32(&catalog.calls))
}

func TestImporter_ComposerLogsWithRowScope(t *testing.T) {
	logger := testutil.NewMockLogger()
	compose := func(ctx context.Context, row domain.SourceRow) (*domain.Formation, error) {
		logging.FromContext(ctx, nil).Info("composing")
		return okUnlessPrefixed(ctx, row)
	}
	imp, err := NewImporter(composerFunc(compose), &collectingSink{}, ImporterConfig{Concurrency: 1}, logger)
	require.NoError(t, err)

	_, err = imp.Run(context.Background(), feed(rowKeyed("ok-1")))
	require.NoError(t, err)

	var found bool
	for _, msg := range logger.GetMessages() {
		if msg.Message == "composing" {
			found = true
			assert.Equal(t, "ok-1", msg.Field("cle_ministere_educatif"))
			assert.NotEmpty(t, msg.Field("run_id"))
		}
	}
	assert.True(t, found)
}
