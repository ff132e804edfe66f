// Package certification provides the application service that reconciles a
// certification out of the BCN (CFD) and France Compétences (RNCP) sources.
package certification

import (
	"context"

	"golang.org/x/sync/errgroup"

	domain "github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/certification"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/cache"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// Result is a merged certification. Connue is true when it came from the
// reconciled catalog, false when it was rebuilt from the source records.
type Result struct {
	Certification *domain.Certification `json:"certification"`
	Connue        bool                  `json:"connue"`
}

// Merger resolves the certification of a (cfd, rncp) pair.
type Merger interface {
	// Merge returns the certification identified by cfd and rncp. A nil,
	// empty or "RNCPNR" rncp means the certification has no RNCP side.
	Merge(ctx context.Context, cfd string, rncp *string) (Result, error)
}

type mergerImpl struct {
	catalog domain.CatalogRepository
	sources domain.SourceRepository
	memo    *cache.Memo[Result]
	logger  logging.Logger
}

// NewMerger builds a Merger. memo is shared by every caller of the returned
// Merger and is keyed by the normalized identity.
func NewMerger(catalog domain.CatalogRepository, sources domain.SourceRepository, memo *cache.Memo[Result], log logging.Logger) (Merger, error) {
	if catalog == nil {
		return nil, errors.InvalidParam("certification catalog is required")
	}
	if sources == nil {
		return nil, errors.InvalidParam("certification source repository is required")
	}
	if memo == nil {
		return nil, errors.InvalidParam("certification memo is required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &mergerImpl{
		catalog: catalog,
		sources: sources,
		memo:    memo,
		logger:  log.Named("certification"),
	}, nil
}

func (m *mergerImpl) Merge(ctx context.Context, cfdRaw string, rncpRaw *string) (Result, error) {
	cfd := domain.NormalizeCfd(cfdRaw)
	if cfd == nil {
		return Result{}, errors.New(errors.ErrCodeCfdNotFound, "cfd code is empty")
	}
	var rncp *string
	if rncpRaw != nil {
		rncp = domain.NormalizeRncp(*rncpRaw)
	}

	return m.memo.GetOrLoad(ctx, domain.IdentityKey(cfd, rncp), func(ctx context.Context) (Result, error) {
		return m.load(ctx, *cfd, rncp)
	})
}

func (m *mergerImpl) load(ctx context.Context, cfd string, rncp *string) (Result, error) {
	known, err := m.catalog.FindByIdentite(ctx, &cfd, rncp)
	if err != nil {
		return Result{}, err
	}
	if known != nil {
		return Result{Certification: known, Connue: true}, nil
	}

	var (
		cfdRec  *domain.CfdRecord
		rncpRec *domain.RncpRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cfdRec, err = m.sources.FindCfd(gctx, cfd)
		return err
	})
	if rncp != nil {
		g.Go(func() error {
			var err error
			rncpRec, err = m.sources.FindRncp(gctx, *rncp)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	if cfdRec == nil {
		return Result{}, errors.New(errors.ErrCodeCfdNotFound, "cfd not found in BCN").WithDetail(cfd)
	}
	if rncp != nil && rncpRec == nil {
		return Result{}, errors.New(errors.ErrCodeRncpNotFound, "rncp not found in France Compétences").WithDetail(*rncp)
	}

	built, err := domain.Build(cfdRec, rncpRec)
	if err != nil {
		return Result{}, err
	}
	if err := built.PeriodeValidite.Check(); err != nil {
		logging.FromContext(ctx, m.logger).Warn("incoherent validity period",
			logging.String("cfd", cfd),
			logging.OptString("rncp", rncp),
			logging.Err(err),
		)
	}
	return Result{Certification: built, Connue: false}, nil
}
