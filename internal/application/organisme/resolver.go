// Package organisme provides the application service that resolves the
// training organism behind a (siret, uai) pair.
package organisme

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/identifier"
	domain "github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/organisme"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/cache"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// Resolver finds a cataloged Organisme or synthesizes one from the company
// registry.
type Resolver interface {
	// Resolve never fails on bad or unknown identifiers: those yield
	// Result{nil, false}. Only upstream failures are returned as errors.
	Resolve(ctx context.Context, siret, uai *string) (domain.Result, error)
}

type resolverImpl struct {
	catalog  domain.CatalogRepository
	registry domain.CompanyRegistry
	geo      domain.GeoReferential
	memo     *cache.Memo[domain.Result]
	logger   logging.Logger
}

func NewResolver(
	catalog domain.CatalogRepository,
	registry domain.CompanyRegistry,
	geo domain.GeoReferential,
	memo *cache.Memo[domain.Result],
	log logging.Logger,
) (Resolver, error) {
	switch {
	case catalog == nil:
		return nil, errors.InvalidParam("organisme catalog is required")
	case registry == nil:
		return nil, errors.InvalidParam("company registry is required")
	case geo == nil:
		return nil, errors.InvalidParam("geographic referential is required")
	case memo == nil:
		return nil, errors.InvalidParam("organisme memo is required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &resolverImpl{
		catalog:  catalog,
		registry: registry,
		geo:      geo,
		memo:     memo,
		logger:   log.Named("organisme"),
	}, nil
}

func (r *resolverImpl) Resolve(ctx context.Context, siretRaw, uaiRaw *string) (domain.Result, error) {
	siret := normalizeSiret(siretRaw)
	if siret == "" {
		return domain.Result{}, nil
	}
	uai := normalizeUai(uaiRaw)

	return r.memo.GetOrLoad(ctx, domain.Key(siret, uai), func(ctx context.Context) (domain.Result, error) {
		return r.load(ctx, siret, uai)
	})
}

func (r *resolverImpl) load(ctx context.Context, siret string, uai *string) (domain.Result, error) {
	if uai != nil {
		o, err := r.catalog.FindBySiretUai(ctx, siret, *uai)
		if err != nil {
			return domain.Result{}, err
		}
		if o != nil {
			return domain.Result{Organisme: o, Connu: true}, nil
		}
	}

	o, err := r.catalog.FindBySiret(ctx, siret)
	if err != nil {
		return domain.Result{}, err
	}
	if o != nil {
		if uai != nil {
			logging.FromContext(ctx, r.logger).Debug("organisme matched on siret only",
				logging.String("siret", siret),
				logging.String("uai", *uai),
				logging.OptString("catalog_uai", o.Identifiant.Uai),
			)
		}
		return domain.Result{Organisme: o, Connu: true}, nil
	}

	valid, err := identifier.ValidateSiret(siret)
	if err != nil {
		logging.FromContext(ctx, r.logger).Debug("organisme siret is invalid, not synthesized", logging.String("siret", siret), logging.Err(err))
		return domain.Result{}, nil
	}

	return r.synthesize(ctx, valid, uai)
}

func (r *resolverImpl) synthesize(ctx context.Context, siret identifier.Siret, uai *string) (domain.Result, error) {
	etab, err := r.registry.GetEtablissement(ctx, siret.String())
	if err != nil {
		return domain.Result{}, err
	}
	if etab == nil {
		logging.FromContext(ctx, r.logger).Debug("etablissement unknown to the company registry", logging.String("siret", siret.String()))
		return domain.Result{}, nil
	}

	var (
		ul      *domain.UniteLegaleRecord
		commune *domain.Commune
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ul, err = r.registry.GetUniteLegale(gctx, siret.Siren().String())
		return err
	})
	if etab.CodeCommune != "" {
		g.Go(func() error {
			var err error
			commune, err = r.geo.FindCommuneByInsee(gctx, etab.CodeCommune)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Result{}, err
	}

	return domain.Result{
		Organisme: domain.Synthesize(siret.String(), uai, etab, ul, commune),
		Connu:     false,
	}, nil
}

func normalizeSiret(raw *string) string {
	if raw == nil {
		return ""
	}
	return strings.Join(strings.Fields(*raw), "")
}

func normalizeUai(raw *string) *string {
	if raw == nil {
		return nil
	}
	u := strings.ToUpper(strings.TrimSpace(*raw))
	if u == "" {
		return nil
	}
	return &u
}
