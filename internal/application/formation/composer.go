// Package formation provides the Formation composer and the batch importer
// that drives it over a stream of catalogue rows.
package formation

import (
	"context"
	"strings"

	"github.com/asaskevich/govalidator"
	"golang.org/x/sync/errgroup"

	certapp "github.com/mission-apprentissage/api-apprentissage-sub004/internal/application/certification"
	orgapp "github.com/mission-apprentissage/api-apprentissage-sub004/internal/application/organisme"
	domain "github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/formation"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/organisme"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// Composer assembles a Formation out of one catalogue row.
type Composer interface {
	Compose(ctx context.Context, row domain.SourceRow) (*domain.Formation, error)
}

type composerImpl struct {
	merger   certapp.Merger
	resolver orgapp.Resolver
	geo      organisme.GeoReferential
	logger   logging.Logger
}

func NewComposer(merger certapp.Merger, resolver orgapp.Resolver, geo organisme.GeoReferential, log logging.Logger) (Composer, error) {
	switch {
	case merger == nil:
		return nil, errors.InvalidParam("certification merger is required")
	case resolver == nil:
		return nil, errors.InvalidParam("organisme resolver is required")
	case geo == nil:
		return nil, errors.InvalidParam("geographic referential is required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &composerImpl{merger: merger, resolver: resolver, geo: geo, logger: log.Named("formation")}, nil
}

// Compose fails on an unresolvable lieu, certification or modalité and on
// sessions that cannot be matched. Organismes that cannot be resolved and
// invalid contact or onisep values degrade to null.
func (c *composerImpl) Compose(ctx context.Context, row domain.SourceRow) (*domain.Formation, error) {
	modalite, err := domain.ParseModalite(row)
	if err != nil {
		return nil, err
	}
	sessions, err := domain.MatchSessions(row.DatesDebut, row.DatesFin, modalite.ExpectedDurationYears(), row.CapaciteValue())
	if err != nil {
		return nil, err
	}

	var (
		lieu        domain.Lieu
		cert        certapp.Result
		formateur   organisme.Result
		responsable organisme.Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lieu, err = c.resolveLieu(gctx, row)
		return err
	})
	g.Go(func() error {
		var err error
		cert, err = c.merger.Merge(gctx, row.Cfd, domain.OptString(row.RncpCode))
		return err
	})
	g.Go(func() error {
		var err error
		formateur, err = c.resolver.Resolve(gctx, domain.OptString(row.FormateurSiret), domain.OptString(row.FormateurUai))
		return err
	})
	g.Go(func() error {
		var err error
		responsable, err = c.resolver.Resolve(gctx, domain.OptString(row.ResponsableSiret), domain.OptString(row.ResponsableUai))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.Formation{
		Identifiant:   domain.Identifiant{CleMinistereEducatif: row.CleMinistereEducatif},
		Statut:        domain.Statut{Catalogue: row.StatutCatalogue()},
		Formateur:     formateur,
		Responsable:   responsable,
		Certification: domain.CertificationRef{Valeur: cert.Certification, Connue: cert.Connue},
		Lieu:          lieu,
		Contact: domain.Contact{
			Email:     permissiveEmail(row.Email),
			Telephone: domain.OptString(row.Telephone),
		},
		Onisep: domain.Onisep{
			URL:              permissiveURL(row.OnisepURL),
			Intitule:         domain.OptString(row.OnisepIntitule),
			LibellePoursuite: domain.OptString(row.OnisepLibellePoursuite),
			LienSiteOnisepfr: permissiveURL(row.OnisepLienSite),
		},
		Modalite: modalite,
		Contenu: domain.ContenuEducatif{
			Contenu:  domain.OptString(row.Contenu),
			Objectif: domain.OptString(row.Objectif),
		},
		Sessions: sessions,
	}, nil
}

func (c *composerImpl) resolveLieu(ctx context.Context, row domain.SourceRow) (domain.Lieu, error) {
	commune, err := c.findCommune(ctx, row)
	if err != nil {
		return domain.Lieu{}, err
	}

	geo, err := domain.ParseGeoCoordonnees(row.GeoCoordonnees)
	if err != nil {
		geo, err = domain.ParseGeoCoordonnees(row.GeoCoordonneesComputed)
		if err != nil {
			return domain.Lieu{}, errors.New(errors.ErrCodeGeoPointInvalid, "no parsable geo coordinates").
				WithDetailf("primary=%q computed=%q", row.GeoCoordonnees, row.GeoCoordonneesComputed)
		}
	}

	var uai *string
	if u := domain.OptString(row.LieuUai); u != nil {
		up := strings.ToUpper(*u)
		uai = &up
	}

	return domain.Lieu{
		Adresse:         *organisme.AdresseFromCommune(domain.OptString(row.LieuAdresse), strings.TrimSpace(row.CodePostal), commune),
		Geolocalisation: *geo,
		Precision:       domain.OptString(row.GeoPrecision),
		Siret:           domain.OptString(row.LieuSiret),
		Uai:             uai,
	}, nil
}

// findCommune looks the commune up by INSEE code, then by postal code.
func (c *composerImpl) findCommune(ctx context.Context, row domain.SourceRow) (*organisme.Commune, error) {
	if code := strings.TrimSpace(row.CodeCommuneInsee); code != "" {
		commune, err := c.geo.FindCommuneByInsee(ctx, code)
		if err != nil {
			return nil, err
		}
		if commune != nil {
			return commune, nil
		}
	}
	if code := strings.TrimSpace(row.CodePostal); code != "" {
		commune, err := c.geo.FindCommuneByPostal(ctx, code)
		if err != nil {
			return nil, err
		}
		if commune != nil {
			logging.FromContext(ctx, c.logger).Debug("commune resolved by postal code",
				logging.String("code_commune_insee", row.CodeCommuneInsee),
				logging.String("code_postal", code),
			)
			return commune, nil
		}
	}
	return nil, errors.New(errors.ErrCodeCommuneNotFound, "commune not found").
		WithDetailf("insee=%q postal=%q", row.CodeCommuneInsee, row.CodePostal)
}

func permissiveEmail(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" || !govalidator.IsEmail(s) {
		return nil
	}
	return &s
}

func permissiveURL(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" || !govalidator.IsURL(s) {
		return nil
	}
	return &s
}
