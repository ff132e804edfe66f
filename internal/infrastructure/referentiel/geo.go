package referentiel

import (
	"context"
	"net/url"
	"sort"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/config"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/organisme"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
)

const communeFields = "nom,code,codesPostaux,centre,departement,region,academie"

// GeoClient resolves communes against the geographic referential.
type GeoClient struct {
	api *apiClient
}

func NewGeoClient(cfg config.ReferentielConfig, log logging.Logger, opts ...Option) (*GeoClient, error) {
	api, err := newAPIClient("geo", cfg.GeoBaseURL, "", cfg, log, opts...)
	if err != nil {
		return nil, err
	}
	return &GeoClient{api: api}, nil
}

type codeNom struct {
	Code string `json:"code"`
	Nom  string `json:"nom"`
}

type communePayload struct {
	Code         string   `json:"code"`
	Nom          string   `json:"nom"`
	CodesPostaux []string `json:"codesPostaux"`
	Departement  *codeNom `json:"departement"`
	Region       *codeNom `json:"region"`
	Academie     *codeNom `json:"academie"`
	Centre       *struct {
		Type        string     `json:"type"`
		Coordinates [2]float64 `json:"coordinates"`
	} `json:"centre"`
}

func (c *GeoClient) FindCommuneByInsee(ctx context.Context, code string) (*organisme.Commune, error) {
	var p communePayload
	q := url.Values{"fields": {communeFields}}
	found, err := c.api.getJSON(ctx, "/communes/"+url.PathEscape(code), q, &p)
	if err != nil || !found {
		return nil, err
	}
	return toCommune(p), nil
}

// FindCommuneByPostal returns the commune with the smallest INSEE code among
// those served by the postal code, so that shared postal codes resolve the
// same way on every run.
func (c *GeoClient) FindCommuneByPostal(ctx context.Context, code string) (*organisme.Commune, error) {
	var ps []communePayload
	q := url.Values{"codePostal": {code}, "fields": {communeFields}}
	found, err := c.api.getJSON(ctx, "/communes", q, &ps)
	if err != nil || !found || len(ps) == 0 {
		return nil, err
	}
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Code < ps[j].Code })
	return toCommune(ps[0]), nil
}

func toCommune(p communePayload) *organisme.Commune {
	c := &organisme.Commune{
		Code:         p.Code,
		Nom:          cleanText(p.Nom),
		CodesPostaux: p.CodesPostaux,
		Departement:  toCodeLibelle(p.Departement),
		Region:       toCodeLibelle(p.Region),
		Academie:     toCodeLibelle(p.Academie),
	}
	if p.Centre != nil {
		c.Centre = organisme.NewGeoPoint(p.Centre.Coordinates[0], p.Centre.Coordinates[1])
	}
	return c
}

func toCodeLibelle(cn *codeNom) organisme.CodeLibelle {
	if cn == nil {
		return organisme.CodeLibelle{}
	}
	return organisme.CodeLibelle{Code: cn.Code, Nom: cleanText(cn.Nom)}
}

var _ organisme.GeoReferential = (*GeoClient)(nil)
