package referentiel

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/config"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/organisme"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
)

// Every API Entreprise call declares who asks and why.
const (
	entrepriseContext   = "Catalogue apprentissage"
	entrepriseObject    = "Réconciliation des organismes de formation"
	entrepriseRecipient = "13002526500013"
)

// EntrepriseClient reads établissements and unités légales from API
// Entreprise.
type EntrepriseClient struct {
	api *apiClient
}

func NewEntrepriseClient(cfg config.ReferentielConfig, log logging.Logger, opts ...Option) (*EntrepriseClient, error) {
	api, err := newAPIClient("entreprise", cfg.EntrepriseBaseURL, cfg.EntrepriseToken, cfg, log, opts...)
	if err != nil {
		return nil, err
	}
	return &EntrepriseClient{api: api}, nil
}

type entrepriseEnvelope[T any] struct {
	Data T `json:"data"`
}

type etablissementPayload struct {
	Siret             string  `json:"siret"`
	EtatAdministratif string  `json:"etat_administratif"`
	Enseigne          *string `json:"enseigne"`
	DateCreation      *int64  `json:"date_creation"`
	DateFermeture     *int64  `json:"date_fermeture"`
	UniteLegale       struct {
		Siren                   string                  `json:"siren"`
		PersonneMoraleAttributs personneMoraleAttributs `json:"personne_morale_attributs"`
	} `json:"unite_legale"`
	Adresse struct {
		NumeroVoie     string `json:"numero_voie"`
		TypeVoie       string `json:"type_voie"`
		LibelleVoie    string `json:"libelle_voie"`
		CodePostal     string `json:"code_postal"`
		CodeCommune    string `json:"code_commune"`
		LibelleCommune string `json:"libelle_commune"`
	} `json:"adresse"`
}

type personneMoraleAttributs struct {
	RaisonSociale *string `json:"raison_sociale"`
}

type uniteLegalePayload struct {
	Siren                     string                  `json:"siren"`
	EtatAdministratif         string                  `json:"etat_administratif"`
	DateCreation              *int64                  `json:"date_creation"`
	DateCessation             *int64                  `json:"date_cessation"`
	PersonneMoraleAttributs   personneMoraleAttributs `json:"personne_morale_attributs"`
	PersonnePhysiqueAttributs struct {
		NomUsage     *string `json:"nom_usage"`
		NomNaissance *string `json:"nom_naissance"`
		PrenomUsuel  *string `json:"prenom_usuel"`
	} `json:"personne_physique_attributs"`
}

func (c *EntrepriseClient) query() url.Values {
	q := url.Values{}
	q.Set("context", entrepriseContext)
	q.Set("object", entrepriseObject)
	q.Set("recipient", entrepriseRecipient)
	return q
}

// GetEtablissement returns (nil, nil) when the siret is unknown to the
// registry.
func (c *EntrepriseClient) GetEtablissement(ctx context.Context, siret string) (*organisme.EtablissementRecord, error) {
	var env entrepriseEnvelope[etablissementPayload]
	found, err := c.api.getJSON(ctx, "/insee/sirene/etablissements/"+url.PathEscape(siret), c.query(), &env)
	if err != nil || !found {
		return nil, err
	}

	p := env.Data
	rec := &organisme.EtablissementRecord{
		Siret:         orFallback(p.Siret, siret),
		Siren:         p.UniteLegale.Siren,
		Enseigne:      cleanOptional(p.Enseigne),
		Ouvert:        p.EtatAdministratif == "A",
		DateCreation:  fromUnix(p.DateCreation),
		DateFermeture: fromUnix(p.DateFermeture),
		CodePostal:    strings.TrimSpace(p.Adresse.CodePostal),
		CodeCommune:   strings.TrimSpace(p.Adresse.CodeCommune),
	}

	// Registries often repeat the raison sociale as enseigne.
	if rec.Enseigne != nil && p.UniteLegale.PersonneMoraleAttributs.RaisonSociale != nil &&
		foldKey(*rec.Enseigne) == foldKey(*p.UniteLegale.PersonneMoraleAttributs.RaisonSociale) {
		rec.Enseigne = nil
	}

	label := cleanText(strings.Join([]string{
		p.Adresse.NumeroVoie, p.Adresse.TypeVoie, p.Adresse.LibelleVoie,
		p.Adresse.CodePostal, p.Adresse.LibelleCommune,
	}, " "))
	if label != "" {
		rec.AdresseLabel = &label
	}
	return rec, nil
}

// GetUniteLegale returns (nil, nil) when the siren is unknown. Natural persons
// get their usage (or birth) name as raison sociale.
func (c *EntrepriseClient) GetUniteLegale(ctx context.Context, siren string) (*organisme.UniteLegaleRecord, error) {
	var env entrepriseEnvelope[uniteLegalePayload]
	found, err := c.api.getJSON(ctx, "/insee/sirene/unites_legales/"+url.PathEscape(siren), c.query(), &env)
	if err != nil || !found {
		return nil, err
	}

	p := env.Data
	return &organisme.UniteLegaleRecord{
		Siren:         orFallback(p.Siren, siren),
		RaisonSociale: raisonSociale(p),
		Actif:         p.EtatAdministratif == "A",
		DateCreation:  fromUnix(p.DateCreation),
		DateCessation: fromUnix(p.DateCessation),
	}, nil
}

func raisonSociale(p uniteLegalePayload) string {
	if rs := cleanOptional(p.PersonneMoraleAttributs.RaisonSociale); rs != nil {
		return *rs
	}
	pp := p.PersonnePhysiqueAttributs
	nom := cleanOptional(pp.NomUsage)
	if nom == nil {
		nom = cleanOptional(pp.NomNaissance)
	}
	if nom == nil {
		return ""
	}
	if prenom := cleanOptional(pp.PrenomUsuel); prenom != nil {
		return *prenom + " " + *nom
	}
	return *nom
}

func fromUnix(ts *int64) *time.Time {
	if ts == nil || *ts == 0 {
		return nil
	}
	t := time.Unix(*ts, 0).UTC()
	return &t
}

func orFallback(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}

var _ organisme.CompanyRegistry = (*EntrepriseClient)(nil)
