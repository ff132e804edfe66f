// Package organisme holds the Organisme entity, the company-registry and
// geographic referential records it can be synthesized from, and the ports the
// resolver reads them through.
package organisme

import (
	"context"
	"time"
)

// StatutReferentiel tells whether the organisme is listed in the training
// organism referential.
type StatutReferentiel string

const (
	StatutPresent  StatutReferentiel = "présent"
	StatutSupprime StatutReferentiel = "supprimé"
)

// Sentinel creation dates used when the company registry returns none.
var (
	EtablissementCreationInconnue = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	UniteLegaleCreationInconnue   = time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// ─────────────────────────────────────────────────────────────────────────────
// Entity
// ─────────────────────────────────────────────────────────────────────────────

// Organisme is a training organism identified by its SIRET and optional UAI.
type Organisme struct {
	Identifiant               Identifiant               `json:"identifiant"`
	Etablissement             Etablissement             `json:"etablissement"`
	UniteLegale               UniteLegale               `json:"unite_legale"`
	RenseignementsSpecifiques RenseignementsSpecifiques `json:"renseignements_specifiques"`
	Statut                    Statut                    `json:"statut"`
	Contacts                  []Contact                 `json:"contacts"`
}

type Identifiant struct {
	Siret string  `json:"siret"`
	Uai   *string `json:"uai"`
}

type Etablissement struct {
	Siret     string     `json:"siret"`
	Ouvert    bool       `json:"ouvert"`
	Enseigne  *string    `json:"enseigne"`
	Adresse   *Adresse   `json:"adresse"`
	Geopoint  *GeoPoint  `json:"geopoint"`
	Creation  time.Time  `json:"creation"`
	Fermeture *time.Time `json:"fermeture"`
}

type UniteLegale struct {
	Siren         string     `json:"siren"`
	Actif         bool       `json:"actif"`
	RaisonSociale string     `json:"raison_sociale"`
	Creation      time.Time  `json:"creation"`
	Cessation     *time.Time `json:"cessation"`
}

type RenseignementsSpecifiques struct {
	Qualiopi       bool    `json:"qualiopi"`
	NumeroActivite *string `json:"numero_activite"`
}

type Statut struct {
	Referentiel StatutReferentiel `json:"referentiel"`
}

type Contact struct {
	Email        string   `json:"email"`
	Confirmation bool     `json:"confirmation_referentiel"`
	Sources      []string `json:"sources"`
}

// Adresse is a postal address enriched with its commune, département,
// région and académie.
type Adresse struct {
	Label       *string     `json:"label"`
	CodePostal  string      `json:"code_postal"`
	Commune     CodeLibelle `json:"commune"`
	Departement CodeLibelle `json:"departement"`
	Region      CodeLibelle `json:"region"`
	Academie    CodeLibelle `json:"academie"`
}

type CodeLibelle struct {
	Code string `json:"code"`
	Nom  string `json:"nom"`
}

// GeoPoint is a GeoJSON point: coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point.
func NewGeoPoint(lon, lat float64) *GeoPoint {
	return &GeoPoint{Type: "Point", Coordinates: [2]float64{lon, lat}}
}

// Result is what the resolver hands to a Formation: Connu is false when the
// organisme was synthesized or could not be resolved at all.
type Result struct {
	Organisme *Organisme `json:"organisme"`
	Connu     bool       `json:"connu"`
}

// Key is the memo key of a (siret, uai) pair.
func Key(siret string, uai *string) string {
	if uai == nil {
		return siret + "|"
	}
	return siret + "|" + *uai
}

// ─────────────────────────────────────────────────────────────────────────────
// Upstream records
// ─────────────────────────────────────────────────────────────────────────────

// EtablissementRecord is the company-registry view of a SIRET.
type EtablissementRecord struct {
	Siret         string
	Siren         string
	Enseigne      *string
	Ouvert        bool
	DateCreation  *time.Time
	DateFermeture *time.Time
	AdresseLabel  *string
	CodePostal    string
	CodeCommune   string
}

// UniteLegaleRecord is the company-registry view of a SIREN.
type UniteLegaleRecord struct {
	Siren         string
	RaisonSociale string
	Actif         bool
	DateCreation  *time.Time
	DateCessation *time.Time
}

// Commune is the geographic referential view of a commune.
type Commune struct {
	Code         string
	Nom          string
	CodesPostaux []string
	Departement  CodeLibelle
	Region       CodeLibelle
	Academie     CodeLibelle
	Centre       *GeoPoint
}

// ─────────────────────────────────────────────────────────────────────────────
// Ports
// ─────────────────────────────────────────────────────────────────────────────

// CatalogRepository is the store of organismes built from the training
// organism referential. Finders return (nil, nil) when nothing matches.
type CatalogRepository interface {
	FindBySiretUai(ctx context.Context, siret, uai string) (*Organisme, error)
	// FindBySiret returns the first organisme with that siret ordered by uai,
	// NULL last.
	FindBySiret(ctx context.Context, siret string) (*Organisme, error)
	Upsert(ctx context.Context, o *Organisme) error
}

// CompanyRegistry reads établissements and unités légales. Not found is
// (nil, nil).
type CompanyRegistry interface {
	GetEtablissement(ctx context.Context, siret string) (*EtablissementRecord, error)
	GetUniteLegale(ctx context.Context, siren string) (*UniteLegaleRecord, error)
}

// GeoReferential resolves communes. Not found is (nil, nil).
type GeoReferential interface {
	FindCommuneByInsee(ctx context.Context, code string) (*Commune, error)
	FindCommuneByPostal(ctx context.Context, code string) (*Commune, error)
}
