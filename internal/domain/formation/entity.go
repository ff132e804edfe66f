// Package formation holds the Formation entity, the catalogue source row it is
// composed from, modalité parsing and the session interval matcher.
package formation

import (
	"context"
	"time"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/certification"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/organisme"
)

// StatutCatalogue is the publication state of a formation in the catalogue.
type StatutCatalogue string

const (
	StatutPublie   StatutCatalogue = "publié"
	StatutSupprime StatutCatalogue = "supprimé"
	StatutArchive  StatutCatalogue = "archivé"
)

// Formation is the canonical training offer.
type Formation struct {
	Identifiant   Identifiant      `json:"identifiant"`
	Statut        Statut           `json:"statut"`
	Formateur     organisme.Result `json:"formateur"`
	Responsable   organisme.Result `json:"responsable"`
	Certification CertificationRef `json:"certification"`
	Lieu          Lieu             `json:"lieu"`
	Contact       Contact          `json:"contact"`
	Onisep        Onisep           `json:"onisep"`
	Modalite      Modalite         `json:"modalite"`
	Contenu       ContenuEducatif  `json:"contenu_educatif"`
	Sessions      []Session        `json:"sessions"`
}

type Identifiant struct {
	CleMinistereEducatif string `json:"cle_ministere_educatif"`
}

type Statut struct {
	Catalogue StatutCatalogue `json:"catalogue"`
}

// CertificationRef carries the merged certification. Connue is true when it
// came from the reconciled catalog rather than being rebuilt from sources.
type CertificationRef struct {
	Valeur *certification.Certification `json:"valeur"`
	Connue bool                         `json:"connue"`
}

type Lieu struct {
	Adresse         organisme.Adresse  `json:"adresse"`
	Geolocalisation organisme.GeoPoint `json:"geolocalisation"`
	Precision       *string            `json:"precision"`
	Siret           *string            `json:"siret"`
	Uai             *string            `json:"uai"`
}

type Contact struct {
	Email     *string `json:"email"`
	Telephone *string `json:"telephone"`
}

type Onisep struct {
	URL              *string `json:"url"`
	Intitule         *string `json:"intitule"`
	LibellePoursuite *string `json:"libelle_poursuite"`
	LienSiteOnisepfr *string `json:"lien_site_onisepfr"`
}

type ContenuEducatif struct {
	Contenu  *string `json:"contenu"`
	Objectif *string `json:"objectif"`
}

type Session struct {
	Debut    time.Time `json:"debut"`
	Fin      time.Time `json:"fin"`
	Capacite *int      `json:"capacite"`
}

// Repository persists composed formations.
type Repository interface {
	Upsert(ctx context.Context, f *Formation) error
}
