package opensearch

import (
	"time"

	domain "github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/formation"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/organisme"
)

// Document is the flattened, searchable projection of a formation.
type Document struct {
	CleMinistereEducatif string    `json:"cle_ministere_educatif"`
	Statut               string    `json:"statut"`
	Cfd                  *string   `json:"cfd,omitempty"`
	Rncp                 *string   `json:"rncp,omitempty"`
	Intitule             string    `json:"intitule,omitempty"`
	CertificationConnue  bool      `json:"certification_connue"`
	CertificationActive  *bool     `json:"certification_active,omitempty"`
	FormateurSiret       string    `json:"formateur_siret,omitempty"`
	FormateurUai         *string   `json:"formateur_uai,omitempty"`
	ResponsableSiret     string    `json:"responsable_siret,omitempty"`
	ResponsableUai       *string   `json:"responsable_uai,omitempty"`
	CodePostal           string    `json:"code_postal,omitempty"`
	CodeCommune          string    `json:"code_commune,omitempty"`
	Commune              string    `json:"commune,omitempty"`
	Departement          string    `json:"departement,omitempty"`
	Region               string    `json:"region,omitempty"`
	Academie             string    `json:"academie,omitempty"`
	Location             *GeoPoint `json:"location,omitempty"`
	EntierementADistance bool      `json:"entierement_a_distance"`
	DureeIndicative      int       `json:"duree_indicative"`
	Sessions             []Period  `json:"sessions,omitempty"`
}

// GeoPoint is the geo_point object form.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Period struct {
	Debut time.Time `json:"debut"`
	Fin   time.Time `json:"fin"`
}

// NewDocument projects f. Fields the formation does not carry are left
// empty rather than indexed as blanks. CertificationActive tells whether the
// certification is still valid when the first session starts.
func NewDocument(f *domain.Formation) Document {
	doc := Document{
		CleMinistereEducatif: f.Identifiant.CleMinistereEducatif,
		Statut:               string(f.Statut.Catalogue),
		CertificationConnue:  f.Certification.Connue,
		EntierementADistance: f.Modalite.EntierementADistance,
		DureeIndicative:      f.Modalite.DureeIndicative,
	}

	if c := f.Certification.Valeur; c != nil {
		doc.Cfd = c.Identifiant.Cfd
		doc.Rncp = c.Identifiant.Rncp
		switch {
		case c.Intitule.Cfd != nil:
			doc.Intitule = c.Intitule.Cfd.Long
		case c.Intitule.Rncp != nil:
			doc.Intitule = *c.Intitule.Rncp
		}
	}
	if doc.Intitule == "" && f.Onisep.Intitule != nil {
		doc.Intitule = *f.Onisep.Intitule
	}

	doc.FormateurSiret, doc.FormateurUai = organismeIDs(f.Formateur)
	doc.ResponsableSiret, doc.ResponsableUai = organismeIDs(f.Responsable)

	a := f.Lieu.Adresse
	doc.CodePostal = a.CodePostal
	doc.CodeCommune = a.Commune.Code
	doc.Commune = a.Commune.Nom
	doc.Departement = a.Departement.Code
	doc.Region = a.Region.Code
	doc.Academie = a.Academie.Code

	if g := f.Lieu.Geolocalisation; g.Type == "Point" {
		doc.Location = &GeoPoint{Lon: g.Coordinates[0], Lat: g.Coordinates[1]}
	}

	for _, s := range f.Sessions {
		doc.Sessions = append(doc.Sessions, Period{Debut: s.Debut, Fin: s.Fin})
	}
	if c := f.Certification.Valeur; c != nil && len(f.Sessions) > 0 {
		active := c.PeriodeValidite.Actif(firstSessionStart(f.Sessions))
		doc.CertificationActive = &active
	}
	return doc
}

func firstSessionStart(sessions []domain.Session) time.Time {
	first := sessions[0].Debut
	for _, s := range sessions[1:] {
		if s.Debut.Before(first) {
			first = s.Debut
		}
	}
	return first
}

func organismeIDs(r organisme.Result) (string, *string) {
	if r.Organisme == nil {
		return "", nil
	}
	return r.Organisme.Identifiant.Siret, r.Organisme.Identifiant.Uai
}

// FormationMapping is the index body created when the index is missing.
func FormationMapping() map[string]any {
	keyword := map[string]any{"type": "keyword"}
	return map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 1,
			"analysis": map[string]any{
				"analyzer": map[string]any{
					"intitule": map[string]any{
						"type":      "custom",
						"tokenizer": "standard",
						"filter":    []string{"lowercase", "asciifolding", "french_stop"},
					},
				},
				"filter": map[string]any{
					"french_stop": map[string]any{"type": "stop", "stopwords": "_french_"},
				},
			},
		},
		"mappings": map[string]any{
			"dynamic": "strict",
			"properties": map[string]any{
				"cle_ministere_educatif": keyword,
				"statut":                 keyword,
				"cfd":                    keyword,
				"rncp":                   keyword,
				"intitule":               map[string]any{"type": "text", "analyzer": "intitule"},
				"certification_connue":   map[string]any{"type": "boolean"},
				"formateur_siret":        keyword,
				"formateur_uai":          keyword,
				"responsable_siret":      keyword,
				"responsable_uai":        keyword,
				"code_postal":            keyword,
				"code_commune":           keyword,
				"commune":                map[string]any{"type": "text", "fields": map[string]any{"raw": keyword}},
				"departement":            keyword,
				"region":                 keyword,
				"academie":               keyword,
				"location":               map[string]any{"type": "geo_point"},
				"entierement_a_distance": map[string]any{"type": "boolean"},
				"duree_indicative":       map[string]any{"type": "integer"},
				"sessions": map[string]any{
					"type": "nested",
					"properties": map[string]any{
						"debut": map[string]any{"type": "date"},
						"fin":   map[string]any{"type": "date"},
					},
				},
			},
		},
	}
}
