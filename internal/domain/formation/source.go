package formation

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/organisme"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// SourceRow is one catalogue row, already decoded from its upstream format.
// Optional scalars are empty strings when absent.
type SourceRow struct {
	CleMinistereEducatif string `json:"cle_ministere_educatif"`
	Published            bool   `json:"published"`
	Archived             bool   `json:"archived"`

	Cfd      string `json:"cfd"`
	RncpCode string `json:"rncp_code"`

	FormateurSiret   string `json:"etablissement_formateur_siret"`
	FormateurUai     string `json:"etablissement_formateur_uai"`
	ResponsableSiret string `json:"etablissement_gestionnaire_siret"`
	ResponsableUai   string `json:"etablissement_gestionnaire_uai"`

	LieuSiret              string `json:"lieu_formation_siret"`
	LieuUai                string `json:"uai_formation"`
	LieuAdresse            string `json:"lieu_formation_adresse"`
	CodeCommuneInsee       string `json:"code_commune_insee"`
	CodePostal             string `json:"code_postal"`
	GeoCoordonnees         string `json:"lieu_formation_geo_coordonnees"`
	GeoCoordonneesComputed string `json:"lieu_formation_geo_coordonnees_computed"`
	GeoPrecision           string `json:"distance_lieu_formation_etablissement_formateur"`

	Duree                string   `json:"duree"`
	Annee                string   `json:"annee"`
	EntierementADistance bool     `json:"entierement_a_distance"`
	Mefs10               []string `json:"bcn_mefs_10"`

	DatesDebut []time.Time `json:"date_debut"`
	DatesFin   []time.Time `json:"date_fin"`
	Capacite   string      `json:"capacite"`

	Email     string `json:"email"`
	Telephone string `json:"num_tel"`

	OnisepURL              string `json:"onisep_url"`
	OnisepIntitule         string `json:"onisep_intitule"`
	OnisepLibellePoursuite string `json:"onisep_libelle_poursuite"`
	OnisepLienSite         string `json:"onisep_lien_site_onisepfr"`

	Contenu  string `json:"contenu"`
	Objectif string `json:"objectif"`
}

// StatutCatalogue derives the publication state. Archived wins over published.
func (r SourceRow) StatutCatalogue() StatutCatalogue {
	switch {
	case r.Archived:
		return StatutArchive
	case r.Published:
		return StatutPublie
	default:
		return StatutSupprime
	}
}

// CapaciteValue parses the capacity. Blank or unparsable values yield nil.
func (r SourceRow) CapaciteValue() *int {
	s := strings.TrimSpace(r.Capacite)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// ParseGeoCoordonnees parses a catalogue "lat,lon" pair into a GeoJSON point.
// Both parts must be finite numbers.
func ParseGeoCoordonnees(raw string) (*organisme.GeoPoint, error) {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	if len(parts) != 2 {
		return nil, errors.New(errors.ErrCodeGeoPointInvalid, "geo coordinates must be \"lat,lon\"").WithDetailf("value=%q", raw)
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLon != nil || !finite(lat) || !finite(lon) {
		return nil, errors.New(errors.ErrCodeGeoPointInvalid, "geo coordinates are not finite numbers").WithDetailf("value=%q", raw)
	}
	return organisme.NewGeoPoint(lon, lat), nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// OptString trims s and returns nil when it is empty.
func OptString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
