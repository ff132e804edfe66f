package referentiel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/time/rate"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/config"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/testutil"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

type EntrepriseClientTestSuite struct {
	suite.Suite
	mux    *http.ServeMux
	server *httptest.Server
	client *EntrepriseClient
}

func (s *EntrepriseClientTestSuite) SetupTest() {
	s.mux = http.NewServeMux()
	s.server = httptest.NewServer(s.mux)

	var err error
	s.client, err = NewEntrepriseClient(config.ReferentielConfig{
		EntrepriseBaseURL: s.server.URL + "/v3",
		EntrepriseToken:   "secret",
	}, testutil.NewMockLogger(), WithLimiter(rate.NewLimiter(rate.Inf, 1)))
	s.Require().NoError(err)
}

func (s *EntrepriseClientTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *EntrepriseClientTestSuite) TestGetEtablissement() {
	s.mux.HandleFunc("/v3/insee/sirene/etablissements/13002526500013", func(w http.ResponseWriter, r *http.Request) {
		s.Equal("Bearer secret", r.Header.Get("Authorization"))
		s.Equal(entrepriseRecipient, r.URL.Query().Get("recipient"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{
			"siret":"13002526500013",
			"etat_administratif":"A",
			"enseigne":"CAMPUS  DES METIERS",
			"date_creation":1262304000,
			"date_fermeture":null,
			"unite_legale":{"siren":"130025265","personne_morale_attributs":{"raison_sociale":"DIRECTION INTERMINISTERIELLE DU NUMERIQUE"}},
			"adresse":{"numero_voie":"20","type_voie":"AV","libelle_voie":"DE SEGUR","code_postal":"75007","code_commune":"75107","libelle_commune":"PARIS 7"}
		}}`))
	})

	rec, err := s.client.GetEtablissement(context.Background(), "13002526500013")
	s.Require().NoError(err)
	s.Require().NotNil(rec)
	s.Equal("130025265", rec.Siren)
	s.True(rec.Ouvert)
	s.Equal("CAMPUS DES METIERS", *rec.Enseigne)
	s.Equal(time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), *rec.DateCreation)
	s.Nil(rec.DateFermeture)
	s.Equal("75107", rec.CodeCommune)
	s.Equal("20 AV DE SEGUR 75007 PARIS 7", *rec.AdresseLabel)
}

func (s *EntrepriseClientTestSuite) TestGetEtablissement_EnseigneRepeatingRaisonSocialeIsDropped() {
	s.mux.HandleFunc("/v3/insee/sirene/etablissements/19350030300014", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{
			"etat_administratif":"F",
			"enseigne":"Lycée Général Émile Zola",
			"unite_legale":{"siren":"193500303","personne_morale_attributs":{"raison_sociale":"LYCEE GENERAL EMILE ZOLA"}},
			"adresse":{}
		}}`))
	})

	rec, err := s.client.GetEtablissement(context.Background(), "19350030300014")
	s.Require().NoError(err)
	s.Nil(rec.Enseigne)
	s.False(rec.Ouvert)
	s.Equal("19350030300014", rec.Siret)
	s.Nil(rec.AdresseLabel)
}

func (s *EntrepriseClientTestSuite) TestGetEtablissement_NotFound() {
	s.mux.HandleFunc("/v3/insee/sirene/etablissements/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	rec, err := s.client.GetEtablissement(context.Background(), "13002526500013")
	s.NoError(err)
	s.Nil(rec)
}

func (s *EntrepriseClientTestSuite) TestStatusMapping() {
	cases := map[string]struct {
		status int
		body   string
		code   errors.ErrorCode
	}{
		"130025265": {http.StatusTooManyRequests, `{}`, errors.ErrCodeRegistryRateLimited},
		"130025266": {http.StatusBadGateway, `upstream down`, errors.ErrCodeRegistryUnavailable},
		"130025267": {http.StatusOK, `{"data":`, errors.ErrCodeRegistryParseError},
	}
	s.mux.HandleFunc("/v3/insee/sirene/unites_legales/", func(w http.ResponseWriter, r *http.Request) {
		c := cases[r.URL.Path[len("/v3/insee/sirene/unites_legales/"):]]
		w.WriteHeader(c.status)
		_, _ = w.Write([]byte(c.body))
	})

	for siren, c := range cases {
		_, err := s.client.GetUniteLegale(context.Background(), siren)
		s.True(errors.IsCode(err, c.code), "siren %s: %v", siren, err)
	}
}

func (s *EntrepriseClientTestSuite) TestGetUniteLegale_PersonnePhysique() {
	s.mux.HandleFunc("/v3/insee/sirene/unites_legales/812345678", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{
			"siren":"812345678",
			"etat_administratif":"C",
			"date_creation":1420070400,
			"date_cessation":1704067200,
			"personne_morale_attributs":{"raison_sociale":null},
			"personne_physique_attributs":{"nom_usage":null,"nom_naissance":"DUPONT","prenom_usuel":"Camille"}
		}}`))
	})

	ul, err := s.client.GetUniteLegale(context.Background(), "812345678")
	s.Require().NoError(err)
	s.Equal("Camille DUPONT", ul.RaisonSociale)
	s.False(ul.Actif)
	s.Equal(2024, ul.DateCessation.Year())
}

func TestEntrepriseClientTestSuite(t *testing.T) {
	suite.Run(t, new(EntrepriseClientTestSuite))
}

func TestNewEntrepriseClient_Validation(t *testing.T) {
	_, err := NewEntrepriseClient(config.ReferentielConfig{}, testutil.NewMockLogger())
	assert.Error(t, err)

	_, err = NewEntrepriseClient(config.ReferentielConfig{EntrepriseBaseURL: "http://x"}, nil)
	assert.Error(t, err)
}

func TestEntrepriseClient_CancelledWhileRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent")
	}))
	defer server.Close()

	c, err := NewEntrepriseClient(config.ReferentielConfig{EntrepriseBaseURL: server.URL},
		testutil.NewMockLogger(), WithLimiter(rate.NewLimiter(rate.Every(time.Hour), 0)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.GetEtablissement(ctx, "13002526500013")
	assert.ErrorIs(t, err, context.Canceled)
}
