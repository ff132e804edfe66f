package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/suite"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/organisme"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/database/postgres"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

const organismeDoc = `{"identifiant":{"siret":"13002526500013","uai":"0751234J"},"statut":{"referentiel":"présent"}}`

type OrganismeRepoTestSuite struct {
	suite.Suite
	mock sqlmock.Sqlmock
	db   *sql.DB
	repo organisme.CatalogRepository
}

func (s *OrganismeRepoTestSuite) SetupTest() {
	var err error
	s.db, s.mock, err = sqlmock.New()
	s.Require().NoError(err)

	log := logging.NewNopLogger()
	s.repo = NewOrganismeStore(postgres.NewConnectionWithDB(s.db, log), log)
}

func (s *OrganismeRepoTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *OrganismeRepoTestSuite) TestFindBySiretUai() {
	s.mock.ExpectQuery(regexp.QuoteMeta("WHERE siret = $1 AND uai = $2")).
		WithArgs("13002526500013", "0751234J").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(organismeDoc)))

	o, err := s.repo.FindBySiretUai(context.Background(), "13002526500013", "0751234J")
	s.Require().NoError(err)
	s.Require().NotNil(o)
	s.Equal("0751234J", *o.Identifiant.Uai)
	s.Equal(organisme.StatutPresent, o.Statut.Referentiel)
}

func (s *OrganismeRepoTestSuite) TestFindBySiret_OrdersUaiNullsLast() {
	s.mock.ExpectQuery(regexp.QuoteMeta("ORDER BY uai NULLS LAST, uai")).
		WithArgs("13002526500013").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(organismeDoc)))

	o, err := s.repo.FindBySiret(context.Background(), "13002526500013")
	s.Require().NoError(err)
	s.Equal("13002526500013", o.Identifiant.Siret)
}

func (s *OrganismeRepoTestSuite) TestFindBySiret_NotFound() {
	s.mock.ExpectQuery("SELECT data FROM organismes").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	o, err := s.repo.FindBySiret(context.Background(), "13002526500013")
	s.NoError(err)
	s.Nil(o)
}

func (s *OrganismeRepoTestSuite) TestUpsert() {
	uai := "0751234J"
	o := &organisme.Organisme{Identifiant: organisme.Identifiant{Siret: "13002526500013", Uai: &uai}}
	s.mock.ExpectExec("INSERT INTO organismes").
		WithArgs("13002526500013", "0751234J", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	s.NoError(s.repo.Upsert(context.Background(), o))
}

func (s *OrganismeRepoTestSuite) TestUpsert_ExecError() {
	o := &organisme.Organisme{Identifiant: organisme.Identifiant{Siret: "13002526500013"}}
	s.mock.ExpectExec("INSERT INTO organismes").
		WillReturnError(stderrors.New("deadlock detected"))

	err := s.repo.Upsert(context.Background(), o)
	s.True(errors.IsCode(err, errors.ErrCodeDatabaseError))
}

func TestOrganismeRepoTestSuite(t *testing.T) {
	suite.Run(t, new(OrganismeRepoTestSuite))
}
