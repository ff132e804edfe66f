package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/suite"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/certification"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/database/postgres"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

func strPtr(s string) *string { return &s }

type CertificationRepoTestSuite struct {
	suite.Suite
	mock sqlmock.Sqlmock
	db   *sql.DB
	repo certification.CatalogRepository
}

func (s *CertificationRepoTestSuite) SetupTest() {
	var err error
	s.db, s.mock, err = sqlmock.New()
	s.Require().NoError(err)

	log := logging.NewNopLogger()
	s.repo = NewCertificationStore(postgres.NewConnectionWithDB(s.db, log), log)
}

func (s *CertificationRepoTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *CertificationRepoTestSuite) TestFindByIdentite_Found() {
	s.mock.ExpectQuery(regexp.QuoteMeta("WHERE cfd IS NOT DISTINCT FROM $1 AND rncp IS NOT DISTINCT FROM $2")).
		WithArgs("40025214", "RNCP37537").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"identifiant":{"cfd":"40025214","rncp":"RNCP37537","rncp_anterieur_2019":false}}`)))

	c, err := s.repo.FindByIdentite(context.Background(), strPtr("40025214"), strPtr("RNCP37537"))
	s.Require().NoError(err)
	s.Require().NotNil(c)
	s.Equal("40025214", *c.Identifiant.Cfd)
	s.Equal("RNCP37537", *c.Identifiant.Rncp)
}

func (s *CertificationRepoTestSuite) TestFindByIdentite_NilRncpMatchesNull() {
	s.mock.ExpectQuery("SELECT data FROM certifications").
		WithArgs("40025214", nil).
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	c, err := s.repo.FindByIdentite(context.Background(), strPtr("40025214"), nil)
	s.NoError(err)
	s.Nil(c)
}

func (s *CertificationRepoTestSuite) TestFindByIdentite_QueryError() {
	s.mock.ExpectQuery("SELECT data FROM certifications").
		WillReturnError(stderrors.New("connection reset"))

	_, err := s.repo.FindByIdentite(context.Background(), strPtr("40025214"), nil)
	s.True(errors.IsCode(err, errors.ErrCodeDatabaseError))
}

func (s *CertificationRepoTestSuite) TestFindByIdentite_CorruptDocument() {
	s.mock.ExpectQuery("SELECT data FROM certifications").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"identifiant":`)))

	_, err := s.repo.FindByIdentite(context.Background(), strPtr("40025214"), nil)
	s.True(errors.IsCode(err, errors.ErrCodeSerialization))
}

func (s *CertificationRepoTestSuite) TestUpsert() {
	c := &certification.Certification{
		Identifiant: certification.Identifiant{Cfd: strPtr("40025214")},
	}
	s.mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT ((COALESCE(cfd, '')), (COALESCE(rncp, '')))")).
		WithArgs("40025214", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	s.NoError(s.repo.Upsert(context.Background(), c))
}

func (s *CertificationRepoTestSuite) TestUpsert_Nil() {
	s.Error(s.repo.Upsert(context.Background(), nil))
}

func TestCertificationRepoTestSuite(t *testing.T) {
	suite.Run(t, new(CertificationRepoTestSuite))
}
