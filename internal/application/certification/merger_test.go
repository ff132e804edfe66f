package certification

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	domain "github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/certification"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/cache"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/testutil"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

func day(s string) *time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func strp(s string) *string { return &s }

func cfdRecord() *domain.CfdRecord {
	return &domain.CfdRecord{
		Code:                   "50022135",
		IntituleLong:           "PATISSIER (CAP)",
		IntituleCourt:          "PATISSIER",
		NiveauFormation:        "500",
		NiveauInterministeriel: "3",
		Sigle:                  "CAP",
		Ouverture:              day("2019-09-01"),
		Fermeture:              day("2026-08-31"),
		NatureCode:             "1",
	}
}

func rncpRecord() *domain.RncpRecord {
	return &domain.RncpRecord{
		Numero:                "RNCP35316",
		Intitule:              "Pâtissier",
		Actif:                 true,
		DateActivation:        day("2020-12-31"),
		DateFinEnregistrement: day("2025-12-31"),
	}
}

type MergerTestSuite struct {
	suite.Suite
	catalog *testutil.MockCertificationCatalog
	sources *testutil.MockCertificationSource
	logger  *testutil.MockLogger
	merger  Merger
}

func (s *MergerTestSuite) SetupTest() {
	s.catalog = new(testutil.MockCertificationCatalog)
	s.sources = new(testutil.MockCertificationSource)
	s.logger = testutil.NewMockLogger()

	memo := cache.NewMemo[Result]("certification", cache.NewMemory[Result](100, time.Hour))
	m, err := NewMerger(s.catalog, s.sources, memo, s.logger)
	s.Require().NoError(err)
	s.merger = m
}

func (s *MergerTestSuite) TearDownTest() {
	s.catalog.AssertExpectations(s.T())
	s.sources.AssertExpectations(s.T())
}

func (s *MergerTestSuite) TestCatalogHitIsReturnedAsIs() {
	ctx := context.Background()
	known := &domain.Certification{Identifiant: domain.Identifiant{Cfd: strp("50022135"), Rncp: strp("RNCP35316")}}
	s.catalog.On("FindByIdentite", mock.Anything, strp("50022135"), strp("RNCP35316")).Return(known, nil).Once()

	res, err := s.merger.Merge(ctx, "50022135", strp("RNCP35316"))
	s.Require().NoError(err)
	s.True(res.Connue)
	s.Same(known, res.Certification)

	again, err := s.merger.Merge(ctx, " 50022135 ", strp("35316"))
	s.Require().NoError(err)
	s.Same(known, again.Certification, "second call is served by the memo")
}

func (s *MergerTestSuite) TestRebuildsFromBothSources() {
	ctx := context.Background()
	s.catalog.On("FindByIdentite", mock.Anything, strp("50022135"), strp("RNCP35316")).Return(nil, nil)
	s.sources.On("FindCfd", mock.Anything, "50022135").Return(cfdRecord(), nil)
	s.sources.On("FindRncp", mock.Anything, "RNCP35316").Return(rncpRecord(), nil)

	res, err := s.merger.Merge(ctx, "50022135", strp("RNCP35316"))
	s.Require().NoError(err)
	s.False(res.Connue)
	s.Equal("RNCP35316", *res.Certification.Identifiant.Rncp)
	s.Equal(*day("2020-12-31"), *res.Certification.PeriodeValidite.Debut)
	s.Equal(*day("2025-12-31"), *res.Certification.PeriodeValidite.Fin)
	s.Empty(s.logger.ByLevel("warn"))
}

func (s *MergerTestSuite) TestRncpNonRenseigneMeansNoRncpSide() {
	ctx := context.Background()
	s.catalog.On("FindByIdentite", mock.Anything, strp("50022135"), (*string)(nil)).Return(nil, nil)
	s.sources.On("FindCfd", mock.Anything, "50022135").Return(cfdRecord(), nil)

	res, err := s.merger.Merge(ctx, "50022135", strp("RNCPNR"))
	s.Require().NoError(err)
	s.False(res.Connue)

	c := res.Certification
	s.Nil(c.Identifiant.Rncp)
	s.Nil(c.Intitule.Rncp)
	s.Nil(c.PeriodeValidite.Rncp)
	s.Nil(c.Type.VoieAcces)
	s.Nil(c.BlocsCompetences.Rncp)
	s.Equal(*day("2019-09-01"), *c.PeriodeValidite.Debut)
	s.sources.AssertNotCalled(s.T(), "FindRncp", mock.Anything, mock.Anything)
}

func (s *MergerTestSuite) TestMissingCfdIsFatal() {
	s.catalog.On("FindByIdentite", mock.Anything, strp("99999999"), (*string)(nil)).Return(nil, nil)
	s.sources.On("FindCfd", mock.Anything, "99999999").Return(nil, nil)

	_, err := s.merger.Merge(context.Background(), "99999999", nil)
	s.True(errors.IsCode(err, errors.ErrCodeCfdNotFound))
	s.True(errors.IsRowFatal(errors.GetCode(err)))
}

func (s *MergerTestSuite) TestEmptyCfdIsFatal() {
	_, err := s.merger.Merge(context.Background(), "  ", strp("RNCP35316"))
	s.True(errors.IsCode(err, errors.ErrCodeCfdNotFound))
}

func (s *MergerTestSuite) TestUnknownRncpIsFatal() {
	s.catalog.On("FindByIdentite", mock.Anything, strp("50022135"), strp("RNCP00001")).Return(nil, nil)
	s.sources.On("FindCfd", mock.Anything, "50022135").Return(cfdRecord(), nil)
	s.sources.On("FindRncp", mock.Anything, "RNCP00001").Return(nil, nil)

	_, err := s.merger.Merge(context.Background(), "50022135", strp("RNCP00001"))
	s.True(errors.IsCode(err, errors.ErrCodeRncpNotFound))
}

func (s *MergerTestSuite) TestIncoherentPeriodIsKeptAndLogged() {
	cfd := cfdRecord()
	cfd.Fermeture = day("2020-06-30")
	s.catalog.On("FindByIdentite", mock.Anything, strp("50022135"), strp("RNCP35316")).Return(nil, nil)
	s.sources.On("FindCfd", mock.Anything, "50022135").Return(cfd, nil)
	s.sources.On("FindRncp", mock.Anything, "RNCP35316").Return(rncpRecord(), nil)

	res, err := s.merger.Merge(context.Background(), "50022135", strp("RNCP35316"))
	s.Require().NoError(err)
	s.True(res.Certification.PeriodeValidite.Fin.Before(*res.Certification.PeriodeValidite.Debut))

	warns := s.logger.ByLevel("warn")
	s.Require().Len(warns, 1)
	s.Equal("50022135", warns[0].Field("cfd"))
}

func (s *MergerTestSuite) TestUpstreamErrorsPropagateAndAreNotCached() {
	ctx := context.Background()
	boom := stderrors.New("connection reset")
	s.catalog.On("FindByIdentite", mock.Anything, strp("50022135"), (*string)(nil)).Return(nil, boom).Once()

	_, err := s.merger.Merge(ctx, "50022135", nil)
	s.ErrorIs(err, boom)

	known := &domain.Certification{}
	s.catalog.On("FindByIdentite", mock.Anything, strp("50022135"), (*string)(nil)).Return(known, nil).Once()
	res, err := s.merger.Merge(ctx, "50022135", nil)
	s.Require().NoError(err)
	s.Same(known, res.Certification)
}

func (s *MergerTestSuite) TestSourceErrorPropagates() {
	boom := stderrors.New("bcn unavailable")
	s.catalog.On("FindByIdentite", mock.Anything, strp("50022135"), (*string)(nil)).Return(nil, nil)
	s.sources.On("FindCfd", mock.Anything, "50022135").Return(nil, boom)

	_, err := s.merger.Merge(context.Background(), "50022135", nil)
	s.ErrorIs(err, boom)
}

func TestMergerTestSuite(t *testing.T) {
	suite.Run(t, new(MergerTestSuite))
}

func TestNewMerger_RequiresDependencies(t *testing.T) {
	memo := cache.NewMemo[Result]("certification", cache.NewMemory[Result](1, time.Minute))
	_, err := NewMerger(nil, new(testutil.MockCertificationSource), memo, nil)
	if !errors.IsCode(err, errors.ErrCodeBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	_, err = NewMerger(new(testutil.MockCertificationCatalog), nil, memo, nil)
	if !errors.IsCode(err, errors.ErrCodeBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	_, err = NewMerger(new(testutil.MockCertificationCatalog), new(testutil.MockCertificationSource), nil, nil)
	if !errors.IsCode(err, errors.ErrCodeBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
}
