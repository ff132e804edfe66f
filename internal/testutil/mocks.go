package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/certification"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/formation"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/organisme"
)

// ─────────────────────────────────────────────────────────────────────────────
// Certification ports
// ─────────────────────────────────────────────────────────────────────────────

type MockCertificationCatalog struct {
	mock.Mock
}

func (m *MockCertificationCatalog) FindByIdentite(ctx context.Context, cfd, rncp *string) (*certification.Certification, error) {
	args := m.Called(ctx, cfd, rncp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*certification.Certification), args.Error(1)
}

func (m *MockCertificationCatalog) Upsert(ctx context.Context, c *certification.Certification) error {
	return m.Called(ctx, c).Error(0)
}

type MockCertificationSource struct {
	mock.Mock
}

func (m *MockCertificationSource) FindCfd(ctx context.Context, code string) (*certification.CfdRecord, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*certification.CfdRecord), args.Error(1)
}

func (m *MockCertificationSource) FindRncp(ctx context.Context, code string) (*certification.RncpRecord, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*certification.RncpRecord), args.Error(1)
}

// ─────────────────────────────────────────────────────────────────────────────
// Organisme ports
// ─────────────────────────────────────────────────────────────────────────────

type MockOrganismeCatalog struct {
	mock.Mock
}

func (m *MockOrganismeCatalog) FindBySiretUai(ctx context.Context, siret, uai string) (*organisme.Organisme, error) {
	args := m.Called(ctx, siret, uai)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*organisme.Organisme), args.Error(1)
}

func (m *MockOrganismeCatalog) FindBySiret(ctx context.Context, siret string) (*organisme.Organisme, error) {
	args := m.Called(ctx, siret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*organisme.Organisme), args.Error(1)
}

func (m *MockOrganismeCatalog) Upsert(ctx context.Context, o *organisme.Organisme) error {
	return m.Called(ctx, o).Error(0)
}

type MockCompanyRegistry struct {
	mock.Mock
}

func (m *MockCompanyRegistry) GetEtablissement(ctx context.Context, siret string) (*organisme.EtablissementRecord, error) {
	args := m.Called(ctx, siret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*organisme.EtablissementRecord), args.Error(1)
}

func (m *MockCompanyRegistry) GetUniteLegale(ctx context.Context, siren string) (*organisme.UniteLegaleRecord, error) {
	args := m.Called(ctx, siren)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*organisme.UniteLegaleRecord), args.Error(1)
}

type MockGeoReferential struct {
	mock.Mock
}

func (m *MockGeoReferential) FindCommuneByInsee(ctx context.Context, code string) (*organisme.Commune, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*organisme.Commune), args.Error(1)
}

func (m *MockGeoReferential) FindCommuneByPostal(ctx context.Context, code string) (*organisme.Commune, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*organisme.Commune), args.Error(1)
}

// ─────────────────────────────────────────────────────────────────────────────
// Formation ports
// ─────────────────────────────────────────────────────────────────────────────

type MockFormationRepository struct {
	mock.Mock
}

func (m *MockFormationRepository) Upsert(ctx context.Context, f *formation.Formation) error {
	return m.Called(ctx, f).Error(0)
}
