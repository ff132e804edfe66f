package repositories

import (
	"context"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/organisme"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/database/postgres"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

type postgresOrganismeRepo struct {
	conn     *postgres.Connection
	log      logging.Logger
	executor queryExecutor
}

// NewOrganismeStore returns the training organism referential.
func NewOrganismeStore(conn *postgres.Connection, log logging.Logger) organisme.CatalogRepository {
	return &postgresOrganismeRepo{
		conn:     conn,
		log:      log,
		executor: conn.DB(),
	}
}

func (r *postgresOrganismeRepo) FindBySiretUai(ctx context.Context, siret, uai string) (*organisme.Organisme, error) {
	query := `SELECT data FROM organismes WHERE siret = $1 AND uai = $2`
	row := r.executor.QueryRowContext(ctx, query, siret, uai)
	return scanDocument[organisme.Organisme](row, "organisme")
}

// FindBySiret picks deterministically among the entries sharing a siret:
// entries with a uai come first, in uai order.
func (r *postgresOrganismeRepo) FindBySiret(ctx context.Context, siret string) (*organisme.Organisme, error) {
	query := `
		SELECT data FROM organismes
		WHERE siret = $1
		ORDER BY uai NULLS LAST, uai
		LIMIT 1
	`
	row := r.executor.QueryRowContext(ctx, query, siret)
	return scanDocument[organisme.Organisme](row, "organisme")
}

func (r *postgresOrganismeRepo) Upsert(ctx context.Context, o *organisme.Organisme) error {
	if o == nil {
		return errors.InvalidParam("organisme cannot be nil")
	}
	data, err := encodeDocument(o, "organisme")
	if err != nil {
		return err
	}

	query := `
		INSERT INTO organismes (siret, uai, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (siret, (COALESCE(uai, '')))
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`
	if _, err := r.executor.ExecContext(ctx, query, o.Identifiant.Siret, o.Identifiant.Uai, data); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert organisme").
			WithDetail("key=" + organisme.Key(o.Identifiant.Siret, o.Identifiant.Uai))
	}
	return nil
}
