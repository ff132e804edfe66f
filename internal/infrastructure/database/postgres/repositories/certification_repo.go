package repositories

import (
	"context"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/certification"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/database/postgres"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

type postgresCertificationRepo struct {
	conn     *postgres.Connection
	log      logging.Logger
	executor queryExecutor
}

// NewCertificationStore returns the reconciled certification catalog.
func NewCertificationStore(conn *postgres.Connection, log logging.Logger) certification.CatalogRepository {
	return &postgresCertificationRepo{
		conn:     conn,
		log:      log,
		executor: conn.DB(),
	}
}

// FindByIdentite matches NULL against nil on both sides, so (cfd, nil) never
// returns a (cfd, rncp) entry.
func (r *postgresCertificationRepo) FindByIdentite(ctx context.Context, cfd, rncp *string) (*certification.Certification, error) {
	query := `
		SELECT data FROM certifications
		WHERE cfd IS NOT DISTINCT FROM $1 AND rncp IS NOT DISTINCT FROM $2
	`
	row := r.executor.QueryRowContext(ctx, query, cfd, rncp)
	return scanDocument[certification.Certification](row, "certification")
}

func (r *postgresCertificationRepo) Upsert(ctx context.Context, c *certification.Certification) error {
	if c == nil {
		return errors.InvalidParam("certification cannot be nil")
	}
	data, err := encodeDocument(c, "certification")
	if err != nil {
		return err
	}

	query := `
		INSERT INTO certifications (cfd, rncp, data)
		VALUES ($1, $2, $3)
		ON CONFLICT ((COALESCE(cfd, '')), (COALESCE(rncp, '')))
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`
	if _, err := r.executor.ExecContext(ctx, query, c.Identifiant.Cfd, c.Identifiant.Rncp, data); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert certification").
			WithDetail("key=" + c.Identifiant.Key())
	}
	return nil
}
