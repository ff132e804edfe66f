package repositories

import (
	"context"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/formation"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/database/postgres"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

type postgresFormationRepo struct {
	conn     *postgres.Connection
	log      logging.Logger
	executor queryExecutor
}

// NewFormationStore returns the formation store used as the import sink.
func NewFormationStore(conn *postgres.Connection, log logging.Logger) formation.Repository {
	return &postgresFormationRepo{
		conn:     conn,
		log:      log,
		executor: conn.DB(),
	}
}

func (r *postgresFormationRepo) Upsert(ctx context.Context, f *formation.Formation) error {
	if f == nil || f.Identifiant.CleMinistereEducatif == "" {
		return errors.InvalidParam("formation requires a cle_ministere_educatif")
	}
	data, err := encodeDocument(f, "formation")
	if err != nil {
		return err
	}

	var cfd, rncp, formateur *string
	if c := f.Certification.Valeur; c != nil {
		cfd, rncp = c.Identifiant.Cfd, c.Identifiant.Rncp
	}
	if o := f.Formateur.Organisme; o != nil {
		formateur = &o.Identifiant.Siret
	}

	query := `
		INSERT INTO formations (cle_ministere_educatif, cfd, rncp, formateur_siret, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cle_ministere_educatif)
		DO UPDATE SET cfd = EXCLUDED.cfd, rncp = EXCLUDED.rncp,
			formateur_siret = EXCLUDED.formateur_siret, data = EXCLUDED.data, updated_at = NOW()
	`
	if _, err := r.executor.ExecContext(ctx, query, f.Identifiant.CleMinistereEducatif, cfd, rncp, formateur, data); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert formation").
			WithDetail("cle_ministere_educatif=" + f.Identifiant.CleMinistereEducatif)
	}
	return nil
}
