package repositories

import (
	"context"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/certification"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/database/postgres"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// SourceStore reads the raw BCN and France Compétences records and lets the
// source loaders refresh them.
type SourceStore interface {
	certification.SourceRepository
	UpsertCfd(ctx context.Context, rec *certification.CfdRecord) error
	UpsertRncp(ctx context.Context, rec *certification.RncpRecord) error
}

type postgresSourceRepo struct {
	conn     *postgres.Connection
	log      logging.Logger
	executor queryExecutor
}

func NewSourceStore(conn *postgres.Connection, log logging.Logger) SourceStore {
	return &postgresSourceRepo{
		conn:     conn,
		log:      log,
		executor: conn.DB(),
	}
}

func (r *postgresSourceRepo) FindCfd(ctx context.Context, code string) (*certification.CfdRecord, error) {
	row := r.executor.QueryRowContext(ctx, `SELECT data FROM source_bcn WHERE code = $1`, code)
	rec, err := scanDocument[certification.CfdRecord](row, "bcn record")
	return rec, unusableSource(err, "cfd="+code)
}

func (r *postgresSourceRepo) FindRncp(ctx context.Context, code string) (*certification.RncpRecord, error) {
	row := r.executor.QueryRowContext(ctx, `SELECT data FROM source_france_competence WHERE numero = $1`, code)
	rec, err := scanDocument[certification.RncpRecord](row, "france competences record")
	return rec, unusableSource(err, "rncp="+code)
}

func (r *postgresSourceRepo) UpsertCfd(ctx context.Context, rec *certification.CfdRecord) error {
	if rec == nil || rec.Code == "" {
		return errors.InvalidParam("bcn record requires a code")
	}
	return r.upsert(ctx, `
		INSERT INTO source_bcn (code, data) VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET data = EXCLUDED.data, imported_at = NOW()
	`, rec.Code, rec, "bcn record")
}

func (r *postgresSourceRepo) UpsertRncp(ctx context.Context, rec *certification.RncpRecord) error {
	if rec == nil || rec.Numero == "" {
		return errors.InvalidParam("france competences record requires a numero")
	}
	return r.upsert(ctx, `
		INSERT INTO source_france_competence (numero, data) VALUES ($1, $2)
		ON CONFLICT (numero) DO UPDATE SET data = EXCLUDED.data, imported_at = NOW()
	`, rec.Numero, rec, "france competences record")
}

func (r *postgresSourceRepo) upsert(ctx context.Context, query, key string, doc interface{}, what string) error {
	data, err := encodeDocument(doc, what)
	if err != nil {
		return err
	}
	if _, err := r.executor.ExecContext(ctx, query, key, data); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert "+what).WithDetail("key=" + key)
	}
	return nil
}

// unusableSource turns an undecodable record into a row-level failure. Other
// errors are returned unchanged.
func unusableSource(err error, detail string) error {
	if err == nil {
		return nil
	}
	if errors.IsCode(err, errors.ErrCodeSerialization) {
		return errors.Wrap(err, errors.ErrCodeCertificationSource, "source record unusable").WithDetail(detail)
	}
	return err
}
