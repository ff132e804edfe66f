package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// queryExecutor abstracts sql.DB and sql.Tx
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner abstracts sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanDocument reads a single JSONB data column into a new T. No row yields
// (nil, nil).
func scanDocument[T any](row scanner, what string) (*T, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query "+what)
	}

	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode "+what)
	}
	return out, nil
}

func encodeDocument(v interface{}, what string) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode "+what)
	}
	return raw, nil
}
