package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"

	domain "github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/formation"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// FormationIndexer writes formations to one index, keyed by their clé
// ministère éducatif so that re-imports overwrite.
type FormationIndexer struct {
	client *Client
	index  string
	logger logging.Logger
}

// NewFormationIndexer builds an indexer on the configured index.
func NewFormationIndexer(client *Client, logger logging.Logger) (*FormationIndexer, error) {
	if client == nil {
		return nil, errors.InvalidParam("opensearch client is required")
	}
	if logger == nil {
		return nil, errors.InvalidParam("logger is required")
	}
	return &FormationIndexer{client: client, index: client.cfg.Index, logger: logger}, nil
}

// EnsureIndex creates the index with FormationMapping when it is missing.
func (i *FormationIndexer) EnsureIndex(ctx context.Context) error {
	exists, err := i.indexExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	body, err := json.Marshal(FormationMapping())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal index mapping")
	}
	resp, err := i.client.api.Indices.Create(ctx, opensearchapi.IndicesCreateReq{
		Index: i.index,
		Body:  bytes.NewReader(body),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create index").WithDetail(i.index)
	}
	if resp != nil && !resp.Acknowledged {
		i.logger.Warn("index creation not acknowledged", logging.String("index", i.index))
	}

	i.logger.Info("Index created", logging.String("index", i.index))
	return nil
}

func (i *FormationIndexer) indexExists(ctx context.Context) (bool, error) {
	resp, err := i.client.api.Indices.Exists(ctx, opensearchapi.IndicesExistsReq{Indices: []string{i.index}})
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusOK:
			return true, nil
		case http.StatusNotFound:
			return false, nil
		}
	}
	if err == nil && resp != nil {
		err = errors.Newf(errors.ErrCodeExternalService, "unexpected status %d", resp.StatusCode)
	}
	if err == nil {
		err = errors.New(errors.ErrCodeExternalService, "empty response")
	}
	return false, errors.Wrap(err, errors.ErrCodeExternalService, "failed to check index existence").WithDetail(i.index)
}

// Write indexes f. A rejected document is an infrastructure failure: the
// formation itself was composed successfully.
func (i *FormationIndexer) Write(ctx context.Context, f *domain.Formation) error {
	key := f.Identifiant.CleMinistereEducatif
	body, err := json.Marshal(NewDocument(f))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal document").WithDetail(key)
	}

	_, err = i.client.api.Index(ctx, opensearchapi.IndexReq{
		Index:      i.index,
		DocumentID: key,
		Body:       bytes.NewReader(body),
		Params:     opensearchapi.IndexParams{Refresh: i.client.cfg.Refresh},
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to index formation").
			WithDetailf("index=%s key=%s", i.index, key)
	}

	i.logger.Debug("formation indexed", logging.String("index", i.index), logging.String("cle_ministere_educatif", key))
	return nil
}
