package kafka

import (
	"context"

	appformation "github.com/mission-apprentissage/api-apprentissage-sub004/internal/application/formation"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/formation"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

const publisherSource = "apprentissage-importer"

// messagePublisher is the subset of Producer the publisher needs.
type messagePublisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// FormationPublisher publishes imported formations and rejected rows. It is
// both an importer Sink and a FailureReporter.
type FormationPublisher struct {
	producer messagePublisher
	topics   Topics
	logger   logging.Logger
}

func NewFormationPublisher(producer messagePublisher, topics Topics, logger logging.Logger) (*FormationPublisher, error) {
	if producer == nil {
		return nil, errors.InvalidParam("producer cannot be nil")
	}
	if logger == nil {
		return nil, errors.InvalidParam("logger cannot be nil")
	}
	return &FormationPublisher{producer: producer, topics: topics, logger: logger}, nil
}

// Write publishes f keyed by its cle_ministere_educatif.
func (p *FormationPublisher) Write(ctx context.Context, f *formation.Formation) error {
	env, err := NewEventEnvelope(TopicFormationImported, publisherSource, f)
	if err != nil {
		return err
	}
	env.Metadata = map[string]string{"statut_catalogue": string(f.Statut.Catalogue)}

	msg, err := env.ToMessage(p.topics.FormationImported, f.Identifiant.CleMinistereEducatif)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

// ReportFailure publishes a rejected row.
func (p *FormationPublisher) ReportFailure(ctx context.Context, failure appformation.RowFailure) error {
	env, err := NewEventEnvelope(TopicImportRowFailed, publisherSource, failure)
	if err != nil {
		return err
	}
	env.Metadata = map[string]string{
		"run_id": failure.RunID,
		"code":   string(failure.Code),
	}

	msg, err := env.ToMessage(p.topics.ImportRowFailed, failure.CleMinistereEducatif)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

var (
	_ appformation.Sink            = (*FormationPublisher)(nil)
	_ appformation.FailureReporter = (*FormationPublisher)(nil)
)
