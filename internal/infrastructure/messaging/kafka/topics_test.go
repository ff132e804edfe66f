package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/testutil"
)

type mockKafkaConn struct {
	created   []kafka.TopicConfig
	createErr error
	readFunc  func(topics ...string) ([]kafka.Partition, error)
}

func (m *mockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	m.created = append(m.created, topics...)
	return m.createErr
}

func (m *mockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	if m.readFunc != nil {
		return m.readFunc(topics...)
	}
	return nil, nil
}

func (m *mockKafkaConn) Close() error { return nil }

func TestNewTopics(t *testing.T) {
	assert.Equal(t, Topics{FormationImported: "formation.imported", ImportRowFailed: "import.row_failed"}, NewTopics(""))
	assert.Equal(t, "prod.formation.imported", NewTopics("prod").FormationImported)
}

func TestEventEnvelope_RoundTrip(t *testing.T) {
	env, err := NewEventEnvelope(TopicImportRowFailed, "test", map[string]string{"code": "FORM_004"})
	require.NoError(t, err)
	env.Metadata = map[string]string{"run_id": "r1"}

	m, err := env.ToMessage("import.row_failed", "cle-1")
	require.NoError(t, err)
	assert.Equal(t, "cle-1", string(m.Key))
	assert.Equal(t, "r1", m.Headers["run_id"])
	assert.Equal(t, TopicImportRowFailed, m.Headers["event_type"])

	var payload map[string]string
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, "FORM_004", payload["code"])
}

func TestTopicManager_EnsureTopics(t *testing.T) {
	conn := &mockKafkaConn{}
	m := &TopicManager{conn: conn, logger: testutil.NewMockLogger()}

	require.NoError(t, m.EnsureTopics(context.Background(), DefaultTopics(NewTopics("prod"))))
	require.Len(t, conn.created, 2)
	assert.Equal(t, "prod.formation.imported", conn.created[0].Topic)
	assert.Equal(t, "compact", conn.created[0].ConfigEntries[0].ConfigValue)
}

func TestTopicManager_CreateExistingTopicIsNoop(t *testing.T) {
	conn := &mockKafkaConn{
		createErr: errors.New("topic already exists"),
		readFunc: func(topics ...string) ([]kafka.Partition, error) {
			return []kafka.Partition{{Topic: topics[0]}}, nil
		},
	}
	m := &TopicManager{conn: conn, logger: testutil.NewMockLogger()}

	assert.NoError(t, m.CreateTopic(context.Background(), TopicConfig{Name: "x", NumPartitions: 1, ReplicationFactor: 1}))
}

func TestTopicManager_CreateTopicValidation(t *testing.T) {
	m := &TopicManager{conn: &mockKafkaConn{}, logger: testutil.NewMockLogger()}

	assert.Error(t, m.CreateTopic(context.Background(), TopicConfig{}))
	assert.Error(t, m.CreateTopic(context.Background(), TopicConfig{Name: "x"}))
}

func TestTopicManager_CreateTopicFailure(t *testing.T) {
	conn := &mockKafkaConn{createErr: errors.New("not controller")}
	m := &TopicManager{conn: conn, logger: testutil.NewMockLogger()}

	assert.Error(t, m.CreateTopic(context.Background(), TopicConfig{Name: "x", NumPartitions: 1, ReplicationFactor: 1}))
}
