package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-go/internal/config"
)

type sentMessage struct {
	topic   string
	key     string
	payload []byte
}

type recordingProducer struct {
	sent []sentMessage
	err  error
}

func (p *recordingProducer) SendMessage(_ context.Context, topic string, key []byte, payload []byte) error {
	p.sent = append(p.sent, sentMessage{topic: topic, key: string(key), payload: payload})
	return p.err
}

func (p *recordingProducer) Close() {}

func TestEventPublisherRoutesByTopic(t *testing.T) {
	producer := &recordingProducer{}
	cfg := config.KafkaConfig{IdentityDeletedTopic: "deleted", FriendshipChangedTopic: "friends"}
	pub := NewEventPublisher(producer, cfg)

	pub.IdentityDeleted(context.Background(), IdentityDeletedEvent{UserID: 7, Username: "alice"})
	pub.FriendshipChanged(context.Background(), FriendshipChangedEvent{ActorID: 1, SubjectID: 2, Action: "request", State: "sent"})

	require.Len(t, producer.sent, 2)
	assert.Equal(t, "deleted", producer.sent[0].topic)
	assert.Equal(t, "7", producer.sent[0].key)
	assert.Equal(t, "friends", producer.sent[1].topic)
	assert.Equal(t, "1-2", producer.sent[1].key)

	var event IdentityDeletedEvent
	require.NoError(t, json.Unmarshal(producer.sent[0].payload, &event))
	assert.Equal(t, "alice", event.Username)
}

func TestEventPublisherSwallowsProducerErrors(t *testing.T) {
	producer := &recordingProducer{err: errors.New("broker down")}
	pub := NewEventPublisher(producer, config.KafkaConfig{IdentityDeletedTopic: "deleted"})

	assert.NotPanics(t, func() {
		pub.IdentityDeleted(context.Background(), IdentityDeletedEvent{UserID: 1})
	})
	assert.Len(t, producer.sent, 1)
}

func TestNewProducerDisabledIsNoop(t *testing.T) {
	p, err := NewProducer(config.KafkaConfig{Enabled: false})
	require.NoError(t, err)
	assert.IsType(t, NoopProducer{}, p)
	assert.NoError(t, p.SendMessage(context.Background(), "t", nil, nil))
}
