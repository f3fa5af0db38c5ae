package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"social-go/internal/config"
	"social-go/internal/logger"
)

// IdentityDeletedEvent is published after an account and its content were removed.
type IdentityDeletedEvent struct {
	UserID    uint      `json:"userId"`
	Username  string    `json:"username"`
	ActorID   uint      `json:"actorId"`
	Timestamp time.Time `json:"timestamp"`
}

// FriendshipChangedEvent is published after a friendship transition changed the store.
type FriendshipChangedEvent struct {
	ActorID   uint      `json:"actorId"`
	SubjectID uint      `json:"subjectId"`
	Action    string    `json:"action"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// EventPublisher serializes domain events onto their configured topics.
// Publishing is best-effort: failures are logged and never surface to callers.
type EventPublisher struct {
	producer MessageProducer
	cfg      config.KafkaConfig
}

func NewEventPublisher(producer MessageProducer, cfg config.KafkaConfig) *EventPublisher {
	if producer == nil {
		producer = NoopProducer{}
	}
	return &EventPublisher{producer: producer, cfg: cfg}
}

func (p *EventPublisher) IdentityDeleted(ctx context.Context, event IdentityDeletedEvent) {
	p.publish(ctx, p.cfg.IdentityDeletedTopic, strconv.FormatUint(uint64(event.UserID), 10), event)
}

func (p *EventPublisher) FriendshipChanged(ctx context.Context, event FriendshipChangedEvent) {
	key := fmt.Sprintf("%d-%d", event.ActorID, event.SubjectID)
	p.publish(ctx, p.cfg.FriendshipChangedTopic, key, event)
}

func (p *EventPublisher) publish(ctx context.Context, topic, key string, event interface{}) {
	if p == nil || topic == "" {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("marshal event failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	if err := p.producer.SendMessage(ctx, topic, []byte(key), payload); err != nil {
		logger.Warn("publish event failed", zap.String("topic", topic), zap.String("key", key), zap.Error(err))
	}
}
