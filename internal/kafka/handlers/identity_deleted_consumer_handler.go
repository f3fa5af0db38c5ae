package kafkahandlers

import (
	"context"
	"encoding/json"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	socialkafka "social-go/internal/kafka"
	"social-go/internal/logger"
)

// SessionDropper ends every live session owned by a user.
type SessionDropper interface {
	DropUser(userID uint) int
}

// IdentityDeletedConsumerLogic closes the live sessions of deleted accounts.
type IdentityDeletedConsumerLogic struct {
	sessions SessionDropper
}

func NewIdentityDeletedConsumerLogic(sessions SessionDropper) *IdentityDeletedConsumerLogic {
	return &IdentityDeletedConsumerLogic{sessions: sessions}
}

// HandleIdentityDeleted is a kafka.MessageHandler. Malformed payloads are
// skipped so their offsets get committed.
func (h *IdentityDeletedConsumerLogic) HandleIdentityDeleted(ctx context.Context, msg *kafka.Message) error {
	var event socialkafka.IdentityDeletedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Warn("skipping malformed identity deleted event", zap.ByteString("value", msg.Value), zap.Error(err))
		return nil
	}
	if event.UserID == 0 {
		return nil
	}

	dropped := h.sessions.DropUser(event.UserID)
	logger.Info("identity deleted, live sessions dropped",
		zap.Uint("user_id", event.UserID), zap.Int("sessions", dropped))
	return nil
}
