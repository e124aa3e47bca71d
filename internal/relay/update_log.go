package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"collab-editor-be/internal/entity"
	"collab-editor-be/internal/pkg/logger"
	"collab-editor-be/internal/repository/contract"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

type logRecord struct {
	Document string `json:"document"`
	UserID   string `json:"user_id"`
	Instance string `json:"instance"`
	Update   []byte `json:"update"`
}

// UpdateLog queues accepted updates on a watermill topic and persists them
// from a single consumer, so rooms never wait on the database.
type UpdateLog struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
	repo       contract.DocumentUpdateRepository
	logger     logger.ILogger
}

func NewUpdateLog(pub message.Publisher, sub message.Subscriber, topic string, repo contract.DocumentUpdateRepository, log logger.ILogger) *UpdateLog {
	return &UpdateLog{
		publisher:  pub,
		subscriber: sub,
		topic:      topic,
		repo:       repo,
		logger:     log,
	}
}

func (l *UpdateLog) Record(document, userID, instance string, update []byte) error {
	payload, err := json.Marshal(logRecord{
		Document: document,
		UserID:   userID,
		Instance: instance,
		Update:   update,
	})
	if err != nil {
		return fmt.Errorf("encode log record: %w", err)
	}
	return l.publisher.Publish(l.topic, message.NewMessage(watermill.NewUUID(), payload))
}

// Start subscribes to the topic and persists queued updates until ctx is
// cancelled. It must run before the first Record: the channel drops messages
// published without a subscriber.
func (l *UpdateLog) Start(ctx context.Context) error {
	messages, err := l.subscriber.Subscribe(ctx, l.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", l.topic, err)
	}

	l.logger.Info("UPDATE_LOG", "Persister started", map[string]interface{}{"topic": l.topic})
	go func() {
		for msg := range messages {
			l.persist(ctx, msg)
		}
	}()
	return nil
}

func (l *UpdateLog) persist(ctx context.Context, msg *message.Message) {
	var rec logRecord
	if err := json.Unmarshal(msg.Payload, &rec); err != nil {
		l.logger.Error("UPDATE_LOG", "Dropping malformed record", map[string]interface{}{"uuid": msg.UUID, "error": err.Error()})
		msg.Ack()
		return
	}

	err := l.repo.Append(ctx, &entity.DocumentUpdate{
		Document: rec.Document,
		UserId:   rec.UserID,
		Instance: rec.Instance,
		Payload:  rec.Update,
	})
	if err != nil {
		// The room's state is still compacted into the log when it closes.
		l.logger.Error("UPDATE_LOG", "Failed to persist update", map[string]interface{}{"document": rec.Document, "error": err.Error()})
	}
	msg.Ack()
}

// Replay returns the stored updates of document in log order.
func (l *UpdateLog) Replay(ctx context.Context, document string) ([][]byte, error) {
	updates, err := l.repo.FindByDocument(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", document, err)
	}
	out := make([][]byte, len(updates))
	for i, u := range updates {
		out[i] = u.Payload
	}
	return out, nil
}

// Compact replaces the stored log of document with state.
func (l *UpdateLog) Compact(ctx context.Context, document, instance string, state []byte) error {
	return l.repo.Compact(ctx, &entity.DocumentUpdate{
		Document: document,
		Instance: instance,
		Payload:  state,
	})
}
