package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rentfleet/internal/app/policies"
)

// Publisher is satisfied by the Kafka producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Notification is the message handed to the Notification Service.
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

var ErrMissingRecipient = errors.New("notify: recipient required")

// KafkaEmitter publishes notifications to a topic keyed by user id, so one
// user's notifications stay ordered.
type KafkaEmitter struct {
	Publisher Publisher
	Topic     string
	Now       func() time.Time
	NewID     func() string
}

func (e KafkaEmitter) Emit(ctx context.Context, userID, kind, message string, metadata map[string]string) error {
	if userID == "" {
		return ErrMissingRecipient
	}
	n := Notification{
		ID:        e.newID(),
		UserID:    userID,
		Type:      kind,
		Message:   message,
		Metadata:  metadata,
		CreatedAt: e.now().UTC(),
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return e.Publisher.Publish(ctx, e.Topic, userID, payload, map[string]string{
		"content-type":      "application/json",
		"notification-type": kind,
	})
}

func (e KafkaEmitter) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e KafkaEmitter) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

// LogEmitter writes notifications to the log. Used when no notification
// topic is configured.
type LogEmitter struct {
	Logger *slog.Logger
}

func (e LogEmitter) Emit(ctx context.Context, userID, kind, message string, metadata map[string]string) error {
	if userID == "" {
		return ErrMissingRecipient
	}
	log := e.Logger
	if log == nil {
		log = slog.Default()
	}
	attrs := []any{
		slog.String("user_id", userID),
		slog.String("type", kind),
		slog.String("message", message),
	}
	for k, v := range metadata {
		attrs = append(attrs, slog.String("meta."+k, v))
	}
	log.InfoContext(ctx, "notification", attrs...)
	return nil
}

var (
	_ policies.Notifier = KafkaEmitter{}
	_ policies.Notifier = LogEmitter{}
)
