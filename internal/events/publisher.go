// internal/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"time"

	"custody-service/internal/domain"
	"custody-service/internal/metrics"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher emits intent outcome events. Publishing is best effort: the
// intent store already holds the outcome, so a failed write is logged and
// counted, never returned to the caller.
type Publisher struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewPublisher returns a publisher; a nil writer makes every publish a no-op.
func NewPublisher(writer MessageWriter, logger *zap.Logger) *Publisher {
	return &Publisher{writer: writer, logger: logger}
}

// IntentEvent builds the event for the intent's current state.
func IntentEvent(intent *domain.Intent, at time.Time) domain.IntentEvent {
	event := domain.IntentEvent{
		EventID:   uuid.NewString(),
		IntentID:  intent.ID,
		AccountID: intent.AccountID,
		Kind:      intent.Kind,
		Chain:     intent.Chain,
		Status:    intent.Status,
		Failure:   intent.FailureCode,
		At:        at,
	}
	if intent.Result != nil {
		event.TxHash = intent.Result.TxHash
	}
	return event
}

func (p *Publisher) Publish(ctx context.Context, events ...domain.IntentEvent) {
	if p == nil || p.writer == nil || len(events) == 0 {
		return
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("failed to marshal intent event",
				zap.Error(err),
				zap.String("intent_id", event.IntentID))
			metrics.EventPublishErrors.Inc()
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.IntentID),
			Value: data,
			Time:  event.At,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(event.EventID)},
				{Key: "status", Value: []byte(event.Status)},
			},
		})
	}
	if len(msgs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("failed to publish intent events",
			zap.Error(err),
			zap.Int("count", len(msgs)))
		metrics.EventPublishErrors.Add(float64(len(msgs)))
		return
	}

	p.logger.Debug("intent events published", zap.Int("count", len(msgs)))
}
