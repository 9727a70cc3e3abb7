package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"custody-service/internal/domain"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func TestPublishIntentEvent(t *testing.T) {
	writer := &recordingWriter{}
	publisher := NewPublisher(writer, zap.NewNop())

	intent := &domain.Intent{
		ID:        "int_1",
		AccountID: 9,
		Kind:      domain.IntentKindSend,
		Chain:     "polygon",
		Status:    domain.IntentStatusExecuted,
		Result:    &domain.SubmitResult{TxHash: "0xfeed"},
	}
	publisher.Publish(context.Background(), IntentEvent(intent, time.Now()))

	require.Len(t, writer.msgs, 1)
	assert.Equal(t, "int_1", string(writer.msgs[0].Key))

	var event domain.IntentEvent
	require.NoError(t, json.Unmarshal(writer.msgs[0].Value, &event))
	assert.Equal(t, domain.IntentStatusExecuted, event.Status)
	assert.Equal(t, "0xfeed", event.TxHash)
	assert.NotEmpty(t, event.EventID)
}

func TestPublishSwallowsErrorsAndNilWriter(t *testing.T) {
	writer := &recordingWriter{err: errors.New("broker down")}
	publisher := NewPublisher(writer, zap.NewNop())
	publisher.Publish(context.Background(), IntentEvent(&domain.Intent{ID: "int_1"}, time.Now()))
	assert.Len(t, writer.msgs, 1)

	NewPublisher(nil, zap.NewNop()).Publish(context.Background(), IntentEvent(&domain.Intent{ID: "int_2"}, time.Now()))

	var nilPublisher *Publisher
	nilPublisher.Publish(context.Background(), IntentEvent(&domain.Intent{ID: "int_3"}, time.Now()))
}
