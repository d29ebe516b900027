package messaging

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	data := EtlRejectedEvent{ResultID: "etl-1", Reason: "low coverage", RejectedBy: "u-1"}

	event, err := NewEvent(EventEtlRejected, "lab-portal", "req-9", data)
	require.NoError(t, err)

	_, err = uuid.Parse(event.ID)
	assert.NoError(t, err)
	assert.Equal(t, "lab.etl.rejected", event.Type)
	assert.Equal(t, "req-9", event.CorrelationID)

	var got EtlRejectedEvent
	require.NoError(t, event.UnmarshalData(&got))
	assert.Equal(t, data, got)
}

func TestCorrelationID(t *testing.T) {
	assert.Empty(t, getCorrelationID(context.Background()))
	ctx := WithCorrelationID(context.Background(), "abc")
	assert.Equal(t, "abc", getCorrelationID(ctx))
}

func TestPublisherEnvelope(t *testing.T) {
	p := &Publisher{exchange: ExchangeLabEvents, source: "lab-portal"}
	ctx := WithCorrelationID(context.Background(), "req-3")

	msg, event, err := p.envelope(ctx, EventFastqRejected, FastqRejectedEvent{PairID: "p-1", RedoReason: "R2 truncated"})
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, uint8(2), msg.DeliveryMode)
	assert.Equal(t, "req-3", msg.CorrelationId)
	assert.Equal(t, event.ID, msg.MessageId)
	assert.Equal(t, EventFastqRejected, msg.Type)
	assert.Contains(t, string(msg.Body), `"pair_id":"p-1"`)
}

func TestPublisherEnvelope_BadPayload(t *testing.T) {
	p := &Publisher{source: "lab-portal"}
	_, _, err := p.envelope(context.Background(), EventFileDeleted, make(chan int))
	assert.Error(t, err)
}
