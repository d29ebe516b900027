package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/genelab/lab-portal/pkg/logger"
)

// Publisher sends portal events to one topic exchange, routed by event type
type Publisher struct {
	rmq      *RabbitMQ
	exchange string
	source   string
	logger   *logger.Logger
}

// NewPublisher declares exchange and returns a Publisher that stamps
// every event with source.
func NewPublisher(rmq *RabbitMQ, exchange, source string, log *logger.Logger) (*Publisher, error) {
	if err := rmq.DeclareExchange(exchange); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &Publisher{rmq: rmq, exchange: exchange, source: source, logger: log.WithComponent("publisher")}, nil
}

// Publish wraps data in an Event and sends it persistently. If the channel
// was closed underneath us the connection is re-established and the
// message sent once more.
func (p *Publisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	msg, event, err := p.envelope(ctx, eventType, data)
	if err != nil {
		return err
	}

	err = p.send(ctx, eventType, msg)
	if errors.Is(err, amqp.ErrClosed) {
		p.logger.Warn().Str("event_type", eventType).Msg("channel closed, reconnecting before retry")
		if err = p.rmq.Reconnect(ctx); err == nil {
			err = p.send(ctx, eventType, msg)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}

	p.logger.Debug().
		Str("event_type", eventType).
		Str("event_id", event.ID).
		Str("correlation_id", event.CorrelationID).
		Msg("event published")
	return nil
}

func (p *Publisher) envelope(ctx context.Context, eventType string, data interface{}) (amqp.Publishing, *Event, error) {
	event, err := NewEvent(eventType, p.source, getCorrelationID(ctx), data)
	if err != nil {
		return amqp.Publishing{}, nil, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, nil, fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}

	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: event.CorrelationID,
		MessageId:     event.ID,
		Timestamp:     event.Timestamp,
		Type:          eventType,
		AppId:         p.source,
		Body:          body,
	}, event, nil
}

func (p *Publisher) send(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	ch := p.rmq.Channel()
	if ch == nil {
		return amqp.ErrClosed
	}
	return ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
}

type correlationIDKey struct{}

// WithCorrelationID sets the correlation ID stamped on events published with ctx
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, correlationID)
}

func getCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}
