package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/events"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	priorityDefault   = 5
	priorityUrgent    = 8
	contentTypeJSON   = "application/json"
	exchangeKindTopic = "topic"
)

// Publisher sends order events to a durable topic exchange. The routing key is the event
// type, so consumers bind on patterns like "order.cancellation_*".
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,
		exchangeKindTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &Publisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// Publish implements events.Publisher.
func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	msg, err := publishing(e)
	if err != nil {
		return err
	}
	if err := p.channel.PublishWithContext(ctx, p.exchange, e.Type, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.Type, err)
	}
	return nil
}

// publishing builds a persistent message. Cancellation traffic jumps the queue because it
// needs an admin decision while the order can still be stopped.
func publishing(e events.Event) (amqp.Publishing, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	priority := uint8(priorityDefault)
	if strings.HasPrefix(e.Type, "order.cancellation_") {
		priority = priorityUrgent
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.OccurredAt,
		ContentType:  contentTypeJSON,
		MessageId:    e.ID,
		Type:         e.Type,
		Priority:     priority,
		Body:         body,
	}, nil
}

func (p *Publisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
