package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/events"

	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	// TopicOrderEvents carries every order lifecycle event, keyed by order id so one order's
	// events stay in partition order.
	TopicOrderEvents = `backoffice.order-events`
	HeaderEventType  = "event-type"
)

type Conf struct {
	client  *kgo.Client
	topic   string
	timeout time.Duration
}

// NewConf builds a producer whose records fail after deliveryTimeout instead of retrying
// forever against an unreachable broker.
func NewConf(brokers []string, deliveryTimeout time.Duration) (*Conf, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	if deliveryTimeout <= 0 {
		return nil, fmt.Errorf("kafka delivery timeout must be positive")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerLinger(10*time.Millisecond),
		kgo.RecordDeliveryTimeout(deliveryTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return &Conf{client: client, topic: TopicOrderEvents, timeout: deliveryTimeout}, nil
}

func (k *Conf) ProduceMessage(ctx context.Context, topic string, key, value []byte, headers ...kgo.RecordHeader) error {
	return k.produce(ctx, &kgo.Record{Topic: topic, Key: key, Value: value, Headers: headers})
}

// Publish implements events.Publisher.
func (k *Conf) Publish(ctx context.Context, e events.Event) error {
	rec, err := record(k.topic, e)
	if err != nil {
		return err
	}
	return k.produce(ctx, rec)
}

func (k *Conf) produce(ctx context.Context, rec *kgo.Record) error {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	if err := k.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce to %s: %w", rec.Topic, err)
	}
	return nil
}

func record(topic string, e events.Event) (*kgo.Record, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return &kgo.Record{
		Topic:     topic,
		Key:       []byte(e.OrderID),
		Value:     value,
		Headers:   []kgo.RecordHeader{{Key: HeaderEventType, Value: []byte(e.Type)}},
		Timestamp: e.OccurredAt,
	}, nil
}

func (k *Conf) Close() {
	k.client.Close()
}
