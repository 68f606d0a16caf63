package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes JSON events, one Kafka topic per event topic under a
// common prefix (e.g. "payments.events.order.confirmed").
type KafkaPublisher struct {
	writer messageWriter
	prefix string
}

func NewKafkaPublisher(brokers []string, prefix string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			WriteTimeout:           10 * time.Second,
		},
		prefix: prefix,
	}
}

var _ Publisher = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, event any) error {
	msg, err := p.message(topic, event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Topic, err)
	}
	return nil
}

func (p *KafkaPublisher) message(topic string, event any) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s event: %w", topic, err)
	}

	msg := kafka.Message{
		Topic: topic,
		Value: data,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(topic)},
		},
	}
	if p.prefix != "" {
		msg.Topic = p.prefix + "." + topic
	}
	if keyed, ok := event.(Keyed); ok {
		msg.Key = []byte(keyed.EventKey())
	}
	return msg, nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
