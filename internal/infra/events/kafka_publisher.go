package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Spok95/podvest/internal/domain/event"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher sends events keyed by subject, so all events of one pod land on
// the same partition in commit order.
type KafkaPublisher struct {
	writer       messageWriter
	defaultTopic string
	topicByEvent map[string]string
}

func NewKafkaPublisher(brokers []string, defaultTopic string, topicByEvent map[string]string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if defaultTopic == "" {
		defaultTopic = "podvest.events"
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		defaultTopic: defaultTopic,
		topicByEvent: topicByEvent,
	}, nil
}

func (p *KafkaPublisher) Name() string { return "kafka" }

func (p *KafkaPublisher) Publish(ctx context.Context, env event.Envelope) error {
	topic := p.defaultTopic
	if mapped, ok := p.topicByEvent[string(env.Type)]; ok && mapped != "" {
		topic = mapped
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(env.Subject),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(env.ID)},
			{Key: "event_type", Value: []byte(env.Type)},
		},
		Time: env.CreatedAt,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
