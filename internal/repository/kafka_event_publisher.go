package repository

import (
	"context"

	"SignalRelay/internal/domain/models"
	"SignalRelay/internal/domain/repository"
	pkgkafka "SignalRelay/pkg/kafka"
)

// KafkaEventPublisher writes domain events keyed by their aggregate so that
// events of one signal or invoice stay ordered. It also ships log digests.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

var _ repository.EventPublisher = (*KafkaEventPublisher)(nil)

func (p *KafkaEventPublisher) Publish(ctx context.Context, event models.Event) error {
	return p.producer.PublishBatch(ctx, p.topic, []pkgkafka.Message{{
		Key:     []byte(event.Key),
		Value:   event,
		Headers: map[string]string{"event_type": event.Type},
	}})
}

// PublishMessage implements logger.Publisher.
func (p *KafkaEventPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
