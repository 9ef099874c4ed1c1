package repository

import (
	"context"
	"fmt"

	"bvp/internal/domain/models"
	"bvp/internal/domain/repository"
	pkgkafka "bvp/pkg/kafka"
)

// KafkaPublisher implements Publisher for Kafka.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// beliefKey keeps all beliefs of one asset on the same partition.
func beliefKey(tv models.TimedValue) []byte {
	return []byte(fmt.Sprintf("%s:%d", tv.Kind, tv.AssetID))
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, values []models.TimedValue) error {
	if len(values) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(values))
	for i, tv := range values {
		msgs[i] = pkgkafka.Message{Key: beliefKey(tv), Value: tv}
	}
	return p.producer.Publish(ctx, p.topic, msgs...)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
