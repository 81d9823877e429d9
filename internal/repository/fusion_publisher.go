package repository

import (
	"context"

	"PriceFusion/internal/domain/models"
	domrepo "PriceFusion/internal/domain/repository"
	pkgkafka "PriceFusion/pkg/kafka"
)

var _ domrepo.FusionPublisher = (*KafkaFusionPublisher)(nil)

// KafkaFusionPublisher writes fused prices to a topic keyed by product key.
type KafkaFusionPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaFusionPublisher(producer *pkgkafka.Producer, topic string) *KafkaFusionPublisher {
	return &KafkaFusionPublisher{producer: producer, topic: topic}
}

func (p *KafkaFusionPublisher) PublishFused(ctx context.Context, fp models.FusedPrice) error {
	return p.producer.Publish(ctx, p.topic, []byte(fp.ProductKey), fp)
}

// PublishBatch writes several fused prices in one request.
func (p *KafkaFusionPublisher) PublishBatch(ctx context.Context, fps []models.FusedPrice) error {
	msgs := make([]pkgkafka.Message, 0, len(fps))
	for _, fp := range fps {
		msgs = append(msgs, pkgkafka.Message{Key: []byte(fp.ProductKey), Value: fp})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}
