package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/IBM/sarama"

	"simcheck/types"
)

// Producer publishes job completion events.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer connects a synchronous producer to brokers.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	sp, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating Kafka producer: %w", err)
	}
	log.Printf("✅ Kafka producer connected (topic: %s)", topic)
	return NewProducerFrom(sp, topic), nil
}

// NewProducerFrom wraps an existing sarama producer.
func NewProducerFrom(sp sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: sp, topic: topic}
}

// PublishJobCompleted sends event keyed by document id, so events of one
// document keep their order.
func (p *Producer) PublishJobCompleted(ctx context.Context, event types.JobCompletedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.DocumentID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return types.Transient(fmt.Errorf("publishing job %s: %w", event.JobID, err))
	}
	log.Printf("📤 Published %s for job %s (partition=%d, offset=%d)", event.Status, event.JobID, partition, offset)
	return nil
}

// Close flushes and closes the producer.
func (p *Producer) Close() error {
	return p.producer.Close()
}
