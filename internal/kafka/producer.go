package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-minting/internal/models"
)

const (
	TopicBatchCreated  = "esg.coupon.batch.created"
	TopicBatchProgress = "esg.coupon.batch.progress"
)

type Producer struct {
	Writer *kafka.Writer
}

// NewProducer creates a producer that can publish to any topic on the
// given brokers.
func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer}
}

// Publish sends a raw message to a topic.
func (p *Producer) Publish(topic, key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

// PublishBatchCreated streams the mint-batch creation event to Kafka
func (p *Producer) PublishBatchCreated(event models.BatchCreatedEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	fmt.Printf("Publishing to Kafka [%s]: %s\n", TopicBatchCreated, string(msgBytes))

	return p.Publish(TopicBatchCreated, strconv.FormatInt(event.BatchID, 10), msgBytes)
}

// PublishBatchProgress streams a per-chunk progress event to Kafka
func (p *Producer) PublishBatchProgress(event models.BatchProgressEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.Publish(TopicBatchProgress, strconv.FormatInt(event.BatchID, 10), msgBytes)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
