package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"

	"ms-minting/internal/models"
)

type Consumer struct {
	reader *kafka.Reader
}

// NewProgressConsumer creates a consumer for batch progress events.
func NewProgressConsumer(brokers []string, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    TopicBatchProgress,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader}
}

// Start begins consuming progress events until the context is cancelled.
func (c *Consumer) Start(ctx context.Context, handler func(event models.BatchProgressEvent)) {
	fmt.Println("Kafka progress consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Error reading progress message: %v\n", err)
			continue
		}

		var event models.BatchProgressEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("Failed to unmarshal progress message: %v\n", err)
			continue
		}

		handler(event)
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
