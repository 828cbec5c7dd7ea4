package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/plotbook-crm/internal/config"
	"github.com/segmentio/kafka-go"
)

// ActivityEventProducer relays activity events to the activity topic.
// Writes are synchronous so the outbox only marks a message processed once
// the broker has acknowledged it.
type ActivityEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewActivityEventProducer creates the producer and ensures the topic exists
func NewActivityEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*ActivityEventProducer, error) {
	if cfg.ActivityTopic == "" {
		return nil, fmt.Errorf("kafka activity topic is not configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for activity producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.ActivityTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure activity topic %s exists: %w", cfg.ActivityTopic, err)
	}

	writer := &kafka.Writer{
		Addr:  kafka.TCP(cfg.Brokers),
		Topic: cfg.ActivityTopic,
		// Keyed by entity id so events for one customer stay ordered
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return NewActivityEventProducerWithWriter(logger, writer, cfg.ActivityTopic), nil
}

// NewActivityEventProducerWithWriter builds a producer around an existing writer
func NewActivityEventProducerWithWriter(logger *slog.Logger, writer KafkaWriter, topic string) *ActivityEventProducer {
	return &ActivityEventProducer{
		logger: logger,
		writer: writer,
		topic:  topic,
	}
}

// Publish marshals value to JSON and writes it under key. A json.RawMessage
// value is written unchanged.
func (p *ActivityEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal activity event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish activity event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish activity event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published activity event",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *ActivityEventProducer) Close() error {
	p.logger.Info("Closing activity event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close activity kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
