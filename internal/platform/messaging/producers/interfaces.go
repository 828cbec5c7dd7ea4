package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// MessagePublisher publishes activity events to the primary topic
type MessagePublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// DeadLetterPublisher parks activity events the processor can never record
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, rejection Rejection) error
	Close() error
}

// Rejection describes one consumed message and why it was refused
type Rejection struct {
	Key   []byte
	Value []byte
	// Stage names the pipeline step that refused the message, e.g. "decode"
	Stage   string
	Cause   error
	EventID string // empty when the payload could not be decoded
}

// KafkaWriter is the subset of *kafka.Writer the producers use
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	_ MessagePublisher    = (*ActivityEventProducer)(nil)
	_ DeadLetterPublisher = (*DLQProducer)(nil)
)
