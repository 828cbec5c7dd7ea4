package consumers

import (
	"context"
	"log/slog"
	"time"

	"github.com/plotbook-crm/internal/config"
	"github.com/segmentio/kafka-go"
)

// fetchRetryDelay is the pause after a failed fetch before polling again
const fetchRetryDelay = time.Second

// Handler failures are retried in place, doubling the pause up to the cap
const (
	handleRetryBase = 200 * time.Millisecond
	handleRetryMax  = 30 * time.Second
)

type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer defines the message queue consumer interface
type Consumer interface {
	Subscribe(ctx context.Context, handler MessageHandler) error
	Close() error
}

// MessageReader wraps the kafka.Reader methods used by the consumer
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer reads the activity topic within a consumer group
type KafkaConsumer struct {
	reader  MessageReader
	logger  *slog.Logger
	topic   string
	groupID string
	done    chan struct{}

	retryBase time.Duration
	retryMax  time.Duration
}

func NewKafkaConsumer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) *KafkaConsumer {
	startOffset := kafka.FirstOffset
	if cfg.StartOffset == kafka.LastOffset {
		startOffset = kafka.LastOffset
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{cfg.Brokers},
		Topic:       cfg.ActivityTopic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: startOffset,
	})
	return NewKafkaConsumerWithReader(logger, reader, cfg.ActivityTopic, cfg.ConsumerGroup)
}

// NewKafkaConsumerWithReader builds a consumer around an existing reader
func NewKafkaConsumerWithReader(logger *slog.Logger, reader MessageReader, topic, groupID string) *KafkaConsumer {
	return &KafkaConsumer{
		reader:  reader,
		logger:  logger.With("topic", topic, "group_id", groupID),
		topic:   topic,
		groupID: groupID,
		done:    make(chan struct{}),

		retryBase: handleRetryBase,
		retryMax:  handleRetryMax,
	}
}

// Subscribe starts the fetch loop in the background. A message is retried
// until the handler returns nil, and only then committed and followed by the
// next fetch. Committing a later offset would skip a failed message for good.
func (c *KafkaConsumer) Subscribe(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Subscribed to Kafka topic")

	go func() {
		defer close(c.done)
		for {
			if ctx.Err() != nil {
				c.logger.Info("Context canceled, stopping consumer")
				return
			}

			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Info("Context canceled, stopping consumer")
					return
				}
				c.logger.Error("Failed to fetch message from Kafka", "error", err)

				select {
				case <-ctx.Done():
					return
				case <-time.After(fetchRetryDelay):
				}
				continue
			}

			c.handle(ctx, msg, handler)
		}
	}()

	return nil
}

func (c *KafkaConsumer) handle(ctx context.Context, msg kafka.Message, handler MessageHandler) {
	log := c.logger.With(
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
	)
	log.Debug("Received message from Kafka")

	delay := c.retryBase
	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg.Key, msg.Value)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			// Uncommitted, so the group redelivers it after restart
			log.Info("Context canceled before message was processed", "error", err)
			return
		}
		log.Error("Failed to process message, retrying", "attempt", attempt, "retry_in", delay.String(), "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, c.retryMax)
	}

	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.Error("Failed to commit message after successful processing", "error", err)
		return
	}
	log.Debug("Message committed successfully")
}

// Done is closed once the fetch loop started by Subscribe has exited
func (c *KafkaConsumer) Done() <-chan struct{} {
	return c.done
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
