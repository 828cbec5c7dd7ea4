package producers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/plotbook-crm/internal/config"
	"github.com/segmentio/kafka-go"
)

var ErrDLQDisabled = errors.New("DLQ producer not initialized")

// DeadLetter is the JSON envelope written to the DLQ topic. Payload holds the
// original value verbatim when it is valid JSON, RawValue otherwise.
type DeadLetter struct {
	Key         string          `json:"key"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	RawValue    string          `json:"raw_value,omitempty"`
	EventID     string          `json:"event_id,omitempty"`
	Stage       string          `json:"stage"`
	Reason      string          `json:"reason"`
	SourceTopic string          `json:"source_topic"`
	RejectedAt  time.Time       `json:"rejected_at"`
}

type DLQProducer struct {
	logger      *slog.Logger
	writer      KafkaWriter
	dlqTopic    string
	sourceTopic string
	now         func() time.Time
}

// NewDLQProducer returns a nil producer if cfg.DLQTopic is empty
func NewDLQProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*DLQProducer, error) {
	if cfg.DLQTopic == "" {
		logger.Warn("No DLQ topic configured; unrecordable activity events will be redelivered")
		return nil, nil
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for dlq producer: %w", err)
	}
	defer conn.Close()

	if err := createKafkaTopicIfNotExists(conn, cfg.DLQTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure DLQ topic %s exists: %w", cfg.DLQTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.DLQTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.MaxWait,
	}
	return NewDLQProducerWithWriter(logger, writer, cfg.DLQTopic, cfg.ActivityTopic), nil
}

func NewDLQProducerWithWriter(logger *slog.Logger, writer KafkaWriter, dlqTopic, sourceTopic string) *DLQProducer {
	return &DLQProducer{
		logger:      logger.With("topic", dlqTopic),
		writer:      writer,
		dlqTopic:    dlqTopic,
		sourceTopic: sourceTopic,
		now:         time.Now,
	}
}

func (p *DLQProducer) PublishToDLQ(ctx context.Context, rejection Rejection) error {
	if p == nil || p.writer == nil {
		return ErrDLQDisabled
	}

	letter := DeadLetter{
		Key:         string(rejection.Key),
		EventID:     rejection.EventID,
		Stage:       rejection.Stage,
		SourceTopic: p.sourceTopic,
		RejectedAt:  p.now().UTC(),
	}
	if rejection.Cause != nil {
		letter.Reason = rejection.Cause.Error()
	}
	if json.Valid(rejection.Value) {
		letter.Payload = rejection.Value
	} else {
		letter.RawValue = string(rejection.Value)
	}

	value, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	headers := []kafka.Header{
		{Key: "dlq-stage", Value: []byte(rejection.Stage)},
		{Key: "source-topic", Value: []byte(p.sourceTopic)},
	}
	if rejection.EventID != "" {
		headers = append(headers, kafka.Header{Key: "event-id", Value: []byte(rejection.EventID)})
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{Key: rejection.Key, Value: value, Headers: headers})
	if err != nil {
		p.logger.Error("Failed to publish dead letter", "key", letter.Key, "stage", letter.Stage, "error", err)
		return fmt.Errorf("failed to publish message to DLQ %s: %w", p.dlqTopic, err)
	}

	p.logger.Info("Published dead letter", "key", letter.Key, "event_id", letter.EventID, "stage", letter.Stage)
	return nil
}

func (p *DLQProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	p.logger.Info("Closing DLQ producer")
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close dlq kafka writer for topic %s: %w", p.dlqTopic, err)
	}
	return nil
}
