package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	partitionReadAttempts = 5
	partitionReadBackoff  = 2 * time.Second
)

// TopicCreator is the subset of *kafka.Conn used to provision topics
type TopicCreator interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}

// createKafkaTopicIfNotExists creates the topic when no partitions can be read
// for it. Partition reads are retried since a fresh broker may still be
// electing a controller.
func createKafkaTopicIfNotExists(conn TopicCreator, topicName string, numPartitions int, replicationFactor int, log *slog.Logger) error {
	return ensureTopic(conn, topicName, numPartitions, replicationFactor, partitionReadBackoff, log)
}

func ensureTopic(conn TopicCreator, topicName string, numPartitions, replicationFactor int, backoff time.Duration, log *slog.Logger) error {
	log = log.With("topic", topicName)
	log.Info("Checking if Kafka topic exists")

	var partitions []kafka.Partition
	var err error
	for i := 0; i < partitionReadAttempts; i++ {
		partitions, err = conn.ReadPartitions(topicName)
		if err == nil {
			break
		}
		log.Warn("Failed to read partitions, retrying", "attempt", i+1, "error", err)
		time.Sleep(backoff)
	}

	if len(partitions) > 0 {
		log.Info("Kafka topic already exists", "partitions", len(partitions))
		return nil
	}

	topicConfig := kafka.TopicConfig{
		Topic:             topicName,
		NumPartitions:     max(numPartitions, 1),
		ReplicationFactor: max(replicationFactor, 1),
	}

	log.Info("Kafka topic does not exist or is not accessible, creating it",
		"partitions", topicConfig.NumPartitions,
		"replication_factor", topicConfig.ReplicationFactor,
		"last_read_error", err,
	)
	if err := conn.CreateTopics(topicConfig); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topicName, err)
	}

	log.Info("Successfully created Kafka topic")
	return nil
}
