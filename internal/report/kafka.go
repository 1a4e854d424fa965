package report

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/rzpsarthak13/dbarchive/internal/registry"
)

// KafkaPublisher produces one message per problem, keyed by run id so the
// problems of a run stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
	mu     sync.RWMutex
	closed bool
}

// KafkaPublisherConfig holds configuration for the Kafka publisher.
type KafkaPublisherConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks int // 0, 1, or -1 (all)
}

// NewKafkaPublisher creates a synchronous producer. Brokers are dialed on
// the first write.
func NewKafkaPublisher(config KafkaPublisherConfig) (*KafkaPublisher, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}

	log.Printf("[KAFKA] Brokers: %v", config.Brokers)
	log.Printf("[KAFKA] Topic: %s", config.Topic)
	log.Printf("[KAFKA] Required Acks: %d", config.RequiredAcks)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: config.BatchTimeout,
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		MaxAttempts:  3,
		Async:        false,
	}

	return &KafkaPublisher{writer: writer, topic: config.Topic}, nil
}

// Publish writes p and waits for the configured acknowledgements.
func (k *KafkaPublisher) Publish(ctx context.Context, p Problem) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return ErrPublisherClosed
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal problem: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(p.Run),
		Value: data,
		Time:  p.Time,
		Headers: []kafka.Header{
			{Key: "seq", Value: []byte(strconv.Itoa(p.Seq))},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write problem to topic %s: %w", k.topic, err)
	}
	return nil
}

func (k *KafkaPublisher) Type() string { return "kafka" }

// Close flushes and closes the writer.
func (k *KafkaPublisher) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	return k.writer.Close()
}

// KafkaPublisherFactory creates Kafka publishers.
type KafkaPublisherFactory struct{}

func (f *KafkaPublisherFactory) Create(ctx context.Context, config registry.InternalBackendConfig) (Publisher, error) {
	c := config.Kafka
	return NewKafkaPublisher(KafkaPublisherConfig{
		Brokers:      c.Brokers,
		Topic:        c.Topic,
		BatchTimeout: c.BatchTimeout,
		WriteTimeout: c.WriteTimeout,
		RequiredAcks: c.RequiredAcks,
	})
}

func (f *KafkaPublisherFactory) Type() string { return "kafka" }

// Validate validates the Kafka section of a backend entry.
func (f *KafkaPublisherFactory) Validate(config registry.InternalBackendConfig) error {
	c := config.Kafka
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required")
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka.topic is required")
	}
	if c.RequiredAcks < -1 || c.RequiredAcks > 1 {
		return fmt.Errorf("kafka.required_acks must be -1, 0 or 1, got: %d", c.RequiredAcks)
	}
	return nil
}

func init() {
	register(&KafkaPublisherFactory{})
}
