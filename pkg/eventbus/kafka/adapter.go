package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/nimburion/movies/pkg/eventbus"
	"github.com/nimburion/movies/pkg/observability/logger"
)

// Adapter implements eventbus.EventBus for Apache Kafka. It owns one writer
// and one consumer-group reader per subscribed topic.
type Adapter struct {
	producer  *kafka.Writer
	consumers map[string]*kafka.Reader
	logger    logger.Logger
	config    Config
	mu        sync.RWMutex
	closed    bool
}

// Config holds the configuration for the Kafka adapter.
type Config struct {
	// Brokers is the list of broker addresses, e.g. ["localhost:9092"].
	Brokers []string

	// Topic is used when Publish or Subscribe get an empty topic.
	Topic string

	// GroupID is the consumer group of subscriptions.
	GroupID string

	OperationTimeout time.Duration

	// MaxRetries bounds write attempts.
	MaxRetries int

	// InitialBackoff and MaxBackoff pace redelivery of a message whose
	// handler failed. The delay doubles per attempt up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// NewAdapter creates a Kafka adapter. Connections are opened lazily.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker address is required")
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "movies-ingest"
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = 30 * cfg.InitialBackoff
	}

	producer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		MaxAttempts:  cfg.MaxRetries,
		WriteTimeout: cfg.OperationTimeout,
		ReadTimeout:  cfg.OperationTimeout,
	}

	log.Info("kafka adapter initialized",
		"brokers", cfg.Brokers,
		"group_id", cfg.GroupID,
	)

	return &Adapter{
		producer:  producer,
		consumers: make(map[string]*kafka.Reader),
		logger:    log,
		config:    cfg,
	}, nil
}

// Publish writes message to topic.
func (a *Adapter) Publish(ctx context.Context, topic string, message *eventbus.Message) error {
	if a.isClosed() {
		return fmt.Errorf("kafka adapter is closed")
	}
	if message == nil {
		return fmt.Errorf("message is required")
	}
	topic = a.resolveTopic(topic)
	if topic == "" {
		return fmt.Errorf("kafka topic is required")
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.OperationTimeout)
	defer cancel()

	err := a.producer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(message.Key),
		Value:   message.Value,
		Headers: convertHeaders(message.Headers),
		Time:    message.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}

	a.logger.Debug("message published", "topic", topic, "key", message.Key)
	return nil
}

// Subscribe joins the consumer group for topic and consumes in the
// background. An offset is committed once the handler succeeds or fails
// permanently; other failures retry the same message before the partition
// moves on.
func (a *Adapter) Subscribe(ctx context.Context, topic string, handler eventbus.MessageHandler) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return fmt.Errorf("kafka adapter is closed")
	}
	topic = a.resolveTopic(topic)
	if topic == "" {
		return fmt.Errorf("kafka topic is required")
	}
	if _, exists := a.consumers[topic]; exists {
		return fmt.Errorf("already subscribed to topic: %s", topic)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        a.config.Brokers,
		Topic:          topic,
		GroupID:        a.config.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
		MaxWait:        500 * time.Millisecond,
	})
	a.consumers[topic] = reader

	go a.consume(ctx, topic, reader, handler)

	a.logger.Info("subscribed to topic", "topic", topic, "group_id", a.config.GroupID)
	return nil
}

// Unsubscribe closes the reader for topic.
func (a *Adapter) Unsubscribe(topic string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	topic = a.resolveTopic(topic)
	reader, exists := a.consumers[topic]
	if !exists {
		return fmt.Errorf("not subscribed to topic: %s", topic)
	}
	delete(a.consumers, topic)
	if err := reader.Close(); err != nil {
		return fmt.Errorf("failed to close consumer for topic %s: %w", topic, err)
	}
	return nil
}

// Close shuts down the writer and every reader. It is safe to call more than once.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	var errs []error
	if err := a.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close producer: %w", err))
	}
	for topic, reader := range a.consumers {
		if err := reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close consumer for topic %s: %w", topic, err))
		}
	}
	a.consumers = make(map[string]*kafka.Reader)

	return errors.Join(errs...)
}

// HealthCheck dials the first broker and fetches cluster metadata.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if a.isClosed() {
		return fmt.Errorf("kafka adapter is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", a.config.Brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to kafka broker: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Brokers(); err != nil {
		return fmt.Errorf("failed to fetch broker metadata: %w", err)
	}
	return nil
}

// messageReader is the part of *kafka.Reader the consume loop uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

func (a *Adapter) consume(ctx context.Context, topic string, reader messageReader, handler eventbus.MessageHandler) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			// io.EOF means the reader was closed.
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			a.logger.Error("failed to fetch message", "topic", topic, "error", err)
			continue
		}

		if !a.settle(ctx, topic, msg, handler) {
			return
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			a.logger.Error("failed to commit message",
				"topic", topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// settle runs handler until it succeeds or fails permanently. Offsets are
// positional, so a later commit would skip a failed message: the partition
// waits instead. It returns false when ctx ends before the message settles.
func (a *Adapter) settle(ctx context.Context, topic string, msg kafka.Message, handler eventbus.MessageHandler) bool {
	eventMsg := &eventbus.Message{
		ID:        fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset),
		Key:       string(msg.Key),
		Value:     msg.Value,
		Headers:   convertKafkaHeaders(msg.Headers),
		Timestamp: msg.Time,
	}

	backoff := a.config.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := handler(ctx, eventMsg)
		if err == nil {
			return true
		}
		if eventbus.IsPermanent(err) {
			a.logger.Warn("kafka message dropped",
				"topic", topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			return true
		}

		a.logger.Warn("kafka message will be retried",
			"topic", topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		backoff = min(2*backoff, a.config.MaxBackoff)
	}
}

func (a *Adapter) isClosed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.closed
}

func (a *Adapter) resolveTopic(topic string) string {
	if topic != "" {
		return topic
	}
	return a.config.Topic
}

func convertHeaders(headers map[string]string) []kafka.Header {
	if len(headers) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(headers))
	for key, value := range headers {
		out = append(out, kafka.Header{Key: key, Value: []byte(value)})
	}
	return out
}

func convertKafkaHeaders(headers []kafka.Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[h.Key] = string(h.Value)
	}
	return out
}
