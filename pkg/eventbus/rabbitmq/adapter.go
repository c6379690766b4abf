package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nimburion/movies/pkg/eventbus"
	"github.com/nimburion/movies/pkg/observability/logger"
)

// Adapter implements eventbus.EventBus for RabbitMQ: publishing goes to a
// durable exchange, subscriptions bind a durable queue to it.
type Adapter struct {
	conn   *amqp.Connection
	pubCh  *amqp.Channel
	logger logger.Logger
	config Config
	subs   map[string]*subscription
	mu     sync.RWMutex
	closed bool
}

type subscription struct {
	channel *amqp.Channel
	cancel  context.CancelFunc
}

// Config holds RabbitMQ adapter configuration.
type Config struct {
	URL              string
	Exchange         string
	ExchangeType     string
	QueueName        string
	RoutingKey       string
	ConsumerTag      string
	OperationTimeout time.Duration

	// RequeueDelay is waited before a failed delivery goes back on the queue.
	RequeueDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Exchange == "" {
		c.Exchange = "movies"
	}
	if c.ExchangeType == "" {
		c.ExchangeType = "topic"
	}
	if c.QueueName == "" {
		c.QueueName = "movies.ingest"
	}
	if c.RoutingKey == "" {
		c.RoutingKey = "movies.create"
	}
	if c.OperationTimeout == 0 {
		c.OperationTimeout = 30 * time.Second
	}
	if c.RequeueDelay <= 0 {
		c.RequeueDelay = time.Second
	}
	return c
}

// NewAdapter dials the broker and declares the exchange.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("rabbitmq URL is required")
	}
	cfg = cfg.withDefaults()

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	pubCh, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create rabbitmq channel: %w", err)
	}
	if err := pubCh.ExchangeDeclare(cfg.Exchange, cfg.ExchangeType, true, false, false, false, nil); err != nil {
		_ = pubCh.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Adapter{
		conn:   conn,
		pubCh:  pubCh,
		logger: log,
		config: cfg,
		subs:   make(map[string]*subscription),
	}, nil
}

// Publish sends message with the given routing key.
func (a *Adapter) Publish(ctx context.Context, topic string, message *eventbus.Message) error {
	if a.isClosed() {
		return fmt.Errorf("rabbitmq adapter is closed")
	}
	if message == nil {
		return fmt.Errorf("message is required")
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.OperationTimeout)
	defer cancel()

	publishing := amqp.Publishing{
		MessageId:    message.ID,
		ContentType:  message.ContentType,
		Body:         message.Value,
		Timestamp:    message.Timestamp,
		Headers:      toAMQPHeaders(message.Headers),
		DeliveryMode: amqp.Persistent,
	}
	if err := a.pubCh.PublishWithContext(ctx, a.config.Exchange, a.resolveRoutingKey(topic), false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish rabbitmq message: %w", err)
	}
	return nil
}

// Subscribe declares and binds the queue and consumes it in the background.
// Deliveries are acked on success, rejected without requeue on a permanent
// handler error and requeued after RequeueDelay on any other error.
func (a *Adapter) Subscribe(ctx context.Context, topic string, handler eventbus.MessageHandler) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return fmt.Errorf("rabbitmq adapter is closed")
	}
	bindKey := a.resolveRoutingKey(topic)
	if _, exists := a.subs[bindKey]; exists {
		return fmt.Errorf("already subscribed to topic: %s", bindKey)
	}

	ch, err := a.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to create consumer channel: %w", err)
	}
	q, err := ch.QueueDeclare(a.config.QueueName, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, bindKey, a.config.Exchange, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, a.config.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	a.subs[bindKey] = &subscription{channel: ch, cancel: cancel}
	go a.consumeLoop(subCtx, deliveries, handler)

	a.logger.Info("subscribed to queue", "queue", q.Name, "routing_key", bindKey)
	return nil
}

func (a *Adapter) consumeLoop(ctx context.Context, deliveries <-chan amqp.Delivery, handler eventbus.MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			msg := &eventbus.Message{
				ID:          d.MessageId,
				Key:         d.RoutingKey,
				Value:       d.Body,
				Headers:     fromAMQPHeaders(d.Headers),
				ContentType: d.ContentType,
				Timestamp:   d.Timestamp,
			}
			a.settle(ctx, d, handler(ctx, msg))
		}
	}
}

func (a *Adapter) settle(ctx context.Context, d amqp.Delivery, err error) {
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			a.logger.Error("rabbitmq ack failed", "message_id", d.MessageId, "error", ackErr)
		}
	case eventbus.IsPermanent(err):
		// Dead-lettered when the queue has a dead-letter exchange.
		a.logger.Warn("rabbitmq message rejected", "message_id", d.MessageId, "error", err)
		_ = d.Nack(false, false)
	default:
		a.logger.Warn("rabbitmq message requeued", "message_id", d.MessageId, "delay", a.config.RequeueDelay, "error", err)
		timer := time.NewTimer(a.config.RequeueDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
		_ = d.Nack(false, true)
	}
}

// Unsubscribe cancels the subscription bound with topic.
func (a *Adapter) Unsubscribe(topic string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := a.resolveRoutingKey(topic)
	sub, ok := a.subs[key]
	if !ok {
		return fmt.Errorf("not subscribed to topic: %s", key)
	}
	sub.cancel()
	delete(a.subs, key)
	if err := sub.channel.Close(); err != nil {
		return fmt.Errorf("failed to close subscription channel: %w", err)
	}
	return nil
}

// HealthCheck opens and closes a channel on the live connection.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return fmt.Errorf("rabbitmq adapter is closed")
	}
	conn := a.conn
	a.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rabbitmq health check: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq health check failed: %w", err)
	}
	return ch.Close()
}

// Close releases every channel and the connection. It is safe to call more than once.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	var errs []error
	for key, sub := range a.subs {
		sub.cancel()
		if err := sub.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscription %s: %w", key, err))
		}
	}
	a.subs = map[string]*subscription{}

	if a.pubCh != nil {
		if err := a.pubCh.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publish channel: %w", err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *Adapter) isClosed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.closed
}

func (a *Adapter) resolveRoutingKey(topic string) string {
	if topic != "" {
		return topic
	}
	return a.config.RoutingKey
}

func toAMQPHeaders(headers map[string]string) amqp.Table {
	if len(headers) == 0 {
		return nil
	}
	t := amqp.Table{}
	for k, v := range headers {
		t[k] = v
	}
	return t
}

func fromAMQPHeaders(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
