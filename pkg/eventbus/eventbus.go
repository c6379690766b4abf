// Package eventbus defines the transport-neutral message contract used by
// the ingestion worker. Adapters for SQS, Kafka and RabbitMQ live in
// sub-packages and are selected by the factory package.
package eventbus

import (
	"context"
	"errors"
	"time"
)

// Producer publishes messages to a topic or queue.
type Producer interface {
	// Publish sends a single message. An empty topic selects the adapter's
	// configured default destination.
	Publish(ctx context.Context, topic string, message *Message) error

	Close() error
}

// Consumer delivers messages from a topic or queue to a handler.
//
// A message is acknowledged only when the handler returns nil; otherwise it
// is left on the broker for redelivery.
type Consumer interface {
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error
	Unsubscribe(topic string) error
	Close() error
}

// EventBus combines Producer and Consumer with a broker health check.
type EventBus interface {
	Producer
	Consumer

	// HealthCheck verifies connectivity to the broker.
	HealthCheck(ctx context.Context) error
}

// Message is a single broker message.
type Message struct {
	// ID is the broker-assigned or producer-assigned identifier.
	ID string

	// Key is the partition key on Kafka and the routing key on RabbitMQ.
	Key string

	// Value is the raw payload.
	Value []byte

	Headers map[string]string

	ContentType string

	Timestamp time.Time
}

// MessageHandler processes one consumed message.
//
// A plain error leaves the message for redelivery. An error wrapped with
// Permanent settles the message: redelivering it cannot succeed.
type MessageHandler func(ctx context.Context, msg *Message) error

// PermanentError marks a handler failure caused by the message itself.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so adapters drop the message instead of redelivering
// it. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// ContentTypeJSON is the content type of movie payloads.
const ContentTypeJSON = "application/json"
