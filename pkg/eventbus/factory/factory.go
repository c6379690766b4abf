// Package factory builds the event bus adapter selected by ingest.transport.
package factory

import (
	"fmt"

	"github.com/nimburion/movies/pkg/config"
	"github.com/nimburion/movies/pkg/eventbus"
	"github.com/nimburion/movies/pkg/eventbus/kafka"
	"github.com/nimburion/movies/pkg/eventbus/rabbitmq"
	"github.com/nimburion/movies/pkg/eventbus/sqs"
	"github.com/nimburion/movies/pkg/observability/logger"
)

// NewEventBusAdapter connects to the configured transport.
func NewEventBusAdapter(cfg config.IngestConfig, log logger.Logger) (eventbus.EventBus, error) {
	switch cfg.Transport {
	case config.TransportSQS:
		return sqs.NewAdapter(sqs.Config{
			Region:            cfg.Region,
			QueueURL:          cfg.QueueURL,
			Endpoint:          cfg.Endpoint,
			AccessKeyID:       cfg.AccessKeyID,
			SecretAccessKey:   cfg.SecretAccessKey,
			SessionToken:      cfg.SessionToken,
			OperationTimeout:  cfg.OperationTimeout,
			WaitTimeSeconds:   cfg.WaitTimeSeconds,
			MaxMessages:       cfg.MaxMessages,
			VisibilityTimeout: cfg.VisibilityTimeout,
		}, log)
	case config.TransportKafka:
		return kafka.NewAdapter(kafka.Config{
			Brokers:          cfg.Brokers,
			Topic:            cfg.Topic,
			GroupID:          cfg.GroupID,
			OperationTimeout: cfg.OperationTimeout,
		}, log)
	case config.TransportRabbitMQ:
		return rabbitmq.NewAdapter(rabbitmq.Config{
			URL:              cfg.URL,
			Exchange:         cfg.Exchange,
			QueueName:        cfg.QueueName,
			RoutingKey:       cfg.RoutingKey,
			OperationTimeout: cfg.OperationTimeout,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported ingest.transport %q (supported: sqs, kafka, rabbitmq)", cfg.Transport)
	}
}

// Topic returns the destination name the ingest worker subscribes to.
// Adapters fall back to their configured default for an empty topic.
func Topic(cfg config.IngestConfig) string {
	switch cfg.Transport {
	case config.TransportKafka:
		return cfg.Topic
	case config.TransportRabbitMQ:
		return cfg.RoutingKey
	default:
		return cfg.QueueURL
	}
}
