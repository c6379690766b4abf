package movie

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nimburion/movies/pkg/eventbus"
	"github.com/nimburion/movies/pkg/observability/logger"
	"github.com/nimburion/movies/pkg/observability/metrics"
	"github.com/nimburion/movies/pkg/observability/tracing"
)

// Ingestor creates movies from queue messages carrying a movie JSON object.
type Ingestor struct {
	svc     *Service
	log     logger.Logger
	metrics *metrics.Registry
	system  string
}

// NewIngestor wires an Ingestor to the service.
func NewIngestor(svc *Service, log logger.Logger) *Ingestor {
	return &Ingestor{svc: svc, log: log}
}

// WithMetrics makes the ingestor count processed messages in reg.
func (i *Ingestor) WithMetrics(reg *metrics.Registry) *Ingestor {
	i.metrics = reg
	return i
}

// WithSystem names the broker ("kafka", "sqs", "rabbitmq") on processing spans.
func (i *Ingestor) WithSystem(system string) *Ingestor {
	i.system = system
	return i
}

// Run subscribes to topic and blocks until ctx is cancelled.
func (i *Ingestor) Run(ctx context.Context, consumer eventbus.Consumer, topic string) error {
	if err := consumer.Subscribe(ctx, topic, i.Handle); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	i.log.Info("movie ingestion started", "topic", topic)

	<-ctx.Done()

	if err := consumer.Unsubscribe(topic); err != nil {
		i.log.Warn("unsubscribe failed", "topic", topic, "error", err)
	}
	i.log.Info("movie ingestion stopped", "topic", topic)
	return nil
}

// Handle decodes one message and creates the movie it carries. Payloads that
// cannot become a movie fail with an eventbus.Permanent error so the broker
// drops them; any other error leaves the message for redelivery.
func (i *Ingestor) Handle(ctx context.Context, msg *eventbus.Message) error {
	opts := []tracing.MessagingSpanOption{
		tracing.WithMessagingMessageID(msg.ID),
		tracing.WithMessagingPayloadSize(len(msg.Value)),
	}
	if i.system != "" {
		opts = append(opts, tracing.WithMessagingSystem(i.system))
	}
	ctx, span := tracing.StartMessagingSpan(ctx, tracing.SpanOperationMsgProcess, opts...)
	defer span.End()

	var payload map[string]any
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return i.fail(ctx, span, msg, eventbus.Permanent(fmt.Errorf("decode movie: %w", err)))
	}
	if payload == nil {
		return i.fail(ctx, span, msg, eventbus.Permanent(fmt.Errorf("decode movie: message is not a JSON object")))
	}

	m, err := i.svc.Create(ctx, payload)
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		return i.fail(ctx, span, msg, eventbus.Permanent(fmt.Errorf("create movie: %w", err)))
	case err != nil:
		return i.fail(ctx, span, msg, fmt.Errorf("create movie: %w", err))
	}

	span.SetAttributes(attribute.String("movie.id", m.ID))
	tracing.RecordSuccess(span)
	i.record(metrics.IngestCreated)
	return nil
}

func (i *Ingestor) fail(ctx context.Context, span trace.Span, msg *eventbus.Message, err error) error {
	tracing.RecordError(span, err)
	permanent := eventbus.IsPermanent(err)
	if permanent {
		i.record(metrics.IngestRejected)
	} else {
		i.record(metrics.IngestRetried)
	}
	i.log.WithContext(ctx).Warn("movie ingestion failed", "message_id", msg.ID, "permanent", permanent, "error", err)
	return err
}

func (i *Ingestor) record(outcome string) {
	if i.metrics != nil {
		i.metrics.RecordIngest(outcome)
	}
}

// Enqueue validates payload and publishes it for asynchronous creation.
func Enqueue(ctx context.Context, producer eventbus.Producer, topic string, payload map[string]any) error {
	if _, err := ParseMovie(payload); err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode movie: %w", err)
	}
	ctx, span := tracing.StartMessagingSpan(ctx, tracing.SpanOperationMsgPublish,
		tracing.WithMessagingDestination(topic),
		tracing.WithMessagingPayloadSize(len(body)),
	)
	defer span.End()

	err = producer.Publish(ctx, topic, &eventbus.Message{
		Key:         fmt.Sprint(payload[FieldTitle]),
		Value:       body,
		ContentType: eventbus.ContentTypeJSON,
		Timestamp:   time.Now().UTC(),
	})
	tracing.RecordError(span, err)
	return err
}
