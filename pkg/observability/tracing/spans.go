package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanOperation names a traced store or broker operation.
type SpanOperation string

const (
	SpanOperationDBQuery  SpanOperation = "db.query"
	SpanOperationDBCount  SpanOperation = "db.count"
	SpanOperationDBInsert SpanOperation = "db.insert"
	SpanOperationDBUpdate SpanOperation = "db.update"
	SpanOperationDBDelete SpanOperation = "db.delete"

	SpanOperationMsgPublish SpanOperation = "messaging.publish"
	SpanOperationMsgProcess SpanOperation = "messaging.process"
)

// StartDatabaseSpan starts a client span for a store operation.
func StartDatabaseSpan(ctx context.Context, operation SpanOperation, opts ...DatabaseSpanOption) (context.Context, trace.Span) {
	o := &databaseSpanOptions{
		attributes: []attribute.KeyValue{attribute.String("db.operation", string(operation))},
	}
	for _, opt := range opts {
		opt(o)
	}

	name := fmt.Sprintf("DB %s", operation)
	if o.table != "" {
		name = fmt.Sprintf("DB %s %s", operation, o.table)
	}

	ctx, span := otel.Tracer("database").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(o.attributes...)
	return ctx, span
}

// DatabaseSpanOption configures a database span.
type DatabaseSpanOption func(*databaseSpanOptions)

type databaseSpanOptions struct {
	table      string
	attributes []attribute.KeyValue
}

// WithDBTable sets the collection or table name.
func WithDBTable(table string) DatabaseSpanOption {
	return func(o *databaseSpanOptions) {
		o.table = table
		o.attributes = append(o.attributes, attribute.String("db.table", table))
	}
}

// WithDBSystem sets the store kind, e.g. "mongodb".
func WithDBSystem(system string) DatabaseSpanOption {
	return func(o *databaseSpanOptions) {
		o.attributes = append(o.attributes, attribute.String("db.system", system))
	}
}

// StartMessagingSpan starts a span for a broker operation. Publishing gets a
// producer span, processing a consumer span.
func StartMessagingSpan(ctx context.Context, operation SpanOperation, opts ...MessagingSpanOption) (context.Context, trace.Span) {
	o := &messagingSpanOptions{
		attributes: []attribute.KeyValue{attribute.String("messaging.operation", string(operation))},
	}
	for _, opt := range opts {
		opt(o)
	}

	name := fmt.Sprintf("MSG %s", operation)
	if o.destination != "" {
		name = fmt.Sprintf("MSG %s %s", operation, o.destination)
	}

	kind := trace.SpanKindClient
	switch operation {
	case SpanOperationMsgProcess:
		kind = trace.SpanKindConsumer
	case SpanOperationMsgPublish:
		kind = trace.SpanKindProducer
	}

	ctx, span := otel.Tracer("messaging").Start(ctx, name, trace.WithSpanKind(kind))
	span.SetAttributes(o.attributes...)
	return ctx, span
}

// MessagingSpanOption configures a messaging span.
type MessagingSpanOption func(*messagingSpanOptions)

type messagingSpanOptions struct {
	destination string
	attributes  []attribute.KeyValue
}

// WithMessagingSystem sets the broker kind, e.g. "kafka".
func WithMessagingSystem(system string) MessagingSpanOption {
	return func(o *messagingSpanOptions) {
		o.attributes = append(o.attributes, attribute.String("messaging.system", system))
	}
}

// WithMessagingDestination sets the topic or queue name.
func WithMessagingDestination(destination string) MessagingSpanOption {
	return func(o *messagingSpanOptions) {
		o.destination = destination
		o.attributes = append(o.attributes, attribute.String("messaging.destination", destination))
	}
}

// WithMessagingMessageID sets the message ID.
func WithMessagingMessageID(id string) MessagingSpanOption {
	return func(o *messagingSpanOptions) {
		o.attributes = append(o.attributes, attribute.String("messaging.message_id", id))
	}
}

// WithMessagingPayloadSize sets the payload size in bytes.
func WithMessagingPayloadSize(size int) MessagingSpanOption {
	return func(o *messagingSpanOptions) {
		o.attributes = append(o.attributes, attribute.Int("messaging.payload_size_bytes", size))
	}
}

// RecordError marks span as failed with err. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// RecordSuccess sets the span status to OK.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}
