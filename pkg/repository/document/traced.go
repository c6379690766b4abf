package document

import (
	"context"

	"github.com/nimburion/movies/pkg/observability/tracing"
)

// TracedRepository wraps a Repository and opens a database span around every call.
type TracedRepository[T any] struct {
	next       Repository[T, string]
	system     string
	collection string
}

// NewTracedRepository decorates next. system and collection label the spans.
func NewTracedRepository[T any](next Repository[T, string], system, collection string) *TracedRepository[T] {
	return &TracedRepository[T]{next: next, system: system, collection: collection}
}

func (r *TracedRepository[T]) start(ctx context.Context, op tracing.SpanOperation) (context.Context, func(error)) {
	ctx, span := tracing.StartDatabaseSpan(ctx, op,
		tracing.WithDBSystem(r.system),
		tracing.WithDBTable(r.collection),
	)
	return ctx, func(err error) {
		tracing.RecordError(span, err)
		span.End()
	}
}

// FindByID implements Reader.
func (r *TracedRepository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	ctx, end := r.start(ctx, tracing.SpanOperationDBQuery)
	doc, err := r.next.FindByID(ctx, id)
	end(err)
	return doc, err
}

// FindAll implements Reader.
func (r *TracedRepository[T]) FindAll(ctx context.Context, opts QueryOptions) ([]T, error) {
	ctx, end := r.start(ctx, tracing.SpanOperationDBQuery)
	docs, err := r.next.FindAll(ctx, opts)
	end(err)
	return docs, err
}

// Count implements Reader.
func (r *TracedRepository[T]) Count(ctx context.Context, filter Filter) (int64, error) {
	ctx, end := r.start(ctx, tracing.SpanOperationDBCount)
	n, err := r.next.Count(ctx, filter)
	end(err)
	return n, err
}

// Create implements Writer.
func (r *TracedRepository[T]) Create(ctx context.Context, entity *T) error {
	ctx, end := r.start(ctx, tracing.SpanOperationDBInsert)
	err := r.next.Create(ctx, entity)
	end(err)
	return err
}

// Update implements Writer.
func (r *TracedRepository[T]) Update(ctx context.Context, entity *T) error {
	ctx, end := r.start(ctx, tracing.SpanOperationDBUpdate)
	err := r.next.Update(ctx, entity)
	end(err)
	return err
}

// Delete implements Writer.
func (r *TracedRepository[T]) Delete(ctx context.Context, id string) (*T, error) {
	ctx, end := r.start(ctx, tracing.SpanOperationDBDelete)
	doc, err := r.next.Delete(ctx, id)
	end(err)
	return doc, err
}
