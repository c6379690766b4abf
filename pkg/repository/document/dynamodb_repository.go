package document

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/segmentio/ksuid"
)

// DynamoRepository stores T items in one DynamoDB table keyed by a string
// partition key named IDField. Identifiers are KSUIDs. Filtering happens in the
// scan; ordering and paging happen in process because a scan has neither.
type DynamoRepository[T any, PT EntityPtr[T]] struct {
	exec  DynamoExecutor
	table string
}

// NewDynamoRepository creates a repository bound to table.
func NewDynamoRepository[T any, PT EntityPtr[T]](exec DynamoExecutor, table string) (*DynamoRepository[T, PT], error) {
	if exec == nil {
		return nil, fmt.Errorf("dynamodb executor is required")
	}
	if table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	return &DynamoRepository[T, PT]{exec: exec, table: table}, nil
}

// Create stores entity under a fresh KSUID.
func (r *DynamoRepository[T, PT]) Create(ctx context.Context, entity *T) error {
	PT(entity).SetDocumentID(ksuid.New().String())
	item, err := attributevalue.MarshalMap(entity)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	if err := r.exec.PutItem(ctx, r.table, item, Expression{}); err != nil {
		return fmt.Errorf("put into %s: %w", r.table, err)
	}
	return nil
}

// FindByID reads one item with a consistent read.
func (r *DynamoRepository[T, PT]) FindByID(ctx context.Context, id string) (*T, error) {
	key, err := dynamoKey(id)
	if err != nil {
		return nil, err
	}
	item, err := r.exec.GetItem(ctx, r.table, key, true)
	if err != nil {
		return nil, err
	}
	return decodeItem[T](item)
}

// FindAll scans the table and returns the window selected by opts.
func (r *DynamoRepository[T, PT]) FindAll(ctx context.Context, opts QueryOptions) ([]T, error) {
	items, err := r.scanAll(ctx, opts.Filter)
	if err != nil {
		return nil, err
	}

	attrs := make([]map[string]interface{}, len(items))
	for i, item := range items {
		var m map[string]interface{}
		if err := attributevalue.UnmarshalMap(item, &m); err != nil {
			return nil, fmt.Errorf("decode item: %w", err)
		}
		attrs[i] = m
	}

	selected := window(attrs, opts.Sort, opts.Pagination)
	out := make([]T, 0, len(selected))
	for _, i := range selected {
		entity, err := decodeItem[T](items[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *entity)
	}
	return out, nil
}

// Count scans the table and counts the items matching filter.
func (r *DynamoRepository[T, PT]) Count(ctx context.Context, filter Filter) (int64, error) {
	items, err := r.scanAll(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(items)), nil
}

// Update overwrites an existing item; a missing item yields ErrNotFound.
func (r *DynamoRepository[T, PT]) Update(ctx context.Context, entity *T) error {
	if _, err := dynamoKey(PT(entity).DocumentID()); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(entity)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	cond := Expression{
		Text:  "attribute_exists(#pk)",
		Names: map[string]string{"#pk": IDField},
	}
	if err := r.exec.PutItem(ctx, r.table, item, cond); err != nil {
		return fmt.Errorf("put into %s: %w", r.table, err)
	}
	return nil
}

// Delete removes the item and returns its previous state.
func (r *DynamoRepository[T, PT]) Delete(ctx context.Context, id string) (*T, error) {
	key, err := dynamoKey(id)
	if err != nil {
		return nil, err
	}
	old, err := r.exec.DeleteItem(ctx, r.table, key)
	if err != nil {
		return nil, err
	}
	return decodeItem[T](old)
}

func (r *DynamoRepository[T, PT]) scanAll(ctx context.Context, filter Filter) ([]map[string]types.AttributeValue, error) {
	expr, err := dynamoFilter(filter)
	if err != nil {
		return nil, err
	}

	var (
		items   []map[string]types.AttributeValue
		lastKey map[string]types.AttributeValue
	)
	for {
		page, next, err := r.exec.Scan(ctx, r.table, expr, lastKey)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.table, err)
		}
		items = append(items, page...)
		if len(next) == 0 {
			return items, nil
		}
		lastKey = next
	}
}

// dynamoFilter renders an equality filter as "#f0 = :v0 AND ...", with
// fields in sorted order so expressions are stable.
func dynamoFilter(filter Filter) (Expression, error) {
	if len(filter) == 0 {
		return Expression{}, nil
	}
	fields := make([]string, 0, len(filter))
	for f := range filter {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	expr := Expression{
		Names:  make(map[string]string, len(fields)),
		Values: make(map[string]types.AttributeValue, len(fields)),
	}
	clauses := make([]string, 0, len(fields))
	for i, f := range fields {
		name := fmt.Sprintf("#f%d", i)
		value := fmt.Sprintf(":v%d", i)
		av, err := attributevalue.Marshal(filter[f])
		if err != nil {
			return Expression{}, fmt.Errorf("encode filter %s: %w", f, err)
		}
		expr.Names[name] = f
		expr.Values[value] = av
		clauses = append(clauses, name+" = "+value)
	}
	expr.Text = strings.Join(clauses, " AND ")
	return expr, nil
}

func dynamoKey(id string) (map[string]types.AttributeValue, error) {
	if err := validateKSUID(id); err != nil {
		return nil, err
	}
	return map[string]types.AttributeValue{
		IDField: &types.AttributeValueMemberS{Value: id},
	}, nil
}

func decodeItem[T any](item map[string]types.AttributeValue) (*T, error) {
	entity := new(T)
	if err := attributevalue.UnmarshalMap(item, entity); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	return entity, nil
}
