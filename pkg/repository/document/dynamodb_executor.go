package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	dynamostore "github.com/nimburion/movies/pkg/store/dynamodb"
)

// Expression carries a DynamoDB condition or filter expression with its
// placeholders. A zero Expression means "none".
type Expression struct {
	Text   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// DynamoExecutor defines a minimal document execution contract for DynamoDB-backed repositories.
// A failed put condition is reported as ErrNotFound.
type DynamoExecutor interface {
	PutItem(ctx context.Context, table string, item map[string]types.AttributeValue, condition Expression) error
	GetItem(ctx context.Context, table string, key map[string]types.AttributeValue, consistentRead bool) (map[string]types.AttributeValue, error)
	DeleteItem(ctx context.Context, table string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error)
	Scan(
		ctx context.Context,
		table string,
		filter Expression,
		exclusiveStartKey map[string]types.AttributeValue,
	) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error)
}

// DynamoDBExecutor adapts store/dynamodb adapter to the repository/document executor contract.
type DynamoDBExecutor struct {
	adapter *dynamostore.Adapter
}

// NewDynamoDBExecutor creates a new DynamoDBExecutor instance.
func NewDynamoDBExecutor(adapter *dynamostore.Adapter) (*DynamoDBExecutor, error) {
	if adapter == nil {
		return nil, fmt.Errorf("dynamodb adapter is required")
	}
	return &DynamoDBExecutor{adapter: adapter}, nil
}

// PutItem writes item, optionally guarded by a condition expression.
func (e *DynamoDBExecutor) PutItem(ctx context.Context, table string, item map[string]types.AttributeValue, condition Expression) error {
	input := &awsdynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	}
	if condition.Text != "" {
		input.ConditionExpression = aws.String(condition.Text)
		input.ExpressionAttributeNames = condition.Names
		input.ExpressionAttributeValues = condition.Values
	}

	_, err := e.adapter.PutItem(ctx, input)
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrNotFound
	}
	return err
}

// GetItem reads one item by key; a missing item yields ErrNotFound.
func (e *DynamoDBExecutor) GetItem(ctx context.Context, table string, key map[string]types.AttributeValue, consistentRead bool) (map[string]types.AttributeValue, error) {
	out, err := e.adapter.GetItem(ctx, &awsdynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            key,
		ConsistentRead: aws.Bool(consistentRead),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	return out.Item, nil
}

// DeleteItem removes one item by key and returns its previous attributes.
func (e *DynamoDBExecutor) DeleteItem(ctx context.Context, table string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	out, err := e.adapter.DeleteItem(ctx, &awsdynamodb.DeleteItemInput{
		TableName:    aws.String(table),
		Key:          key,
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, err
	}
	if len(out.Attributes) == 0 {
		return nil, ErrNotFound
	}
	return out.Attributes, nil
}

// Scan reads one page of the table, applying filter server-side.
func (e *DynamoDBExecutor) Scan(
	ctx context.Context,
	table string,
	filter Expression,
	exclusiveStartKey map[string]types.AttributeValue,
) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
	input := &awsdynamodb.ScanInput{
		TableName:         aws.String(table),
		ExclusiveStartKey: exclusiveStartKey,
	}
	if filter.Text != "" {
		input.FilterExpression = aws.String(filter.Text)
		input.ExpressionAttributeNames = filter.Names
		input.ExpressionAttributeValues = filter.Values
	}

	out, err := e.adapter.Scan(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	return out.Items, out.LastEvaluatedKey, nil
}
