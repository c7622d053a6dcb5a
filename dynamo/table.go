// Package dynamo wraps a DynamoDB table behind the small surface most of
// our Lambdas need: get and put by primary key, full scans that follow
// pagination past the 1 MB limit, and a cached item count. The raw client
// stays reachable for everything else.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"ecs/config"
)

// ErrItemNotFound is returned by Get when no item has the requested
// primary key.
var ErrItemNotFound = errors.New("item not found")

// API is the slice of *dynamodb.Client the wrapper uses. Tests implement
// it with fakes.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Table represents one DynamoDB table keyed by a single primary key.
type Table struct {
	client     API
	name       string
	primaryKey string

	// Item count is expensive (a full COUNT scan), so it is evaluated
	// lazily and cached until something that could change it runs.
	mu    sync.Mutex
	count int64
	known bool
}

// New builds a Table from the shared config, honoring its endpoint-url
// override.
func New(ctx context.Context, opts *config.Options, tableName, primaryKeyName string) (*Table, error) {
	client, err := opts.DynamoDBClient(ctx)
	if err != nil {
		return nil, err
	}
	return NewWithClient(client, tableName, primaryKeyName), nil
}

// NewWithClient builds a Table around an existing client.
func NewWithClient(client API, tableName, primaryKeyName string) *Table {
	return &Table{
		client:     client,
		name:       tableName,
		primaryKey: primaryKeyName,
	}
}

// PrimaryKeyName returns the name of the table's primary key. Read-only;
// a live table can't change its key schema.
func (t *Table) PrimaryKeyName() string {
	return t.primaryKey
}

// Client exposes the underlying API for operations the wrapper doesn't
// cover. Anything done with it may change the item count, so the cached
// count is dropped.
func (t *Table) Client() API {
	t.invalidateCount()
	return t.client
}

// Get loads the item whose primary key equals keyValue and unmarshals it
// into out. Returns ErrItemNotFound when the table has no such item.
func (t *Table) Get(ctx context.Context, keyValue any, out any) error {
	item, err := t.GetRaw(ctx, keyValue)
	if err != nil {
		return err
	}
	if err := attributevalue.UnmarshalMap(item, out); err != nil {
		return fmt.Errorf("unmarshal item from %s: %w", t.name, err)
	}
	return nil
}

// GetRaw is Get without the unmarshal, returning the raw attribute map.
func (t *Table) GetRaw(ctx context.Context, keyValue any) (map[string]types.AttributeValue, error) {
	key, err := t.key(keyValue)
	if err != nil {
		return nil, err
	}

	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.name),
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("get item from %s: %w", t.name, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%w in %s: %v", ErrItemNotFound, t.name, keyValue)
	}
	return out.Item, nil
}

// Put creates or replaces the item whose primary key equals keyValue. The
// rest of the item's attributes come from item, a struct with dynamodbav
// tags or a map. The primary key attribute is always forced to keyValue.
func (t *Table) Put(ctx context.Context, keyValue any, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item for %s: %w", t.name, err)
	}

	keyAV, err := attributevalue.Marshal(keyValue)
	if err != nil {
		return fmt.Errorf("marshal key for %s: %w", t.name, err)
	}
	av[t.primaryKey] = keyAV

	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.name),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put item into %s: %w", t.name, err)
	}

	t.invalidateCount()
	return nil
}

// Delete removes the item whose primary key equals keyValue. Deleting a
// missing item is not an error, matching DynamoDB semantics.
func (t *Table) Delete(ctx context.Context, keyValue any) error {
	key, err := t.key(keyValue)
	if err != nil {
		return err
	}

	_, err = t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.name),
		Key:       key,
	})
	if err != nil {
		return fmt.Errorf("delete item from %s: %w", t.name, err)
	}

	t.invalidateCount()
	return nil
}

// ScanAll returns every item in the table, following LastEvaluatedKey past
// the 1 MB per-call limit. For tables where a megabyte is plenty, use
// Client().Scan directly.
func (t *Table) ScanAll(ctx context.Context) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue

	for {
		out, err := t.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(t.name),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		items = append(items, out.Items...)

		if out.LastEvaluatedKey == nil {
			return items, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// QueryByKey returns the items whose key attribute keyName equals value.
// keyName must be the partition key of the table or of one of its indexes
// reachable without an IndexName (use Client().Query for GSIs).
func (t *Table) QueryByKey(ctx context.Context, keyName string, value any) ([]map[string]types.AttributeValue, error) {
	av, err := attributevalue.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal query value for %s: %w", t.name, err)
	}

	out, err := t.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(t.name),
		KeyConditionExpression: aws.String("#k = :v"),
		ExpressionAttributeNames: map[string]string{
			"#k": keyName,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": av,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query %s by %s: %w", t.name, keyName, err)
	}
	return out.Items, nil
}

// Len returns the number of items in the table. The count comes from a
// paginated COUNT scan and is cached until a Put, Delete, or Client call.
func (t *Table) Len(ctx context.Context) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.known {
		return t.count, nil
	}

	var total int64
	var startKey map[string]types.AttributeValue

	for {
		out, err := t.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(t.name),
			Select:            types.SelectCount,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", t.name, err)
		}
		total += int64(out.Count)

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	t.count = total
	t.known = true
	return total, nil
}

func (t *Table) key(keyValue any) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.Marshal(keyValue)
	if err != nil {
		return nil, fmt.Errorf("marshal key for %s: %w", t.name, err)
	}
	return map[string]types.AttributeValue{t.primaryKey: av}, nil
}

func (t *Table) invalidateCount() {
	t.mu.Lock()
	t.known = false
	t.mu.Unlock()
}
