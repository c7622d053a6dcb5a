package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// PutIfAbsent writes the item only if no item with that primary key exists
// yet. Returns (false, nil) when the key was already claimed, which is how
// workers dedupe redelivered events.
func (t *Table) PutIfAbsent(ctx context.Context, keyValue any, item any) (bool, error) {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return false, fmt.Errorf("marshal item for %s: %w", t.name, err)
	}

	keyAV, err := attributevalue.Marshal(keyValue)
	if err != nil {
		return false, fmt.Errorf("marshal key for %s: %w", t.name, err)
	}
	av[t.primaryKey] = keyAV

	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(t.name),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(#k)"),
		ExpressionAttributeNames: map[string]string{
			"#k": t.primaryKey,
		},
	})
	if err != nil {
		if IsConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("conditional put into %s: %w", t.name, err)
	}

	t.invalidateCount()
	return true, nil
}

// IsConditionalCheckFailed reports whether err is a DynamoDB conditional
// write rejection.
func IsConditionalCheckFailed(err error) bool {
	var cfe *types.ConditionalCheckFailedException
	return errors.As(err, &cfe)
}

// IsTableNotFound reports whether err means the table itself is missing,
// the usual symptom of a config.json pointing at the wrong endpoint or
// region.
func IsTableNotFound(err error) bool {
	return ErrorCode(err) == "ResourceNotFoundException"
}

// ErrorCode extracts the AWS API error code from err, or "" for non-API
// errors.
func ErrorCode(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return ""
}
