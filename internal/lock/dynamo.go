package lock

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client the store uses. Satisfied
// by *dynamodb.Client.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore is a Store on one DynamoDB table. Conditional expressions on
// the version attribute provide the compare-and-set; consistent reads keep
// Get from racing a just-completed Put.
//
// Table shape: partition key "id" (S), attributes "val" (B), "version" (N).
type DynamoStore struct {
	client DynamoAPI
	table  string
}

// NewDynamoStore creates a store over the given table.
func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

// Get returns the current item, or ErrNotFound.
func (s *DynamoStore) Get(ctx context.Context, key string) (Item, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Item{}, fmt.Errorf("lock: dynamodb get %s: %w", key, err)
	}
	if out.Item == nil {
		return Item{}, ErrNotFound
	}

	item := Item{Key: key}
	if attr, ok := out.Item["val"].(*types.AttributeValueMemberB); ok {
		item.Value = attr.Value
	}
	if attr, ok := out.Item["version"].(*types.AttributeValueMemberN); ok {
		v, err := strconv.ParseInt(attr.Value, 10, 64)
		if err != nil {
			return Item{}, fmt.Errorf("lock: dynamodb item %s has bad version %q", key, attr.Value)
		}
		item.Version = v
	}
	return item, nil
}

// Put conditionally writes the item. A failed condition check maps to
// ErrConflict so the Mutex treats all backends alike.
func (s *DynamoStore) Put(ctx context.Context, item Item) (Item, error) {
	var err error
	if item.Version == 0 {
		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.table),
			Item: map[string]types.AttributeValue{
				"id":      &types.AttributeValueMemberS{Value: item.Key},
				"val":     &types.AttributeValueMemberB{Value: item.Value},
				"version": &types.AttributeValueMemberN{Value: "1"},
			},
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		})
	} else {
		_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(s.table),
			Key:                 itemKey(item.Key),
			UpdateExpression:    aws.String("SET #val = :val, #version = :next"),
			ConditionExpression: aws.String("#version = :current"),
			// Placeholders sidestep DynamoDB's reserved word list.
			ExpressionAttributeNames: map[string]string{
				"#val":     "val",
				"#version": "version",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":val":     &types.AttributeValueMemberB{Value: item.Value},
				":current": &types.AttributeValueMemberN{Value: strconv.FormatInt(item.Version, 10)},
				":next":    &types.AttributeValueMemberN{Value: strconv.FormatInt(item.Version+1, 10)},
			},
		})
	}
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return Item{}, ErrConflict
		}
		return Item{}, fmt.Errorf("lock: dynamodb put %s: %w", item.Key, err)
	}

	stored := item
	stored.Version = item.Version + 1
	return stored, nil
}

// Delete removes the key.
func (s *DynamoStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       itemKey(key),
	})
	if err != nil {
		return fmt.Errorf("lock: dynamodb delete %s: %w", key, err)
	}
	return nil
}

func itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: key},
	}
}
