package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrItemNotFound = errors.New("dynamodb: item not found")
	ErrItemExists   = errors.New("dynamodb: item already exists")
)

// api is the subset of the DynamoDB client the helpers below use.
type api interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Selector describes a read over a table or one of its indexes. Expression is
// the key condition for QueryItems and the filter for ScanItems.
type Selector struct {
	Table      string
	Index      string
	Expression string
	Names      map[string]string
	Values     map[string]types.AttributeValue
}

func (s Selector) String() string {
	if s.Index == "" {
		return s.Table
	}
	return s.Table + "/" + s.Index
}

// InsertItem writes item unless an item with the same keyAttr already exists.
func (c *DynamoDBClient) InsertItem(ctx context.Context, table, keyAttr string, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("dynamodb: encode %s item: %w", table, err)
	}

	_, err = c.svc.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(table),
		Item:                     av,
		ConditionExpression:      aws.String("attribute_not_exists(#key)"),
		ExpressionAttributeNames: map[string]string{"#key": keyAttr},
	})
	var conflict *types.ConditionalCheckFailedException
	switch {
	case errors.As(err, &conflict):
		return fmt.Errorf("dynamodb: insert into %s: %w", table, ErrItemExists)
	case err != nil:
		return fmt.Errorf("dynamodb: insert into %s: %w", table, err)
	}
	return nil
}

// GetItemByKey loads the item whose string key keyAttr equals key into out.
func (c *DynamoDBClient) GetItemByKey(ctx context.Context, table, keyAttr, key string, out any) error {
	res, err := c.svc.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key: map[string]types.AttributeValue{
			keyAttr: &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamodb: get %s %s=%q: %w", table, keyAttr, key, err)
	}
	if len(res.Item) == 0 {
		return fmt.Errorf("dynamodb: get %s %s=%q: %w", table, keyAttr, key, ErrItemNotFound)
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return fmt.Errorf("dynamodb: decode %s item: %w", table, err)
	}
	return nil
}

// QueryItems follows every page of a query and decodes the items into out,
// which must point to a slice.
func (c *DynamoDBClient) QueryItems(ctx context.Context, sel Selector, out any) error {
	items, err := collectPages(func(start map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
		in := &dynamodb.QueryInput{
			TableName:                 aws.String(sel.Table),
			KeyConditionExpression:    aws.String(sel.Expression),
			ExpressionAttributeNames:  sel.Names,
			ExpressionAttributeValues: sel.Values,
			ExclusiveStartKey:         start,
		}
		if sel.Index != "" {
			in.IndexName = aws.String(sel.Index)
		}
		res, err := c.svc.Query(ctx, in)
		if err != nil {
			return nil, nil, err
		}
		return res.Items, res.LastEvaluatedKey, nil
	})
	if err != nil {
		return fmt.Errorf("dynamodb: query %s: %w", sel, err)
	}
	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("dynamodb: decode %s items: %w", sel, err)
	}
	return nil
}

// ScanItems is QueryItems for tables without a usable index. Every page of
// the table is read.
func (c *DynamoDBClient) ScanItems(ctx context.Context, sel Selector, out any) error {
	items, err := collectPages(func(start map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
		in := &dynamodb.ScanInput{
			TableName:                 aws.String(sel.Table),
			ExpressionAttributeNames:  sel.Names,
			ExpressionAttributeValues: sel.Values,
			ExclusiveStartKey:         start,
		}
		if sel.Expression != "" {
			in.FilterExpression = aws.String(sel.Expression)
		}
		res, err := c.svc.Scan(ctx, in)
		if err != nil {
			return nil, nil, err
		}
		return res.Items, res.LastEvaluatedKey, nil
	})
	if err != nil {
		return fmt.Errorf("dynamodb: scan %s: %w", sel, err)
	}
	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("dynamodb: decode %s items: %w", sel, err)
	}
	return nil
}

type pageFunc func(start map[string]types.AttributeValue) (items []map[string]types.AttributeValue, next map[string]types.AttributeValue, err error)

func collectPages(fetch pageFunc) ([]map[string]types.AttributeValue, error) {
	var all []map[string]types.AttributeValue
	var start map[string]types.AttributeValue
	for {
		items, next, err := fetch(start)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(next) == 0 {
			return all, nil
		}
		start = next
	}
}

// IsMissingIndex reports whether err comes from querying an index the table
// was created without.
func IsMissingIndex(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "specified index") ||
		(strings.Contains(msg, "index") && strings.Contains(msg, "not") && strings.Contains(msg, "found"))
}
