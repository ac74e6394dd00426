package database

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID    string `dynamodbav:"id"`
	Month string `dynamodbav:"month"`
}

func row(id, month string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id":    &types.AttributeValueMemberS{Value: id},
		"month": &types.AttributeValueMemberS{Value: month},
	}
}

type fakeAPI struct {
	items    map[string]map[string]types.AttributeValue
	pages    [][]map[string]types.AttributeValue
	queryErr error
	queries  []*dynamodb.QueryInput
	scans    []*dynamodb.ScanInput
}

func (f *fakeAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	id := in.Item[in.ExpressionAttributeNames["#key"]].(*types.AttributeValueMemberS).Value
	if _, ok := f.items[id]; ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
	}
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	id := in.Key["id"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[id]}, nil
}

// page returns the page after start, using the page index as the cursor.
func (f *fakeAPI) page(start map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue) {
	i := 0
	if start != nil {
		i = int(start["page"].(*types.AttributeValueMemberN).Value[0] - '0')
	}
	var next map[string]types.AttributeValue
	if i+1 < len(f.pages) {
		next = map[string]types.AttributeValue{"page": &types.AttributeValueMemberN{Value: string(rune('0' + i + 1))}}
	}
	return f.pages[i], next
}

func (f *fakeAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queries = append(f.queries, in)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	items, next := f.page(in.ExclusiveStartKey)
	return &dynamodb.QueryOutput{Items: items, LastEvaluatedKey: next}, nil
}

func (f *fakeAPI) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.scans = append(f.scans, in)
	items, next := f.page(in.ExclusiveStartKey)
	return &dynamodb.ScanOutput{Items: items, LastEvaluatedKey: next}, nil
}

func TestInsertAndGetItem(t *testing.T) {
	api := &fakeAPI{items: make(map[string]map[string]types.AttributeValue)}
	client := newClient(api)
	ctx := context.Background()

	require.NoError(t, client.InsertItem(ctx, "Executions", "id", record{ID: "e1", Month: "2025-03"}))
	err := client.InsertItem(ctx, "Executions", "id", record{ID: "e1", Month: "2025-04"})
	assert.ErrorIs(t, err, ErrItemExists)

	var got record
	require.NoError(t, client.GetItemByKey(ctx, "Executions", "id", "e1", &got))
	assert.Equal(t, record{ID: "e1", Month: "2025-03"}, got)

	err = client.GetItemByKey(ctx, "Executions", "id", "missing", &got)
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.Contains(t, err.Error(), `Executions id="missing"`)
}

func TestQueryItemsFollowsPages(t *testing.T) {
	api := &fakeAPI{pages: [][]map[string]types.AttributeValue{
		{row("a", "2025-03"), row("b", "2025-03")},
		{},
		{row("c", "2025-03")},
	}}
	client := newClient(api)

	var out []record
	err := client.QueryItems(context.Background(), Selector{
		Table:      "Executions",
		Index:      "byMonth",
		Expression: "#month = :month",
		Names:      map[string]string{"#month": "month"},
		Values:     map[string]types.AttributeValue{":month": &types.AttributeValueMemberS{Value: "2025-03"}},
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, []record{{"a", "2025-03"}, {"b", "2025-03"}, {"c", "2025-03"}}, out)
	require.Len(t, api.queries, 3)
	assert.Equal(t, "byMonth", aws.ToString(api.queries[0].IndexName))
	assert.Equal(t, "month", api.queries[0].ExpressionAttributeNames["#month"])
	assert.Nil(t, api.queries[0].ExclusiveStartKey)
}

func TestScanItemsAfterMissingIndex(t *testing.T) {
	api := &fakeAPI{
		pages:    [][]map[string]types.AttributeValue{{row("a", "2025-03")}},
		queryErr: errors.New("ValidationException: The table does not have the specified index: byMonth"),
	}
	client := newClient(api)
	sel := Selector{Table: "Executions", Index: "byMonth", Expression: "#month = :month"}

	var out []record
	err := client.QueryItems(context.Background(), sel, &out)
	require.Error(t, err)
	assert.True(t, IsMissingIndex(err))
	assert.Contains(t, err.Error(), "Executions/byMonth")

	sel.Index = ""
	require.NoError(t, client.ScanItems(context.Background(), sel, &out))
	assert.Equal(t, []record{{"a", "2025-03"}}, out)
	require.Len(t, api.scans, 1)
	assert.Equal(t, "#month = :month", aws.ToString(api.scans[0].FilterExpression))
}

func TestIsMissingIndex(t *testing.T) {
	assert.False(t, IsMissingIndex(nil))
	assert.False(t, IsMissingIndex(errors.New("throttled")))
	assert.True(t, IsMissingIndex(errors.New("requested resource not found: index byMonth")))
}
