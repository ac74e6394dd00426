package execution

import (
	"context"
	"errors"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"codesync-backend/internal/database"
	"codesync-backend/internal/model"
)

var ErrNotFound = errors.New("execution repository: not found")

type Repository interface {
	RecordExecution(ctx context.Context, item model.ExecutionItem) error
	GetExecution(ctx context.Context, executionID string) (model.ExecutionItem, error)
	ListExecutionsByMonth(ctx context.Context, month string) ([]model.ExecutionItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) RecordExecution(ctx context.Context, item model.ExecutionItem) error {
	return r.db.Client.InsertItem(ctx, model.ExecutionsTable, "executionId", item)
}

func (r *DynamoRepository) GetExecution(ctx context.Context, executionID string) (model.ExecutionItem, error) {
	var item model.ExecutionItem
	err := r.db.Client.GetItemByKey(ctx, model.ExecutionsTable, "executionId", executionID, &item)
	if errors.Is(err, database.ErrItemNotFound) {
		return model.ExecutionItem{}, ErrNotFound
	}
	if err != nil {
		return model.ExecutionItem{}, err
	}
	return item, nil
}

// ListExecutionsByMonth queries the month index, falling back to a scan on
// tables created without it.
func (r *DynamoRepository) ListExecutionsByMonth(ctx context.Context, month string) ([]model.ExecutionItem, error) {
	sel := database.Selector{
		Table:      model.ExecutionsTable,
		Index:      model.ExecutionsByMonthIndex,
		Expression: "#month = :month",
		Names:      map[string]string{"#month": "month"},
		Values: map[string]types.AttributeValue{
			":month": &types.AttributeValueMemberS{Value: month},
		},
	}

	var out []model.ExecutionItem
	err := r.db.Client.QueryItems(ctx, sel, &out)
	if database.IsMissingIndex(err) {
		sel.Index = ""
		out = nil
		err = r.db.Client.ScanItems(ctx, sel, &out)
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}
