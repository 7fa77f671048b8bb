package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/taskboard-api/internal/domain"
)

// BoardRepo reads boards and their task counts and applies board updates.
type BoardRepo struct {
	client     *dynamodb.Client
	boardTable string
	taskTable  string
}

func NewBoardRepo(client *dynamodb.Client, boardTable, taskTable string) *BoardRepo {
	return &BoardRepo{client: client, boardTable: boardTable, taskTable: taskTable}
}

// ListByUser returns all boards owned by userID.
func (r *BoardRepo) ListByUser(ctx context.Context, userID string) ([]domain.Board, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.boardTable),
		IndexName:              aws.String("user_id-index"),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	var boards []domain.Board
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var page []domain.Board
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		boards = append(boards, page...)
	}
	return boards, nil
}

func (r *BoardRepo) Get(ctx context.Context, boardID string) (*domain.Board, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.boardTable),
		Key:       strKey("board_id", boardID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("board not found: %w", domain.ErrNotFound)
	}
	var b domain.Board
	if err := attributevalue.UnmarshalMap(out.Item, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// CountTasks counts the tasks of a board without reading them.
func (r *BoardRepo) CountTasks(ctx context.Context, boardID string) (int, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.taskTable),
		IndexName:              aws.String("board_id-index"),
		KeyConditionExpression: aws.String("board_id = :bid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":bid": &types.AttributeValueMemberS{Value: boardID},
		},
		Select: types.SelectCount,
	})
	total := 0
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		total += int(out.Count)
	}
	return total, nil
}

// Update writes the given fields to a board owned by userID and returns the new item.
func (r *BoardRepo) Update(ctx context.Context, userID, boardID string, fields domain.BoardFields) (*domain.Board, error) {
	set := map[string]interface{}{fieldUpdatedAt: time.Now().UTC()}
	if fields.Title != nil {
		set[fieldTitle] = *fields.Title
	}
	if fields.Color != nil {
		set[fieldColor] = *fields.Color
	}
	if fields.IsPinned != nil {
		set[fieldIsPinned] = *fields.IsPinned
	}
	if fields.IsFavorite != nil {
		set[fieldIsFavorite] = *fields.IsFavorite
	}
	ue, err := buildUpdateExpr(set)
	if err != nil {
		return nil, err
	}
	ue.Values[":uid"] = &types.AttributeValueMemberS{Value: userID}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.boardTable),
		Key:                       strKey("board_id", boardID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(board_id) AND user_id = :uid"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return nil, fmt.Errorf("board not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var b domain.Board
	if err := attributevalue.UnmarshalMap(out.Attributes, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
