package dynamo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-file-vault/internal/domain"
)

const ownerIndex = "owner_user_id-uploaded_at-index"

// fileItem stores the upload time as epoch millis so the owner index sorts by it.
type fileItem struct {
	domain.File
	UploadedAtMs int64 `dynamodbav:"uploaded_at"`
}

func toItem(f *domain.File) fileItem {
	return fileItem{File: *f, UploadedAtMs: f.UploadedAt.UnixMilli()}
}

func (it fileItem) toDomain() domain.File {
	f := it.File
	f.UploadedAt = time.UnixMilli(it.UploadedAtMs).UTC()
	return f
}

// FileRepo provides typed DynamoDB operations for the files table.
type FileRepo struct {
	client    dynamoAPI
	tableName string
}

func NewFileRepo(client dynamoAPI, tableName string) *FileRepo {
	return &FileRepo{client: client, tableName: tableName}
}

func (r *FileRepo) Create(ctx context.Context, f *domain.File) error {
	item, err := attributevalue.MarshalMap(toItem(f))
	if err != nil {
		return fmt.Errorf("marshal file: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(file_id)"),
	})
	if err != nil {
		return fmt.Errorf("put file: %w", err)
	}
	return nil
}

// GetOwned returns the file only when ownerID owns it.
func (r *FileRepo) GetOwned(ctx context.Context, fileID, ownerID string) (*domain.File, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("file_id", fileID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	if out.Item == nil {
		return nil, domain.ErrFileNotFound
	}
	var it fileItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal file: %w", err)
	}
	if it.OwnerUserID != ownerID {
		return nil, domain.ErrFileNotFound
	}
	f := it.toDomain()
	return &f, nil
}

// ListByOwner returns the owner's files, newest first.
func (r *FileRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.File, error) {
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(ownerIndex),
		KeyConditionExpression:    aws.String("owner_user_id = :o"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":o": &types.AttributeValueMemberS{Value: ownerID}},
		ScanIndexForward:          aws.Bool(false),
	}

	files := []domain.File{}
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query files: %w", err)
		}
		var items []fileItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal files: %w", err)
		}
		for _, it := range items {
			files = append(files, it.toDomain())
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	// the index does not order items sharing a timestamp
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].UploadedAt.Equal(files[j].UploadedAt) {
			return files[i].UploadedAt.After(files[j].UploadedAt)
		}
		return files[i].FileID > files[j].FileID
	})
	return files, nil
}

// DeleteOwned removes the item only if ownerID owns it and returns the deleted record.
func (r *FileRepo) DeleteOwned(ctx context.Context, fileID, ownerID string) (*domain.File, error) {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("file_id", fileID),
		ConditionExpression:       aws.String("owner_user_id = :o"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":o": &types.AttributeValueMemberS{Value: ownerID}},
		ReturnValues:              types.ReturnValueAllOld,
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, domain.ErrFileNotFound
		}
		return nil, fmt.Errorf("delete file: %w", err)
	}
	var it fileItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &it); err != nil {
		return nil, fmt.Errorf("unmarshal file: %w", err)
	}
	f := it.toDomain()
	return &f, nil
}
