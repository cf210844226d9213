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
	"github.com/go-file-vault/internal/domain"
)

const (
	emailIndex       = "email-index"
	emailGuardPrefix = "email#"
)

// UserRepo provides typed DynamoDB operations for the users table.
type UserRepo struct {
	client    dynamoAPI
	tableName string
}

func NewUserRepo(client dynamoAPI, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

// Create writes the user together with a guard item keyed by the email, so two
// registrations racing on the same address cannot both succeed.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	notExists := aws.String("attribute_not_exists(user_id)")

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                strKey("user_id", emailGuardPrefix+u.Email),
				ConditionExpression: notExists,
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: notExists,
			}},
		},
	})
	if err != nil {
		if isTxConditionFailed(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(emailIndex),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": "email"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: email}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, domain.ErrUserNotFound
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

// SetOTP overwrites any existing challenge for email.
func (r *UserRepo) SetOTP(ctx context.Context, email, code string, expiresAt time.Time) error {
	u, err := r.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	ue, err := buildUpdateExpr(map[string]interface{}{
		"otp_code":       code,
		"otp_expires_at": expiresAt.UnixMilli(),
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("user_id", u.UserID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(user_id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if err != nil {
		if isConditionFailed(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("set otp: %w", err)
	}
	return nil
}

// ConsumeOTP stores newHash and removes the challenge in one conditional update that only
// applies while the stored code equals code and has not expired at now.
func (r *UserRepo) ConsumeOTP(ctx context.Context, email, code, newHash string, now time.Time) error {
	u, err := r.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrInvalidOTP
		}
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("user_id", u.UserID),
		UpdateExpression:    aws.String("SET #h = :h REMOVE #c, #e"),
		ConditionExpression: aws.String("#c = :c AND #e >= :now"),
		ExpressionAttributeNames: map[string]string{
			"#h": "password_hash",
			"#c": "otp_code",
			"#e": "otp_expires_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":h":   &types.AttributeValueMemberS{Value: newHash},
			":c":   &types.AttributeValueMemberS{Value: code},
			":now": &types.AttributeValueMemberN{Value: fmt.Sprint(now.UnixMilli())},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return domain.ErrInvalidOTP
		}
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}
