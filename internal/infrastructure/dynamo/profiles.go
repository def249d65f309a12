package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pocketbroker-gate/internal/domain"
)

// itemAPI is the subset of *dynamodb.Client used by ProfileRepo.
type itemAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// ProfileRepo provides typed DynamoDB operations for the profiles table.
type ProfileRepo struct {
	client    itemAPI
	tableName string
	now       func() time.Time
}

func NewProfileRepo(client itemAPI, tableName string) *ProfileRepo {
	return &ProfileRepo{client: client, tableName: tableName, now: time.Now}
}

func (r *ProfileRepo) Get(ctx context.Context, subjectID string) (*domain.Profile, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldID, subjectID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, domain.ErrNotFound
	}
	var p domain.Profile
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return &p, nil
}

// Complete writes every onboarding field and the completion flag in a single
// UpdateItem. The row is created when missing; created_at is kept when present.
func (r *ProfileRepo) Complete(ctx context.Context, subjectID string, c domain.ProfileCompletion) (*domain.Profile, error) {
	now := r.now().UTC()
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldFirstName:           c.FirstName,
		fieldLastName:            c.LastName,
		fieldPhoneNumber:         c.PhoneNumber,
		fieldPINHash:             c.PINHash,
		fieldRiskTolerance:       string(c.RiskTolerance),
		fieldExchangeAPIKey:      c.ExchangeAPIKey,
		fieldOnboardingCompleted: true,
		fieldUpdatedAt:           now,
	})
	if err != nil {
		return nil, err
	}
	if err := ue.setIfNotExists(fieldCreatedAt, now); err != nil {
		return nil, err
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldID, subjectID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, err
	}
	var p domain.Profile
	if err := attributevalue.UnmarshalMap(out.Attributes, &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return &p, nil
}
