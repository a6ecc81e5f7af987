package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/StellarTechLab/nexrender-action-upload-gdrive/internal/model"
)

// DefaultRetention is how long records live before DynamoDB TTL removes them.
const DefaultRetention = 30 * 24 * time.Hour

// DynamoDBClient is the subset of *dynamodb.Client methods used by DynamoRecorder.
type DynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoRecorder stores records in a DynamoDB table keyed by invocation_id,
// with expires_at as the TTL attribute.
type DynamoRecorder struct {
	client    DynamoDBClient
	tableName string
	retention time.Duration
	now       func() time.Time
}

func NewDynamoRecorder(client DynamoDBClient, tableName string) *DynamoRecorder {
	return &DynamoRecorder{
		client:    client,
		tableName: tableName,
		retention: DefaultRetention,
		now:       time.Now,
	}
}

// Record writes rec. An existing record with the same invocation id is not overwritten.
func (r *DynamoRecorder) Record(ctx context.Context, rec *model.UploadRecord) error {
	if rec.InvocationID == "" {
		return fmt.Errorf("upload record has no invocation id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	rec.ExpiresAt = rec.CreatedAt.Add(r.retention).Unix()

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal upload record: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(invocation_id)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("invocation %s: %w", rec.InvocationID, ErrDuplicate)
		}
		return fmt.Errorf("failed to put upload record: %w", err)
	}
	return nil
}

// Get returns the record for invocationID. Expired records that TTL has not
// yet removed are reported as missing.
func (r *DynamoRecorder) Get(ctx context.Context, invocationID string) (*model.UploadRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"invocation_id": &types.AttributeValueMemberS{Value: invocationID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get upload record: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var rec model.UploadRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal upload record: %w", err)
	}
	if rec.ExpiresAt != 0 && rec.ExpiresAt < r.now().Unix() {
		return nil, ErrNotFound
	}
	return &rec, nil
}
