package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anima-backend/application/ports"
	pkgerrors "anima-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// DistributedLock implements ports.ResourceLocker with DynamoDB conditional
// writes. The respawn coordinator uses it so only one replica performs a
// rebirth; an expired lease is stealable, which covers a crashed holder.
type DistributedLock struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewDistributedLock creates a new distributed lock instance
func NewDistributedLock(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.ResourceLocker {
	return &DistributedLock{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// lockItem represents a lease record in DynamoDB. TTL lets the table itself
// garbage-collect leases from long-gone holders.
type lockItem struct {
	PK         string `dynamodbav:"PK"` // LOCK#<resource>
	SK         string `dynamodbav:"SK"` // LOCK
	Owner      string `dynamodbav:"Owner"`
	AcquiredAt string `dynamodbav:"AcquiredAt"`
	ExpiresAt  string `dynamodbav:"ExpiresAt"`
	TTL        int64  `dynamodbav:"TTL"`
}

// Acquire takes a lease on the resource, returning its release func.
// ErrConcurrentModification means another owner holds an unexpired lease.
func (dl *DistributedLock) Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (func(context.Context) error, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	item := map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: lockPK(resource)},
		"SK":         &types.AttributeValueMemberS{Value: "LOCK"},
		"Owner":      &types.AttributeValueMemberS{Value: owner},
		"AcquiredAt": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		"ExpiresAt":  &types.AttributeValueMemberS{Value: expiresAt.Format(time.RFC3339)},
		"TTL":        &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expiresAt.Unix())},
	}

	_, err := dl.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(dl.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			dl.logger.Debug("Lease held elsewhere",
				zap.String("resource", resource),
				zap.String("owner", owner),
			)
			return nil, pkgerrors.ErrConcurrentModification.WithDetail("resource", resource)
		}
		return nil, fmt.Errorf("failed to acquire lease: %w", err)
	}

	dl.logger.Debug("Lease acquired",
		zap.String("resource", resource),
		zap.String("owner", owner),
		zap.Duration("ttl", ttl),
	)

	release := func(releaseCtx context.Context) error {
		return dl.release(releaseCtx, resource, owner)
	}
	return release, nil
}

// release deletes the lease iff this owner still holds it. A lease already
// stolen after expiry is left alone.
func (dl *DistributedLock) release(ctx context.Context, resource, owner string) error {
	_, err := dl.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(dl.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: lockPK(resource)},
			"SK": &types.AttributeValueMemberS{Value: "LOCK"},
		},
		ConditionExpression: aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "Owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			dl.logger.Warn("Lease already released or stolen",
				zap.String("resource", resource),
				zap.String("owner", owner),
			)
			return nil
		}
		return fmt.Errorf("failed to release lease: %w", err)
	}

	dl.logger.Debug("Lease released",
		zap.String("resource", resource),
		zap.String("owner", owner),
	)
	return nil
}

func lockPK(resource string) string {
	return "LOCK#" + resource
}
