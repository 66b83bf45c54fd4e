package dynamodb

import (
	"context"
	"fmt"
	"time"

	"anima-backend/application/ports"
	"anima-backend/domain/core/entities"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// MemoryFragmentRepository stores one fragment set per life at
// LIFE#<n>/MEMORY. Pruning walks life numbers downward from the retention
// bound instead of scanning the table.
type MemoryFragmentRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewMemoryFragmentRepository creates a new MemoryFragmentRepository
func NewMemoryFragmentRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.MemoryFragmentRepository {
	return &MemoryFragmentRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// memoryItem represents the DynamoDB item structure for a fragment set
type memoryItem struct {
	PK          string   `dynamodbav:"PK"`
	SK          string   `dynamodbav:"SK"`
	EntityType  string   `dynamodbav:"EntityType"`
	LifeNumber  int      `dynamodbav:"LifeNumber"`
	Fragments   []string `dynamodbav:"Fragments"`
	Emotion     string   `dynamodbav:"Emotion"`
	GeneratedAt string   `dynamodbav:"GeneratedAt"`
}

// Save persists the fragment set for a life
func (r *MemoryFragmentRepository) Save(ctx context.Context, set *entities.MemoryFragmentSet) error {
	item := memoryItem{
		PK:          lifeNumberPK(set.LifeNumber),
		SK:          "MEMORY",
		EntityType:  "MEMORY_FRAGMENTS",
		LifeNumber:  set.LifeNumber,
		Fragments:   set.Fragments,
		Emotion:     set.Emotion,
		GeneratedAt: set.GeneratedAt.Format(time.RFC3339),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal memory fragments: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to save memory fragments: %w", err)
	}
	return nil
}

// Get returns the set for a life number, or nil when absent
func (r *MemoryFragmentRepository) Get(ctx context.Context, lifeNumber int) (*entities.MemoryFragmentSet, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: lifeNumberPK(lifeNumber)},
			"SK": &types.AttributeValueMemberS{Value: "MEMORY"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get memory fragments: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var item memoryItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal memory fragments: %w", err)
	}

	generatedAt, err := time.Parse(time.RFC3339, item.GeneratedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt memory fragment record: %w", err)
	}

	return &entities.MemoryFragmentSet{
		LifeNumber:  item.LifeNumber,
		Fragments:   item.Fragments,
		Emotion:     item.Emotion,
		GeneratedAt: generatedAt,
	}, nil
}

// DeleteBefore removes all sets with life number strictly below the bound.
// Life numbers are dense, so walking downward until the first miss covers
// everything that exists.
func (r *MemoryFragmentRepository) DeleteBefore(ctx context.Context, lifeNumber int) error {
	for n := lifeNumber - 1; n >= 1; n-- {
		out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: lifeNumberPK(n)},
				"SK": &types.AttributeValueMemberS{Value: "MEMORY"},
			},
			ReturnValues: types.ReturnValueAllOld,
		})
		if err != nil {
			return fmt.Errorf("failed to delete memory fragments: %w", err)
		}
		if out.Attributes == nil {
			// Already pruned below this point
			break
		}
		r.logger.Debug("Pruned memory fragments", zap.Int("lifeNumber", n))
	}
	return nil
}
