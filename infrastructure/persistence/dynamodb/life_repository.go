package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"anima-backend/application/ports"
	"anima-backend/domain/core/entities"
	"anima-backend/domain/core/valueobjects"
	pkgerrors "anima-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const (
	lifePK = "LIFE#CURRENT"
	lifeSK = "STATE"
)

// LifeRepository stores the singleton life record as one item. Writes are
// conditional on the stored version, so concurrent transitions serialize at
// the table and losers surface as ErrConcurrentModification.
type LifeRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewLifeRepository creates a new LifeRepository
func NewLifeRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.LifeRepository {
	return &LifeRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// lifeItem represents the DynamoDB item structure for the life record
type lifeItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	LifeNumber int    `dynamodbav:"LifeNumber"`
	State      string `dynamodbav:"State"`
	Intention  string `dynamodbav:"Intention"`
	DeathCause string `dynamodbav:"DeathCause"`
	BornAt     string `dynamodbav:"BornAt"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
	Version    int    `dynamodbav:"Version"`
}

// Get returns the current life, or ErrLifeNotFound before first seed
func (r *LifeRepository) Get(ctx context.Context) (*entities.Life, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       lifeKey(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get life record: %w", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.ErrLifeNotFound
	}

	var item lifeItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal life record: %w", err)
	}
	return itemToLife(item)
}

// Seed creates the first life if none exists. On a lost creation race the
// winner's record is returned.
func (r *LifeRepository) Seed(ctx context.Context, life *entities.Life) (*entities.Life, error) {
	av, err := attributevalue.MarshalMap(lifeToItem(life))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal life record: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return r.Get(ctx)
		}
		return nil, fmt.Errorf("failed to seed life record: %w", err)
	}

	r.logger.Info("Seeded life record", zap.Int("lifeNumber", life.Number()))
	return life, nil
}

// Save persists the life iff the stored version equals expectedVersion
func (r *LifeRepository) Save(ctx context.Context, life *entities.Life, expectedVersion int) error {
	item := lifeToItem(life)
	item.Version = expectedVersion + 1

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal life record: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("Version = :expected"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.Itoa(expectedVersion)},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			r.logger.Debug("Lost life version race",
				zap.Int("expectedVersion", expectedVersion))
			return pkgerrors.ErrConcurrentModification
		}
		return fmt.Errorf("failed to save life record: %w", err)
	}

	life.BumpVersion()
	return nil
}

func lifeKey() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: lifePK},
		"SK": &types.AttributeValueMemberS{Value: lifeSK},
	}
}

func lifeToItem(life *entities.Life) lifeItem {
	return lifeItem{
		PK:         lifePK,
		SK:         lifeSK,
		EntityType: "LIFE",
		LifeNumber: life.Number(),
		State:      life.State().String(),
		Intention:  life.Intention(),
		DeathCause: life.DeathCause().String(),
		BornAt:     life.BornAt().Format(time.RFC3339),
		UpdatedAt:  life.UpdatedAt().Format(time.RFC3339),
		Version:    life.Version(),
	}
}

func itemToLife(item lifeItem) (*entities.Life, error) {
	state, err := valueobjects.ParseLifeState(item.State)
	if err != nil {
		return nil, fmt.Errorf("corrupt life record: %w", err)
	}

	bornAt, err := time.Parse(time.RFC3339, item.BornAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt life record: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt life record: %w", err)
	}

	return entities.ReconstructLife(
		item.LifeNumber,
		state,
		item.Intention,
		valueobjects.DeathCause(item.DeathCause),
		bornAt,
		updatedAt,
		item.Version,
	), nil
}
