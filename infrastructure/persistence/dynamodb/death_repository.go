package dynamodb

import (
	"context"
	"errors"
	"fmt"
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

// DeathRecordRepository stores one item per completed life at
// LIFE#<n>/DEATH. The conditional put makes the append exactly-once.
type DeathRecordRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewDeathRecordRepository creates a new DeathRecordRepository
func NewDeathRecordRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.DeathRecordRepository {
	return &DeathRecordRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// deathItem represents the DynamoDB item structure for a death record
type deathItem struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	EntityType     string `dynamodbav:"EntityType"`
	LifeNumber     int    `dynamodbav:"LifeNumber"`
	BirthTime      string `dynamodbav:"BirthTime"`
	DeathTime      string `dynamodbav:"DeathTime"`
	Cause          string `dynamodbav:"Cause"`
	TotalVotesLive int    `dynamodbav:"TotalVotesLive"`
	TotalVotesDie  int    `dynamodbav:"TotalVotesDie"`
	Summary        string `dynamodbav:"Summary,omitempty"`
}

// Append writes the record exactly once
func (r *DeathRecordRepository) Append(ctx context.Context, record *entities.DeathRecord) error {
	item := deathItem{
		PK:             lifeNumberPK(record.LifeNumber),
		SK:             "DEATH",
		EntityType:     "DEATH_RECORD",
		LifeNumber:     record.LifeNumber,
		BirthTime:      record.BirthTime.Format(time.RFC3339),
		DeathTime:      record.DeathTime.Format(time.RFC3339),
		Cause:          record.Cause.String(),
		TotalVotesLive: record.TotalVotesLive,
		TotalVotesDie:  record.TotalVotesDie,
		Summary:        record.Summary,
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal death record: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return pkgerrors.ErrDeathRecordExists.WithDetail("life_number", record.LifeNumber)
		}
		return fmt.Errorf("failed to append death record: %w", err)
	}

	r.logger.Info("Death record written",
		zap.Int("lifeNumber", record.LifeNumber),
		zap.String("cause", record.Cause.String()),
	)
	return nil
}

// Get returns the record for a life number, or nil when absent
func (r *DeathRecordRepository) Get(ctx context.Context, lifeNumber int) (*entities.DeathRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: lifeNumberPK(lifeNumber)},
			"SK": &types.AttributeValueMemberS{Value: "DEATH"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get death record: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var item deathItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal death record: %w", err)
	}

	birthTime, err := time.Parse(time.RFC3339, item.BirthTime)
	if err != nil {
		return nil, fmt.Errorf("corrupt death record: %w", err)
	}
	deathTime, err := time.Parse(time.RFC3339, item.DeathTime)
	if err != nil {
		return nil, fmt.Errorf("corrupt death record: %w", err)
	}

	return &entities.DeathRecord{
		LifeNumber:     item.LifeNumber,
		BirthTime:      birthTime,
		DeathTime:      deathTime,
		Cause:          valueobjects.DeathCause(item.Cause),
		TotalVotesLive: item.TotalVotesLive,
		TotalVotesDie:  item.TotalVotesDie,
		Summary:        item.Summary,
	}, nil
}

func lifeNumberPK(n int) string {
	return fmt.Sprintf("LIFE#%d", n)
}
