package dynamodb

import (
	"context"
	"fmt"
	"time"

	"anima-backend/application/ports"
	"anima-backend/domain/core/entities"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// UtteranceRepository reads the runtime's utterance items at
// LIFE#<n>/UTTERANCE#<rfc3339>. This side never writes them; the runtime
// process owns that partition's writes.
type UtteranceRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewUtteranceRepository creates a new UtteranceRepository
func NewUtteranceRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.UtteranceRepository {
	return &UtteranceRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// utteranceItem represents the DynamoDB item structure for an utterance
type utteranceItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	LifeNumber int    `dynamodbav:"LifeNumber"`
	Text       string `dynamodbav:"Text"`
	SpokenAt   string `dynamodbav:"SpokenAt"`
}

// ListBeforeLife returns utterances from lives strictly earlier than the
// given life number, newest life first, up to limit.
func (r *UtteranceRepository) ListBeforeLife(ctx context.Context, lifeNumber, limit int) ([]entities.Utterance, error) {
	var all []entities.Utterance
	for n := lifeNumber - 1; n >= 1 && len(all) < limit; n-- {
		utterances, err := r.ListForLife(ctx, n, limit-len(all))
		if err != nil {
			return nil, err
		}
		all = append(all, utterances...)
	}
	return all, nil
}

// ListForLife returns utterances of one life, newest first, up to limit
func (r *UtteranceRepository) ListForLife(ctx context.Context, lifeNumber, limit int) ([]entities.Utterance, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(lifeNumberPK(lifeNumber))).
		And(expression.Key("SK").BeginsWith("UTTERANCE#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build utterance query: %w", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false), // newest first
		Limit:                     aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query utterances: %w", err)
	}

	var items []utteranceItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal utterances: %w", err)
	}

	utterances := make([]entities.Utterance, 0, len(items))
	for _, item := range items {
		spokenAt, err := time.Parse(time.RFC3339, item.SpokenAt)
		if err != nil {
			r.logger.Warn("Skipping utterance with bad timestamp",
				zap.String("sk", item.SK))
			continue
		}
		utterances = append(utterances, entities.Utterance{
			LifeNumber: item.LifeNumber,
			Text:       item.Text,
			SpokenAt:   spokenAt,
		})
	}
	return utterances, nil
}
