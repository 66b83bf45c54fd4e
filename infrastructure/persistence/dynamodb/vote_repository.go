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
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const (
	openMarkerPK = "ROUND#OPEN"
	lastMarkerPK = "ROUND#LAST"
	openMarkerSK = "MARKER"
	roundMetaSK  = "META"
)

// VoteRoundRepository stores rounds and their votes in the single table.
// Round metadata lives at ROUND#<id>/META, each vote at
// ROUND#<id>/VOTE#<fingerprint>, and a marker item at ROUND#OPEN/MARKER
// points at the one open round. Closing a round swaps the open marker for a
// ROUND#LAST/MARKER pointer, so the deciding tally remains reachable from
// any process. Vote uniqueness and the single-open-round invariant are both
// enforced with conditional writes.
type VoteRoundRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewVoteRoundRepository creates a new VoteRoundRepository
func NewVoteRoundRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.VoteRoundRepository {
	return &VoteRoundRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// roundItem represents the DynamoDB item structure for round metadata
type roundItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	RoundID    string `dynamodbav:"RoundID"`
	LifeNumber int    `dynamodbav:"LifeNumber"`
	StartsAt   string `dynamodbav:"StartsAt"`
	EndsAt     string `dynamodbav:"EndsAt"`
	LiveCount  int    `dynamodbav:"LiveCount"`
	DieCount   int    `dynamodbav:"DieCount"`
	Status     string `dynamodbav:"Status"`
}

// voteItem represents the DynamoDB item structure for a single vote
type voteItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	EntityType  string `dynamodbav:"EntityType"`
	RoundID     string `dynamodbav:"RoundID"`
	Fingerprint string `dynamodbav:"Fingerprint"`
	Choice      string `dynamodbav:"Choice"`
	Reason      string `dynamodbav:"Reason,omitempty"`
	CreatedAt   string `dynamodbav:"CreatedAt"`
}

// openMarkerItem points at the currently open round
type openMarkerItem struct {
	PK      string `dynamodbav:"PK"`
	SK      string `dynamodbav:"SK"`
	RoundID string `dynamodbav:"RoundID"`
}

// OpenRound returns the single open round, or ErrNoOpenRound
func (r *VoteRoundRepository) OpenRound(ctx context.Context) (*entities.VoteRound, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: openMarkerPK},
			"SK": &types.AttributeValueMemberS{Value: openMarkerSK},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get open round marker: %w", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.ErrNoOpenRound
	}

	var marker openMarkerItem
	if err := attributevalue.UnmarshalMap(out.Item, &marker); err != nil {
		return nil, fmt.Errorf("failed to unmarshal open round marker: %w", err)
	}

	round, err := r.GetRound(ctx, marker.RoundID)
	if err != nil {
		if pkgerrors.IsCode(err, "ROUND_NOT_FOUND") {
			// Stale marker; treat as closed
			return nil, pkgerrors.ErrNoOpenRound
		}
		return nil, err
	}
	if round.Status != entities.RoundOpen {
		return nil, pkgerrors.ErrNoOpenRound
	}
	return round, nil
}

// GetRound returns a round by ID, or ErrRoundNotFound
func (r *VoteRoundRepository) GetRound(ctx context.Context, id string) (*entities.VoteRound, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       roundKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.ErrRoundNotFound.WithDetail("round_id", id)
	}

	var item roundItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal round: %w", err)
	}
	return itemToRound(item)
}

// CreateRound persists a new round and marks it as the open one
func (r *VoteRoundRepository) CreateRound(ctx context.Context, round *entities.VoteRound) error {
	av, err := attributevalue.MarshalMap(roundToItem(round))
	if err != nil {
		return fmt.Errorf("failed to marshal round: %w", err)
	}
	markerAV, err := attributevalue.MarshalMap(openMarkerItem{
		PK:      openMarkerPK,
		SK:      openMarkerSK,
		RoundID: round.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal open round marker: %w", err)
	}

	// Round creation and the marker swap commit together
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                av,
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			}},
			{Put: &types.Put{
				TableName: aws.String(r.tableName),
				Item:      markerAV,
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create round: %w", err)
	}
	return nil
}

// SaveRound persists round counts and status; closing a round clears the
// open marker when it still points at this round and repoints the
// last-closed marker.
func (r *VoteRoundRepository) SaveRound(ctx context.Context, round *entities.VoteRound) error {
	av, err := attributevalue.MarshalMap(roundToItem(round))
	if err != nil {
		return fmt.Errorf("failed to marshal round: %w", err)
	}

	if round.Status != entities.RoundClosed {
		_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(r.tableName),
			Item:      av,
		})
		if err != nil {
			return fmt.Errorf("failed to save round: %w", err)
		}
		return nil
	}

	lastAV, err := attributevalue.MarshalMap(openMarkerItem{
		PK:      lastMarkerPK,
		SK:      openMarkerSK,
		RoundID: round.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal last round marker: %w", err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName: aws.String(r.tableName),
				Item:      av,
			}},
			{Put: &types.Put{
				TableName: aws.String(r.tableName),
				Item:      lastAV,
			}},
			{Delete: &types.Delete{
				TableName: aws.String(r.tableName),
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: openMarkerPK},
					"SK": &types.AttributeValueMemberS{Value: openMarkerSK},
				},
				ConditionExpression: aws.String("attribute_not_exists(PK) OR RoundID = :roundId"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":roundId": &types.AttributeValueMemberS{Value: round.ID},
				},
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to close round: %w", err)
	}
	return nil
}

// LastClosedRound returns the most recently closed round via the
// ROUND#LAST marker, or nil when no round has closed yet.
func (r *VoteRoundRepository) LastClosedRound(ctx context.Context) (*entities.VoteRound, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: lastMarkerPK},
			"SK": &types.AttributeValueMemberS{Value: openMarkerSK},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get last round marker: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var marker openMarkerItem
	if err := attributevalue.UnmarshalMap(out.Item, &marker); err != nil {
		return nil, fmt.Errorf("failed to unmarshal last round marker: %w", err)
	}

	round, err := r.GetRound(ctx, marker.RoundID)
	if err != nil {
		if pkgerrors.IsCode(err, "ROUND_NOT_FOUND") {
			return nil, nil
		}
		return nil, err
	}
	return round, nil
}

// InsertVote inserts atomically, returning ErrDuplicateVote when the
// (round, fingerprint) pair already exists.
func (r *VoteRoundRepository) InsertVote(ctx context.Context, vote *entities.Vote) error {
	item := voteItem{
		PK:          roundPK(vote.RoundID),
		SK:          "VOTE#" + vote.Fingerprint.String(),
		EntityType:  "VOTE",
		RoundID:     vote.RoundID,
		Fingerprint: vote.Fingerprint.String(),
		Choice:      vote.Choice.String(),
		Reason:      vote.Reason,
		CreatedAt:   vote.CreatedAt.Format(time.RFC3339),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal vote: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return pkgerrors.ErrDuplicateVote
		}
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	return nil
}

// CountVotes recomputes the tally from the persisted vote items
func (r *VoteRoundRepository) CountVotes(ctx context.Context, roundID string) (int, int, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(roundPK(roundID))).
		And(expression.Key("SK").BeginsWith("VOTE#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build vote query: %w", err)
	}

	live, die := 0, 0
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return 0, 0, fmt.Errorf("failed to query votes: %w", err)
		}

		var votes []voteItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &votes); err != nil {
			return 0, 0, fmt.Errorf("failed to unmarshal votes: %w", err)
		}
		for _, v := range votes {
			switch valueobjects.VoteChoice(v.Choice) {
			case valueobjects.ChoiceLive:
				live++
			case valueobjects.ChoiceDie:
				die++
			}
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return live, die, nil
}

func roundPK(id string) string {
	return "ROUND#" + id
}

func roundKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: roundPK(id)},
		"SK": &types.AttributeValueMemberS{Value: roundMetaSK},
	}
}

func roundToItem(round *entities.VoteRound) roundItem {
	return roundItem{
		PK:         roundPK(round.ID),
		SK:         roundMetaSK,
		EntityType: "ROUND",
		RoundID:    round.ID,
		LifeNumber: round.LifeNumber,
		StartsAt:   round.StartsAt.Format(time.RFC3339),
		EndsAt:     round.EndsAt.Format(time.RFC3339),
		LiveCount:  round.LiveCount,
		DieCount:   round.DieCount,
		Status:     string(round.Status),
	}
}

func itemToRound(item roundItem) (*entities.VoteRound, error) {
	startsAt, err := time.Parse(time.RFC3339, item.StartsAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt round record: %w", err)
	}
	endsAt, err := time.Parse(time.RFC3339, item.EndsAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt round record: %w", err)
	}

	return &entities.VoteRound{
		ID:         item.RoundID,
		LifeNumber: item.LifeNumber,
		StartsAt:   startsAt,
		EndsAt:     endsAt,
		LiveCount:  item.LiveCount,
		DieCount:   item.DieCount,
		Status:     entities.RoundStatus(item.Status),
	}, nil
}
