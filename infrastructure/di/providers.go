package di

import (
	"context"

	"anima-backend/application/ports"
	"anima-backend/infrastructure/config"
	"anima-backend/infrastructure/messaging"
	"anima-backend/infrastructure/messaging/eventbridge"
	dynamodbstore "anima-backend/infrastructure/persistence/dynamodb"
	memorystore "anima-backend/infrastructure/persistence/memory"
	"anima-backend/infrastructure/notify"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// Repositories bundles the persistence surface behind one storage driver
type Repositories struct {
	Lives      ports.LifeRepository
	Rounds     ports.VoteRoundRepository
	Deaths     ports.DeathRecordRepository
	Memories   ports.MemoryFragmentRepository
	Utterances ports.UtteranceRepository
	Locker     ports.ResourceLocker
}

// ProvideDynamoDBRepositories wires the DynamoDB-backed persistence layer
func ProvideDynamoDBRepositories(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) Repositories {
	return Repositories{
		Lives:      dynamodbstore.NewLifeRepository(client, cfg.DynamoDBTable, logger),
		Rounds:     dynamodbstore.NewVoteRoundRepository(client, cfg.DynamoDBTable, logger),
		Deaths:     dynamodbstore.NewDeathRecordRepository(client, cfg.DynamoDBTable, logger),
		Memories:   dynamodbstore.NewMemoryFragmentRepository(client, cfg.DynamoDBTable, logger),
		Utterances: dynamodbstore.NewUtteranceRepository(client, cfg.DynamoDBTable, logger),
		Locker:     dynamodbstore.NewDistributedLock(client, cfg.DynamoDBTable, logger),
	}
}

// ProvideMemoryRepositories wires the in-memory persistence layer
func ProvideMemoryRepositories() Repositories {
	return Repositories{
		Lives:      memorystore.NewLifeStore(),
		Rounds:     memorystore.NewVoteStore(),
		Deaths:     memorystore.NewDeathStore(),
		Memories:   memorystore.NewMemoryStore(),
		Utterances: memorystore.NewUtteranceStore(),
		Locker:     memorystore.NewLocker(),
	}
}

// ProvideEventPublisher selects the bus publisher for the environment
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.StorageDriver == config.DriverDynamoDB {
		return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
	}
	return messaging.NewLoggingPublisher(logger)
}

// ProvideRuntimeNotifier selects the runtime notifier for the environment
func ProvideRuntimeNotifier(cfg *config.Config, logger *zap.Logger) ports.RuntimeNotifier {
	if cfg.RuntimeBaseURL == "" {
		return notify.NewLoggingNotifier(logger)
	}
	return notify.NewHTTPRuntimeNotifier(cfg.RuntimeBaseURL, logger)
}

// ProvideIntentionCloser selects the intention closer for the environment
func ProvideIntentionCloser(cfg *config.Config, notifier ports.RuntimeNotifier, logger *zap.Logger) ports.IntentionCloser {
	if httpNotifier, ok := notifier.(*notify.HTTPRuntimeNotifier); ok {
		return notify.NewHTTPIntentionCloser(httpNotifier)
	}
	return notify.NewLoggingIntentionCloser(logger)
}
