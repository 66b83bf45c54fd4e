package di

import (
	"context"
	"fmt"

	"anima-backend/application/jobs"
	"anima-backend/application/ports"
	"anima-backend/application/services"
	"anima-backend/infrastructure/config"
	"anima-backend/pkg/auth"
	"anima-backend/pkg/observability"

	"go.uber.org/zap"
)

const (
	operatorTokenIssuer     = "anima-governance"
	publicRequestsPerMinute = 60
)

// Container holds the assembled application graph. Construction is explicit
// and ordered; there is no codegen behind it.
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Collector

	Repositories Repositories

	Lifecycle *services.LifecycleService
	Votes     *services.VoteService
	Memories  *services.MemoryGenerator
	Respawn   *services.RespawnCoordinator
	Democracy *jobs.DemocracyChecker

	OperatorValidator *auth.OperatorValidator
	IPLimiter         *auth.IPRateLimiter
}

// NewContainer builds the full application graph for the configured
// environment.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if !cfg.IsProduction() && cfg.InternalSecret == "" {
		logger.Warn("INTERNAL_SECRET is not set; privileged endpoints are unauthenticated")
	}

	metrics := observability.NewCollector("anima")

	var repos Repositories
	var publisher ports.EventPublisher
	if cfg.StorageDriver == config.DriverDynamoDB {
		awsCfg, err := ProvideAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		repos = ProvideDynamoDBRepositories(ProvideDynamoDBClient(awsCfg), cfg, logger)
		publisher = ProvideEventPublisher(ProvideEventBridgeClient(awsCfg), cfg, logger)
	} else {
		repos = ProvideMemoryRepositories()
		publisher = ProvideEventPublisher(nil, cfg, logger)
	}

	notifier := ProvideRuntimeNotifier(cfg, logger)
	intentions := ProvideIntentionCloser(cfg, notifier, logger)

	votes := services.NewVoteService(
		repos.Rounds,
		publisher,
		metrics,
		logger,
		services.VotingMode(cfg.VotingMode),
		cfg.Governance.RoundDuration,
		cfg.Governance.MinVotesForDeath,
	)
	lifecycle := services.NewLifecycleService(
		repos.Lives,
		repos.Deaths,
		repos.Utterances,
		votes,
		intentions,
		publisher,
		metrics,
		logger,
	)
	memories := services.NewMemoryGenerator(
		repos.Utterances,
		repos.Memories,
		cfg.Governance.MemoryRetentionLives,
		logger,
	)
	respawn := services.NewRespawnCoordinator(
		lifecycle,
		memories,
		notifier,
		repos.Locker,
		metrics,
		logger,
		cfg.RespawnPollInterval,
		cfg.Governance.RespawnDelayMin,
		cfg.Governance.RespawnDelayMax,
	)
	democracy := jobs.NewDemocracyChecker(
		lifecycle,
		votes,
		notifier,
		logger,
		cfg.Governance.DemocracyCheckInterval,
		services.VotingMode(cfg.VotingMode),
	)

	var operatorValidator *auth.OperatorValidator
	if cfg.OperatorJWTSecret != "" {
		operatorValidator, err = auth.NewOperatorValidator(cfg.OperatorJWTSecret, operatorTokenIssuer)
		if err != nil {
			return nil, fmt.Errorf("failed to build operator validator: %w", err)
		}
	} else {
		logger.Warn("OPERATOR_JWT_SECRET is not set; operator tokens are rejected")
	}

	return &Container{
		Config:            cfg,
		Logger:            logger,
		Metrics:           metrics,
		Repositories:      repos,
		Lifecycle:         lifecycle,
		Votes:             votes,
		Memories:          memories,
		Respawn:           respawn,
		Democracy:         democracy,
		OperatorValidator: operatorValidator,
		IPLimiter:         auth.NewIPRateLimiter(publicRequestsPerMinute),
	}, nil
}

// Close flushes the logger
func (c *Container) Close() {
	_ = c.Logger.Sync()
}
