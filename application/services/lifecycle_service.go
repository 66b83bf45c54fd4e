package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"anima-backend/application/ports"
	"anima-backend/domain/core/entities"
	"anima-backend/domain/core/valueobjects"
	pkgerrors "anima-backend/pkg/errors"
	"anima-backend/pkg/observability"

	"go.uber.org/zap"
)

const deathSummaryUtterances = 3

// LifecycleService drives the life state machine. All transitions funnel
// through Transition so the conditional write on the life's version is the
// single serialization point; concurrent losers re-read and get a clean
// invalid-transition rejection instead of a partial write.
type LifecycleService struct {
	mu sync.Mutex

	lives      ports.LifeRepository
	deaths     ports.DeathRecordRepository
	utterances ports.UtteranceRepository
	votes      *VoteService
	intentions ports.IntentionCloser
	publisher  ports.EventPublisher
	metrics    *observability.Collector
	logger     *zap.Logger
}

// NewLifecycleService creates a lifecycle service
func NewLifecycleService(
	lives ports.LifeRepository,
	deaths ports.DeathRecordRepository,
	utterances ports.UtteranceRepository,
	votes *VoteService,
	intentions ports.IntentionCloser,
	publisher ports.EventPublisher,
	metrics *observability.Collector,
	logger *zap.Logger,
) *LifecycleService {
	return &LifecycleService{
		lives:      lives,
		deaths:     deaths,
		utterances: utterances,
		votes:      votes,
		intentions: intentions,
		publisher:  publisher,
		metrics:    metrics,
		logger:     logger,
	}
}

// EnsureSeeded makes sure the singleton life exists, creating life 1 in the
// active state on a cold start. It also guarantees an open voting round so
// the public API is usable immediately.
func (s *LifecycleService) EnsureSeeded(ctx context.Context) (*entities.Life, error) {
	now := time.Now()

	life, err := s.lives.Get(ctx)
	if err != nil {
		if !pkgerrors.IsCode(err, "LIFE_NOT_FOUND") {
			return nil, err
		}
		life, err = s.lives.Seed(ctx, entities.NewFirstLife(now))
		if err != nil {
			return nil, err
		}
		s.logger.Info("Seeded first life", zap.Int("lifeNumber", life.Number()))
	}

	if life.IsAlive() {
		if _, err := s.votes.CurrentRound(ctx); err != nil {
			if !pkgerrors.IsCode(err, "NO_OPEN_ROUND") {
				return nil, err
			}
			if _, err := s.votes.OpenNewRound(ctx, life.Number(), now); err != nil {
				return nil, err
			}
		}
	}

	return life, nil
}

// Current returns the current life
func (s *LifecycleService) Current(ctx context.Context) (*entities.Life, error) {
	return s.lives.Get(ctx)
}

// Transition applies one lifecycle transition and its side effects. The state
// write happens first; side effects (death record, round reset, events) run
// only after it succeeds, and their failures never roll the state back.
func (s *LifecycleService) Transition(
	ctx context.Context,
	next valueobjects.LifeState,
	cause valueobjects.DeathCause,
	intention string,
) (*entities.Life, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	life, err := s.lives.Get(ctx)
	if err != nil {
		return nil, err
	}
	from := life.State()
	expected := life.Version()

	if err := life.TransitionTo(next, cause, time.Now()); err != nil {
		return nil, err
	}
	if intention != "" {
		life.SetIntention(intention, life.UpdatedAt())
	}

	if err := s.lives.Save(ctx, life, expected); err != nil {
		if pkgerrors.IsCode(err, "CONCURRENT_MODIFICATION") {
			// Another writer moved the state first. Re-read and report the
			// transition against what is actually stored.
			current, readErr := s.lives.Get(ctx)
			if readErr != nil {
				return nil, readErr
			}
			return nil, pkgerrors.NewInvalidTransitionError(current.State().String(), next.String())
		}
		return nil, err
	}

	s.metrics.Transitions.WithLabelValues(from.String(), next.String()).Inc()
	s.logger.Info("Lifecycle transition",
		zap.String("from", from.String()),
		zap.String("to", next.String()),
		zap.Int("lifeNumber", life.Number()),
	)

	switch next {
	case valueobjects.StateDead:
		s.handleDeath(ctx, life)
	case valueobjects.StateBorn:
		if err := s.votes.ResetRoundsForNewLife(ctx, life.Number(), life.UpdatedAt()); err != nil {
			// The new life exists but has no round yet; EnsureSeeded or the
			// next check pass will open one.
			s.logger.Error("Failed to reset voting rounds for new life",
				zap.Int("lifeNumber", life.Number()), zap.Error(err))
		}
		s.metrics.Rebirths.Inc()
	}

	if pending := life.Events(); len(pending) > 0 {
		if err := s.publisher.PublishBatch(ctx, pending); err != nil {
			s.logger.Warn("Failed to publish lifecycle events", zap.Error(err))
		}
		life.ClearEvents()
	}

	return life, nil
}

// handleDeath finalizes a life that just entered dead: appends the death
// record exactly once, closes the in-flight intention and bumps metrics.
func (s *LifecycleService) handleDeath(ctx context.Context, life *entities.Life) {
	tally := s.votes.TallyForDeath(ctx)
	record := entities.NewDeathRecord(
		life.Number(),
		life.BornAt(),
		life.UpdatedAt(),
		life.DeathCause(),
		tally.Live,
		tally.Die,
		s.deathSummary(ctx, life.Number()),
	)

	if err := s.deaths.Append(ctx, record); err != nil {
		if pkgerrors.IsCode(err, "DEATH_RECORD_EXISTS") {
			// Two writers finishing the same death is a bug upstream, not a
			// condition to paper over.
			s.logger.Error("Death record already written for this life",
				zap.Int("lifeNumber", life.Number()))
		} else {
			s.logger.Error("Failed to append death record",
				zap.Int("lifeNumber", life.Number()), zap.Error(err))
		}
	}

	if err := s.intentions.CloseActive(ctx, "life_ended"); err != nil {
		s.logger.Warn("Failed to close active intention", zap.Error(err))
	}

	s.metrics.Deaths.WithLabelValues(life.DeathCause().String()).Inc()
	s.logger.Info("Life ended",
		zap.Int("lifeNumber", life.Number()),
		zap.String("cause", life.DeathCause().String()),
		zap.Int("votesLive", tally.Live),
		zap.Int("votesDie", tally.Die),
		zap.Int64("durationSeconds", record.DurationSeconds()),
	)
}

// deathSummary condenses the dead life's last public utterances into a short
// free-text epitaph for the death record.
func (s *LifecycleService) deathSummary(ctx context.Context, lifeNumber int) string {
	utterances, err := s.utterances.ListForLife(ctx, lifeNumber, deathSummaryUtterances)
	if err != nil || len(utterances) == 0 {
		return ""
	}
	parts := make([]string, 0, len(utterances))
	for _, u := range utterances {
		text := u.Text
		if len(text) > 80 {
			text = text[:80]
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " / ")
}

// DeathRecordFor returns the death record for a past life, or nil
func (s *LifecycleService) DeathRecordFor(ctx context.Context, lifeNumber int) (*entities.DeathRecord, error) {
	return s.deaths.Get(ctx, lifeNumber)
}
