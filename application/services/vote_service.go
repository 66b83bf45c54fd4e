package services

import (
	"context"
	"time"

	"anima-backend/application/ports"
	"anima-backend/domain/core/entities"
	"anima-backend/domain/core/valueobjects"
	"anima-backend/domain/events"
	pkgerrors "anima-backend/pkg/errors"
	"anima-backend/pkg/observability"

	"go.uber.org/zap"
)

// VotingMode selects between the two deployed cadences of the protocol:
// discrete rounds closed on a fixed duration, or one rolling round whose
// accumulated tally is adjudicated periodically. Both share the same
// adjudication rule.
type VotingMode string

const (
	ModeDaily   VotingMode = "daily"
	ModeRolling VotingMode = "rolling"
)

// Tally is the running count of an open round
type Tally struct {
	Live  int `json:"live"`
	Die   int `json:"die"`
	Total int `json:"total"`
}

// CloseResult is the tagged outcome of a round-close check
type CloseResult struct {
	Closed  bool                 `json:"closed"`
	RoundID string               `json:"round_id,omitempty"`
	Verdict valueobjects.Verdict `json:"verdict,omitempty"`
	Live    int                  `json:"live"`
	Die     int                  `json:"die"`
	Total   int                  `json:"total"`
}

// VoteService manages the single open voting round: vote ingestion, tallies,
// closing and reopening. It never triggers lifecycle side effects itself;
// acting on a verdict is the caller's job.
type VoteService struct {
	rounds    ports.VoteRoundRepository
	publisher ports.EventPublisher
	metrics   *observability.Collector
	logger    *zap.Logger

	mode          VotingMode
	roundDuration time.Duration
	minVotes      int
}

// NewVoteService creates a vote service
func NewVoteService(
	rounds ports.VoteRoundRepository,
	publisher ports.EventPublisher,
	metrics *observability.Collector,
	logger *zap.Logger,
	mode VotingMode,
	roundDuration time.Duration,
	minVotes int,
) *VoteService {
	return &VoteService{
		rounds:        rounds,
		publisher:     publisher,
		metrics:       metrics,
		logger:        logger,
		mode:          mode,
		roundDuration: roundDuration,
		minVotes:      minVotes,
	}
}

// MinVotes returns the minimum-vote threshold in force
func (s *VoteService) MinVotes() int {
	return s.minVotes
}

// CurrentRound returns the open round, or ErrNoOpenRound
func (s *VoteService) CurrentRound(ctx context.Context) (*entities.VoteRound, error) {
	return s.rounds.OpenRound(ctx)
}

// CastVote validates and inserts one vote into the open round, then returns
// the updated tally. Uniqueness of (round, fingerprint) is enforced by the
// storage layer's atomic insert, not by a check-then-insert race.
func (s *VoteService) CastVote(
	ctx context.Context,
	fingerprint valueobjects.VoterFingerprint,
	choice valueobjects.VoteChoice,
	reason string,
) (Tally, error) {
	round, err := s.rounds.OpenRound(ctx)
	if err != nil {
		return Tally{}, err
	}

	now := time.Now()
	vote := &entities.Vote{
		RoundID:     round.ID,
		Fingerprint: fingerprint,
		Choice:      choice,
		Reason:      reason,
		CreatedAt:   now,
	}

	if err := s.rounds.InsertVote(ctx, vote); err != nil {
		if pkgerrors.IsCode(err, "DUPLICATE_VOTE") {
			s.metrics.DuplicateVotes.Inc()
			// Tally is unchanged; include it plus how long until the next
			// round opens so the rejection reads as a cooldown.
			return Tally{}, pkgerrors.NewDuplicateVoteError(
				round.LiveCount, round.DieCount, s.timeUntilNextRound(round, now))
		}
		return Tally{}, err
	}

	// Recompute from persisted votes so concurrent writers converge on the
	// same counts.
	live, die, err := s.rounds.CountVotes(ctx, round.ID)
	if err != nil {
		return Tally{}, err
	}
	round.LiveCount = live
	round.DieCount = die
	if err := s.rounds.SaveRound(ctx, round); err != nil {
		return Tally{}, err
	}

	s.metrics.VotesCast.WithLabelValues(choice.String()).Inc()
	if err := s.publisher.Publish(ctx, events.NewVoteCast(round.ID, choice.String(), live, die, now)); err != nil {
		s.logger.Warn("Failed to publish vote event", zap.Error(err))
	}

	s.logger.Info("Vote accepted",
		zap.String("roundID", round.ID),
		zap.String("choice", choice.String()),
		zap.Int("live", live),
		zap.Int("die", die),
	)

	return Tally{Live: live, Die: die, Total: live + die}, nil
}

// CloseRoundIfDue closes the open round when its window has elapsed and
// computes the verdict. No-op result when no round is open or the round is
// not yet due. Rolling mode has no clock-driven close; its round only closes
// on death or a forced reset.
func (s *VoteService) CloseRoundIfDue(ctx context.Context, now time.Time) (CloseResult, error) {
	round, err := s.rounds.OpenRound(ctx)
	if err != nil {
		if pkgerrors.IsCode(err, "NO_OPEN_ROUND") {
			return CloseResult{Closed: false}, nil
		}
		return CloseResult{}, err
	}

	if s.mode == ModeRolling || !round.IsDue(now) {
		return CloseResult{Closed: false, RoundID: round.ID, Live: round.LiveCount, Die: round.DieCount, Total: round.Total()}, nil
	}

	return s.closeRound(ctx, round, now, false)
}

// ForceCloseOpenRound closes the open round regardless of its window. Used
// by the rolling-mode verdict path and by ResetRoundsForNewLife.
func (s *VoteService) ForceCloseOpenRound(ctx context.Context, now time.Time) (CloseResult, error) {
	round, err := s.rounds.OpenRound(ctx)
	if err != nil {
		if pkgerrors.IsCode(err, "NO_OPEN_ROUND") {
			return CloseResult{Closed: false}, nil
		}
		return CloseResult{}, err
	}
	return s.closeRound(ctx, round, now, true)
}

// OpenNewRound opens a fresh round for the given life
func (s *VoteService) OpenNewRound(ctx context.Context, lifeNumber int, start time.Time) (*entities.VoteRound, error) {
	round := entities.NewVoteRound(lifeNumber, start, s.roundDuration)
	if err := s.rounds.CreateRound(ctx, round); err != nil {
		return nil, err
	}
	s.logger.Info("Opened new voting round",
		zap.String("roundID", round.ID),
		zap.Int("lifeNumber", lifeNumber),
		zap.Time("endsAt", round.EndsAt),
	)
	return round, nil
}

// ResetRoundsForNewLife force-closes any stale open round and opens a fresh
// one. Called exclusively by the born transition, so a dead life's round can
// never leak votes into the new life's tally.
func (s *VoteService) ResetRoundsForNewLife(ctx context.Context, newLifeNumber int, now time.Time) error {
	if _, err := s.ForceCloseOpenRound(ctx, now); err != nil {
		return err
	}
	_, err := s.OpenNewRound(ctx, newLifeNumber, now)
	return err
}

// TallyForDeath returns the tally to record on a death: the open round's
// counts when one exists, otherwise the most recently closed round's. The
// latter covers vote-majority deaths, where the verdict already closed the
// round before the transition handler runs; the last-closed pointer lives in
// storage, so the round may have been closed by a different process.
func (s *VoteService) TallyForDeath(ctx context.Context) Tally {
	round, err := s.rounds.OpenRound(ctx)
	if err != nil {
		if closed, lookupErr := s.rounds.LastClosedRound(ctx); lookupErr == nil && closed != nil {
			return Tally{Live: closed.LiveCount, Die: closed.DieCount, Total: closed.Total()}
		}
		return Tally{}
	}
	return Tally{Live: round.LiveCount, Die: round.DieCount, Total: round.Total()}
}

func (s *VoteService) closeRound(ctx context.Context, round *entities.VoteRound, now time.Time, forced bool) (CloseResult, error) {
	// Final recount from persisted votes before the verdict
	live, die, err := s.rounds.CountVotes(ctx, round.ID)
	if err != nil {
		return CloseResult{}, err
	}
	round.LiveCount = live
	round.DieCount = die
	round.Close()

	if err := s.rounds.SaveRound(ctx, round); err != nil {
		return CloseResult{}, err
	}

	verdict := round.Verdict(s.minVotes)
	s.metrics.RoundsClosed.WithLabelValues(verdict.String()).Inc()
	if err := s.publisher.Publish(ctx, events.NewRoundClosed(round.ID, verdict.String(), live, die, forced, now)); err != nil {
		s.logger.Warn("Failed to publish round close event", zap.Error(err))
	}

	s.logger.Info("Voting round closed",
		zap.String("roundID", round.ID),
		zap.String("verdict", verdict.String()),
		zap.Int("live", live),
		zap.Int("die", die),
		zap.Bool("forced", forced),
	)

	return CloseResult{
		Closed:  true,
		RoundID: round.ID,
		Verdict: verdict,
		Live:    live,
		Die:     die,
		Total:   live + die,
	}, nil
}

// timeUntilNextRound estimates when the duplicate voter can vote again. In
// rolling mode the round only ends with the life, so no estimate is given.
func (s *VoteService) timeUntilNextRound(round *entities.VoteRound, now time.Time) time.Duration {
	if s.mode == ModeRolling {
		return 0
	}
	return round.EndsAt.Sub(now)
}
