package services

import (
	"context"
	"testing"
	"time"

	"anima-backend/domain/core/valueobjects"
	"anima-backend/infrastructure/messaging"
	pkgerrors "anima-backend/pkg/errors"
	"anima-backend/pkg/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCastVote_AcceptsAndTallies(t *testing.T) {
	env := newTestEnv(t, ModeDaily)
	env.seed(t)
	ctx := context.Background()

	tally, err := env.votes.CastVote(ctx, "voter-a", valueobjects.ChoiceLive, "seems nice")
	require.NoError(t, err)
	assert.Equal(t, Tally{Live: 1, Die: 0, Total: 1}, tally)

	tally, err = env.votes.CastVote(ctx, "voter-b", valueobjects.ChoiceDie, "")
	require.NoError(t, err)
	assert.Equal(t, Tally{Live: 1, Die: 1, Total: 2}, tally)
}

func TestCastVote_RejectsDuplicateWithUnchangedTally(t *testing.T) {
	env := newTestEnv(t, ModeDaily)
	env.seed(t)
	ctx := context.Background()

	_, err := env.votes.CastVote(ctx, "voter-a", valueobjects.ChoiceLive, "")
	require.NoError(t, err)

	// Same fingerprint, opposite choice: rejected, tally untouched
	_, err = env.votes.CastVote(ctx, "voter-a", valueobjects.ChoiceDie, "changed my mind")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, "DUPLICATE_VOTE"))

	de := pkgerrors.GetDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, 1, de.Details["live"])
	assert.Equal(t, 0, de.Details["die"])
	assert.Contains(t, de.Details, "next_round_in")

	round, err := env.votes.CurrentRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, round.Total())
}

func TestCastVote_NoOpenRound(t *testing.T) {
	env := newTestEnv(t, ModeDaily)

	_, err := env.votes.CastVote(context.Background(), "voter-a", valueobjects.ChoiceLive, "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, "NO_OPEN_ROUND"))
}

func TestCloseRoundIfDue(t *testing.T) {
	env := newTestEnv(t, ModeDaily)
	env.seed(t)
	ctx := context.Background()

	for i, choice := range []valueobjects.VoteChoice{
		valueobjects.ChoiceDie, valueobjects.ChoiceDie, valueobjects.ChoiceLive,
	} {
		_, err := env.votes.CastVote(ctx, valueobjects.VoterFingerprint(string(rune('a'+i))), choice, "")
		require.NoError(t, err)
	}

	round, err := env.votes.CurrentRound(ctx)
	require.NoError(t, err)

	// Still inside the window: no close
	result, err := env.votes.CloseRoundIfDue(ctx, round.StartsAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, result.Closed)

	// Window elapsed: verdict die (2 > 1, total meets threshold 3)
	result, err = env.votes.CloseRoundIfDue(ctx, round.EndsAt)
	require.NoError(t, err)
	assert.True(t, result.Closed)
	assert.Equal(t, valueobjects.VerdictDie, result.Verdict)
	assert.Equal(t, 1, result.Live)
	assert.Equal(t, 2, result.Die)

	_, err = env.votes.CurrentRound(ctx)
	assert.True(t, pkgerrors.IsCode(err, "NO_OPEN_ROUND"))
}

func TestCloseRoundIfDue_RollingModeNeverDueByClock(t *testing.T) {
	env := newTestEnv(t, ModeRolling)
	env.seed(t)
	ctx := context.Background()

	round, err := env.votes.CurrentRound(ctx)
	require.NoError(t, err)

	result, err := env.votes.CloseRoundIfDue(ctx, round.EndsAt.Add(48*time.Hour))
	require.NoError(t, err)
	assert.False(t, result.Closed)
}

func TestTallyForDeath_SurvivesProcessBoundary(t *testing.T) {
	env := newTestEnv(t, ModeDaily)
	env.seed(t)
	ctx := context.Background()

	for i, choice := range []valueobjects.VoteChoice{
		valueobjects.ChoiceDie, valueobjects.ChoiceDie, valueobjects.ChoiceLive,
	} {
		_, err := env.votes.CastVote(ctx, valueobjects.VoterFingerprint(string(rune('a'+i))), choice, "")
		require.NoError(t, err)
	}

	round, err := env.votes.CurrentRound(ctx)
	require.NoError(t, err)
	result, err := env.votes.CloseRoundIfDue(ctx, round.EndsAt)
	require.NoError(t, err)
	require.True(t, result.Closed)

	// A separate service instance over the same storage, as when the round
	// is closed by the one-shot checker and the death lands in the API
	// process, still sees the deciding tally.
	other := NewVoteService(
		env.rounds, messaging.NewLoggingPublisher(zap.NewNop()),
		observability.NewCollector("anima"), zap.NewNop(), ModeDaily, 24*time.Hour, 3)
	tally := other.TallyForDeath(ctx)
	assert.Equal(t, Tally{Live: 1, Die: 2, Total: 3}, tally)
}

func TestResetRoundsForNewLife(t *testing.T) {
	env := newTestEnv(t, ModeDaily)
	env.seed(t)
	ctx := context.Background()

	_, err := env.votes.CastVote(ctx, "voter-a", valueobjects.ChoiceDie, "")
	require.NoError(t, err)
	old, err := env.votes.CurrentRound(ctx)
	require.NoError(t, err)

	require.NoError(t, env.votes.ResetRoundsForNewLife(ctx, 2, time.Now()))

	fresh, err := env.votes.CurrentRound(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, fresh.ID)
	assert.Equal(t, 2, fresh.LifeNumber)
	assert.Zero(t, fresh.Total(), "stale votes must not leak into the new life")

	closed, err := env.votes.CurrentRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, closed.ID)
}
