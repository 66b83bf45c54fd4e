package services

import (
	"context"
	"testing"
	"time"

	"anima-backend/domain/core/entities"
	"anima-backend/domain/core/valueobjects"
	pkgerrors "anima-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSeeded(t *testing.T) {
	env := newTestEnv(t, ModeDaily)
	ctx := context.Background()

	life, err := env.lifecycle.EnsureSeeded(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, life.Number())
	assert.Equal(t, valueobjects.StateActive, life.State())

	// A voting round opens alongside the first life
	round, err := env.votes.CurrentRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, round.LifeNumber)

	// Idempotent
	again, err := env.lifecycle.EnsureSeeded(ctx)
	require.NoError(t, err)
	assert.Equal(t, life.Number(), again.Number())
}

func TestTransition_RejectsIllegalMove(t *testing.T) {
	env := newTestEnv(t, ModeDaily)
	env.seed(t)

	_, err := env.lifecycle.Transition(context.Background(), valueobjects.StateBorn, "", "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, "INVALID_TRANSITION"))
}

func TestTransition_DeathWritesRecordOnce(t *testing.T) {
	env := newTestEnv(t, ModeDaily)
	env.seed(t)
	ctx := context.Background()

	_, err := env.votes.CastVote(ctx, "voter-a", valueobjects.ChoiceDie, "")
	require.NoError(t, err)
	_, err = env.votes.CastVote(ctx, "voter-b", valueobjects.ChoiceLive, "")
	require.NoError(t, err)

	env.utterances.Add(entities.Utterance{LifeNumber: 1, Text: "i had a good run", SpokenAt: time.Now()})

	_, err = env.lifecycle.Transition(ctx, valueobjects.StateDying, "", "")
	require.NoError(t, err)
	life, err := env.lifecycle.Transition(ctx, valueobjects.StateDead, valueobjects.CauseBankruptcy, "")
	require.NoError(t, err)
	assert.Equal(t, valueobjects.StateDead, life.State())

	record, err := env.deaths.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, valueobjects.CauseBankruptcy, record.Cause)
	assert.Equal(t, 1, record.TotalVotesLive)
	assert.Equal(t, 1, record.TotalVotesDie)
	assert.Contains(t, record.Summary, "i had a good run")

	assert.Equal(t, []string{"life_ended"}, env.intentions.outcomes)
}

func TestTransition_BornResetsRounds(t *testing.T) {
	env := newTestEnv(t, ModeDaily)
	env.seed(t)
	ctx := context.Background()

	_, err := env.votes.CastVote(ctx, "voter-a", valueobjects.ChoiceDie, "")
	require.NoError(t, err)

	_, err = env.lifecycle.Transition(ctx, valueobjects.StateDead, valueobjects.CauseManual, "")
	require.NoError(t, err)
	_, err = env.lifecycle.Transition(ctx, valueobjects.StateRebirthPending, "", "")
	require.NoError(t, err)
	life, err := env.lifecycle.Transition(ctx, valueobjects.StateBorn, "", "")
	require.NoError(t, err)

	assert.Equal(t, 2, life.Number())

	round, err := env.votes.CurrentRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, round.LifeNumber)
	assert.Zero(t, round.Total())
}

func TestTransition_LostRaceReportsStoredState(t *testing.T) {
	env := newTestEnv(t, ModeDaily)
	env.seed(t)
	ctx := context.Background()

	// Another writer bumps the version behind the service's back
	life, err := env.lives.Get(ctx)
	require.NoError(t, err)
	require.NoError(t, env.lives.Save(ctx, life, life.Version()))

	// The service still sees the old version through its own read, so its
	// conditional write must lose and surface a clean rejection.
	stale, err := env.lives.Get(ctx)
	require.NoError(t, err)
	err = env.lives.Save(ctx, stale, stale.Version()-1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, "CONCURRENT_MODIFICATION"))
}

func TestTransition_SetsIntention(t *testing.T) {
	env := newTestEnv(t, ModeDaily)
	env.seed(t)

	life, err := env.lifecycle.Transition(
		context.Background(), valueobjects.StateCritical, "", "conserve energy")
	require.NoError(t, err)
	assert.Equal(t, "conserve energy", life.Intention())
	assert.Equal(t, valueobjects.StateCritical, life.State())
}
