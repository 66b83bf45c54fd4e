package entities

import (
	"testing"
	"time"

	"anima-backend/domain/core/valueobjects"
	"anima-backend/domain/events"
	pkgerrors "anima-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFirstLife(t *testing.T) {
	now := time.Now()
	life := NewFirstLife(now)

	assert.Equal(t, 1, life.Number())
	assert.Equal(t, valueobjects.StateActive, life.State())
	assert.True(t, life.IsAlive())
	assert.Equal(t, 1, life.Version())
}

func TestTransitionTo_RejectsIllegalMoves(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		from valueobjects.LifeState
		to   valueobjects.LifeState
	}{
		{name: "dead cannot go active", from: valueobjects.StateDead, to: valueobjects.StateActive},
		{name: "active cannot go born", from: valueobjects.StateActive, to: valueobjects.StateBorn},
		{name: "dying cannot recover", from: valueobjects.StateDying, to: valueobjects.StateActive},
		{name: "dead cannot skip to born", from: valueobjects.StateDead, to: valueobjects.StateBorn},
		{name: "born cannot die directly", from: valueobjects.StateBorn, to: valueobjects.StateDead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			life := ReconstructLife(1, tt.from, "", "", now, now, 1)
			err := life.TransitionTo(tt.to, "", now)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, "INVALID_TRANSITION"))
			assert.Equal(t, tt.from, life.State(), "state must not change on rejection")
		})
	}
}

func TestTransitionTo_DeadRequiresValidCause(t *testing.T) {
	now := time.Now()

	life := ReconstructLife(1, valueobjects.StateActive, "", "", now, now, 1)
	err := life.TransitionTo(valueobjects.StateDead, "timeout", now)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, "UNSUPPORTED_DEATH_CAUSE"))
	assert.Equal(t, valueobjects.StateActive, life.State())

	err = life.TransitionTo(valueobjects.StateDead, valueobjects.CauseBankruptcy, now)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.StateDead, life.State())
	assert.Equal(t, valueobjects.CauseBankruptcy, life.DeathCause())
}

func TestTransitionTo_RebirthIncrementsLifeNumber(t *testing.T) {
	now := time.Now()
	life := ReconstructLife(3, valueobjects.StateDead, "old intention", valueobjects.CauseVoteMajority, now.Add(-time.Hour), now, 7)

	require.NoError(t, life.TransitionTo(valueobjects.StateRebirthPending, "", now))
	require.NoError(t, life.TransitionTo(valueobjects.StateBorn, "", now.Add(time.Minute)))

	assert.Equal(t, 4, life.Number(), "born increments the life number by exactly one")
	assert.Equal(t, valueobjects.StateBorn, life.State())
	assert.Empty(t, life.Intention(), "intention resets on rebirth")
	assert.Empty(t, life.DeathCause().String(), "death cause resets on rebirth")
	assert.Equal(t, now.Add(time.Minute), life.BornAt())
}

func TestTransitionTo_RaisesEvents(t *testing.T) {
	now := time.Now()
	life := ReconstructLife(1, valueobjects.StateActive, "", "", now, now, 1)

	require.NoError(t, life.TransitionTo(valueobjects.StateDying, "", now))
	require.NoError(t, life.TransitionTo(valueobjects.StateDead, valueobjects.CauseVoteMajority, now))

	raised := life.Events()
	types := make([]string, 0, len(raised))
	for _, e := range raised {
		types = append(types, e.GetEventType())
	}
	assert.Equal(t, []string{"life.transitioned", "life.transitioned", "life.died"}, types)

	died, ok := raised[2].(events.LifeDied)
	require.True(t, ok)
	assert.Equal(t, "vote_majority", died.Cause)

	life.ClearEvents()
	assert.Empty(t, life.Events())
}

func TestTransitionTo_CriticalRecovery(t *testing.T) {
	now := time.Now()
	life := ReconstructLife(1, valueobjects.StateActive, "", "", now, now, 1)

	require.NoError(t, life.TransitionTo(valueobjects.StateCritical, "", now))
	require.NoError(t, life.TransitionTo(valueobjects.StateActive, "", now))
	assert.Equal(t, valueobjects.StateActive, life.State())
	assert.Equal(t, 1, life.Number())
}
