package valueobjects

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	allStates := []LifeState{
		StateBorn, StateActive, StateCritical, StateDying, StateDead, StateRebirthPending,
	}

	allowed := map[LifeState][]LifeState{
		StateBorn:           {StateActive},
		StateActive:         {StateCritical, StateDying, StateDead},
		StateCritical:       {StateActive, StateDying, StateDead},
		StateDying:          {StateDead},
		StateDead:           {StateRebirthPending},
		StateRebirthPending: {StateBorn},
	}

	for _, from := range allStates {
		for _, to := range allStates {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestIsAlive(t *testing.T) {
	assert.True(t, StateBorn.IsAlive())
	assert.True(t, StateActive.IsAlive())
	assert.True(t, StateCritical.IsAlive())
	assert.False(t, StateDying.IsAlive())
	assert.False(t, StateDead.IsAlive())
	assert.False(t, StateRebirthPending.IsAlive())
}

func TestParseDeathCause(t *testing.T) {
	for _, valid := range []string{"bankruptcy", "vote_majority", "manual"} {
		cause, err := ParseDeathCause(valid)
		assert.NoError(t, err)
		assert.Equal(t, valid, cause.String())
	}

	for _, invalid := range []string{"timeout", "old_age", ""} {
		_, err := ParseDeathCause(invalid)
		assert.Error(t, err, "cause %q must be rejected", invalid)
	}
}
