package services

import (
	"context"
	"testing"
	"time"

	"anima-backend/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespawnCheckOnce_NoOpWhileAlive(t *testing.T) {
	env := newTestEnv(t, ModeDaily)
	env.seed(t)

	coordinator := env.respawner(t)
	require.NoError(t, coordinator.CheckOnce(context.Background()))

	life, err := env.lifecycle.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, life.Number())
	assert.Zero(t, env.notifier.rebirthCount())
}

func TestRespawnCheckOnce_RevivesDeadEntity(t *testing.T) {
	env := newTestEnv(t, ModeDaily)
	env.seed(t)
	ctx := context.Background()

	_, err := env.lifecycle.Transition(ctx, valueobjects.StateDead, valueobjects.CauseBankruptcy, "")
	require.NoError(t, err)

	coordinator := env.respawner(t)
	require.NoError(t, coordinator.CheckOnce(ctx))

	life, err := env.lifecycle.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, life.Number(), "rebirth increments the life number")
	assert.Equal(t, valueobjects.StateActive, life.State())

	// New life wakes up with memories and a fresh round
	set, err := env.memories.Get(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, set)
	assert.NotEmpty(t, set.Fragments)

	round, err := env.votes.CurrentRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, round.LifeNumber)

	require.Equal(t, 1, env.notifier.rebirthCount())
	assert.Equal(t, 2, env.notifier.rebirths[0].LifeNumber)
	assert.Equal(t, len(set.Fragments), env.notifier.rebirths[0].MemoryCount)
}

func TestRespawnCheckOnce_NotificationFailureDoesNotRollBack(t *testing.T) {
	env := newTestEnv(t, ModeDaily)
	env.seed(t)
	ctx := context.Background()

	_, err := env.lifecycle.Transition(ctx, valueobjects.StateDead, valueobjects.CauseManual, "")
	require.NoError(t, err)

	// Fail every notification attempt; shrink the backoff so the test
	// doesn't wait out real retry delays.
	env.notifier.failRebirth = notifyAttempts
	savedBackoff := notifyBackoff
	notifyBackoff = []time.Duration{0, 0}
	defer func() { notifyBackoff = savedBackoff }()

	coordinator := env.respawner(t)
	require.NoError(t, coordinator.CheckOnce(ctx))

	life, err := env.lifecycle.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, life.Number())
	assert.Equal(t, valueobjects.StateActive, life.State(),
		"lifecycle state must survive notification failure")
	assert.Zero(t, env.notifier.rebirthCount())
}

func TestRespawnCheckOnce_LeaseHeldElsewhere(t *testing.T) {
	env := newTestEnv(t, ModeDaily)
	env.seed(t)
	ctx := context.Background()

	_, err := env.lifecycle.Transition(ctx, valueobjects.StateDead, valueobjects.CauseManual, "")
	require.NoError(t, err)

	// Another replica holds the lease, so this pass must stand down
	_, err = env.locker.Acquire(ctx, "respawn", "other-replica", time.Minute)
	require.NoError(t, err)

	coordinator := env.respawner(t)
	require.NoError(t, coordinator.CheckOnce(ctx))

	life, err := env.lifecycle.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.StateDead, life.State())
	assert.Equal(t, 1, life.Number())
}

func TestDrawDelay_WithinBounds(t *testing.T) {
	env := newTestEnv(t, ModeDaily)
	coordinator := NewRespawnCoordinator(
		env.lifecycle, env.generator, env.notifier, env.locker,
		nil, nil, time.Second, 2*time.Second, 10*time.Second)
	// Metrics and logger are unused by drawDelay
	for i := 0; i < 100; i++ {
		delay := coordinator.drawDelay()
		assert.GreaterOrEqual(t, delay, 2*time.Second)
		assert.Less(t, delay, 10*time.Second)
	}
}
