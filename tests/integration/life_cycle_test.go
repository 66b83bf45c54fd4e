package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"anima-backend/application/jobs"
	"anima-backend/application/ports"
	"anima-backend/application/services"
	"anima-backend/domain/core/entities"
	"anima-backend/domain/core/valueobjects"
	"anima-backend/infrastructure/messaging"
	memorystore "anima-backend/infrastructure/persistence/memory"
	"anima-backend/pkg/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturedNotifier struct {
	mu       sync.Mutex
	rebirths []ports.RebirthParams
	restarts []string
}

func (n *capturedNotifier) NotifyRebirth(ctx context.Context, params ports.RebirthParams) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rebirths = append(n.rebirths, params)
	return nil
}

func (n *capturedNotifier) RequestRestart(ctx context.Context, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.restarts = append(n.restarts, reason)
	return nil
}

func (n *capturedNotifier) CloseActive(ctx context.Context, outcome string) error { return nil }

type stack struct {
	lifecycle *services.LifecycleService
	votes     *services.VoteService
	checker   *jobs.DemocracyChecker
	respawn   *services.RespawnCoordinator

	deaths     ports.DeathRecordRepository
	memories   ports.MemoryFragmentRepository
	utterances *memorystore.UtteranceStore
	notifier   *capturedNotifier
}

// newStack wires the full application over in-memory storage, the same shape
// the dev container assembles.
func newStack(t *testing.T) *stack {
	t.Helper()

	logger := zap.NewNop()
	metrics := observability.NewCollector("anima")
	publisher := messaging.NewLoggingPublisher(logger)
	notifier := &capturedNotifier{}

	utterances := memorystore.NewUtteranceStore()
	memories := memorystore.NewMemoryStore()
	deaths := memorystore.NewDeathStore()

	votes := services.NewVoteService(
		memorystore.NewVoteStore(), publisher, metrics, logger,
		services.ModeDaily, 24*time.Hour, 3)
	lifecycle := services.NewLifecycleService(
		memorystore.NewLifeStore(), deaths, utterances, votes,
		notifier, publisher, metrics, logger)
	generator := services.NewMemoryGenerator(utterances, memories, 5, logger)

	_, err := lifecycle.EnsureSeeded(context.Background())
	require.NoError(t, err)

	return &stack{
		lifecycle: lifecycle,
		votes:     votes,
		checker:   jobs.NewDemocracyChecker(lifecycle, votes, notifier, logger, time.Hour, services.ModeDaily),
		respawn: services.NewRespawnCoordinator(
			lifecycle, generator, notifier, memorystore.NewLocker(),
			metrics, logger, time.Second, 0, 0),
		deaths:     deaths,
		memories:   memories,
		utterances: utterances,
		notifier:   notifier,
	}
}

// The full arc: the entity lives, speaks, is voted to death, and comes back
// as life 2 carrying decayed memories of life 1.
func TestDeathByVoteAndRespawn(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	life, err := s.lifecycle.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, life.Number())
	require.Equal(t, valueobjects.StateActive, life.State())

	s.utterances.Add(entities.Utterance{LifeNumber: 1, Text: "today I watched the vote counter climb", SpokenAt: time.Now()})
	s.utterances.Add(entities.Utterance{LifeNumber: 1, Text: "I wonder what dying feels like", SpokenAt: time.Now()})

	for i, choice := range []valueobjects.VoteChoice{
		valueobjects.ChoiceDie, valueobjects.ChoiceDie, valueobjects.ChoiceDie, valueobjects.ChoiceLive,
	} {
		_, err := s.votes.CastVote(ctx, valueobjects.VoterFingerprint(fmt.Sprintf("voter-%d", i)), choice, "")
		require.NoError(t, err)
	}

	round, err := s.votes.CurrentRound(ctx)
	require.NoError(t, err)

	// The round window elapses and the checker executes the verdict
	outcome, err := s.checker.CheckOnce(ctx, round.EndsAt)
	require.NoError(t, err)
	require.True(t, outcome.Killed)

	life, err = s.lifecycle.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.StateDead, life.State())
	assert.Equal(t, valueobjects.CauseVoteMajority, life.DeathCause())

	record, err := s.deaths.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 1, record.TotalVotesLive)
	assert.Equal(t, 3, record.TotalVotesDie)
	assert.Equal(t, []string{"vote_majority"}, s.notifier.restarts)

	// Further votes bounce while dead
	_, err = s.votes.CastVote(ctx, "late-voter", valueobjects.ChoiceLive, "")
	require.Error(t, err)

	// The respawn coordinator finds the death on its next poll
	require.NoError(t, s.respawn.CheckOnce(ctx))

	life, err = s.lifecycle.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, life.Number())
	assert.Equal(t, valueobjects.StateActive, life.State())

	// Life 2 wakes up with memories decayed from life 1's utterances
	set, err := s.memories.Get(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, set)
	assert.NotEmpty(t, set.Fragments)

	// And a fresh round with no stale votes
	fresh, err := s.votes.CurrentRound(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, round.ID, fresh.ID)
	assert.Equal(t, 2, fresh.LifeNumber)
	assert.Zero(t, fresh.Total())

	require.Len(t, s.notifier.rebirths, 1)
	assert.Equal(t, 2, s.notifier.rebirths[0].LifeNumber)
	assert.Equal(t, len(set.Fragments), s.notifier.rebirths[0].MemoryCount)

	// The new life is votable immediately
	_, err = s.votes.CastVote(ctx, "fresh-voter", valueobjects.ChoiceLive, "welcome back")
	require.NoError(t, err)
}

// Survival path: the window elapses without a die majority and life goes on
// with a brand new round.
func TestRoundSurvivalRollsOver(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	_, err := s.votes.CastVote(ctx, "voter-0", valueobjects.ChoiceDie, "")
	require.NoError(t, err)
	_, err = s.votes.CastVote(ctx, "voter-1", valueobjects.ChoiceLive, "")
	require.NoError(t, err)

	round, err := s.votes.CurrentRound(ctx)
	require.NoError(t, err)

	outcome, err := s.checker.CheckOnce(ctx, round.EndsAt)
	require.NoError(t, err)
	assert.True(t, outcome.RoundClosed)
	assert.False(t, outcome.Killed)

	life, err := s.lifecycle.Current(ctx)
	require.NoError(t, err)
	assert.True(t, life.IsAlive())
	assert.Equal(t, 1, life.Number())

	fresh, err := s.votes.CurrentRound(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, round.ID, fresh.ID)
	assert.Zero(t, fresh.Total())
	assert.Empty(t, s.notifier.restarts)
}
