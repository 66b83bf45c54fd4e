package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"anima-backend/application/ports"
	"anima-backend/application/services"
	"anima-backend/domain/core/valueobjects"
	"anima-backend/infrastructure/messaging"
	memorystore "anima-backend/infrastructure/persistence/memory"
	"anima-backend/pkg/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu       sync.Mutex
	restarts []string
}

func (n *recordingNotifier) NotifyRebirth(ctx context.Context, params ports.RebirthParams) error {
	return nil
}

func (n *recordingNotifier) RequestRestart(ctx context.Context, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.restarts = append(n.restarts, reason)
	return nil
}

type checkerEnv struct {
	checker   *DemocracyChecker
	lifecycle *services.LifecycleService
	votes     *services.VoteService
	deaths    ports.DeathRecordRepository
	notifier  *recordingNotifier
}

func newCheckerEnv(t *testing.T, mode services.VotingMode) *checkerEnv {
	t.Helper()

	logger := zap.NewNop()
	metrics := observability.NewCollector("anima")
	publisher := messaging.NewLoggingPublisher(logger)

	rounds := memorystore.NewVoteStore()
	deaths := memorystore.NewDeathStore()
	utterances := memorystore.NewUtteranceStore()
	notifier := &recordingNotifier{}

	votes := services.NewVoteService(rounds, publisher, metrics, logger, mode, 24*time.Hour, 3)
	lifecycle := services.NewLifecycleService(
		memorystore.NewLifeStore(), deaths, utterances, votes,
		&noopIntentions{}, publisher, metrics, logger)

	_, err := lifecycle.EnsureSeeded(context.Background())
	require.NoError(t, err)

	return &checkerEnv{
		checker:   NewDemocracyChecker(lifecycle, votes, notifier, logger, time.Hour, mode),
		lifecycle: lifecycle,
		votes:     votes,
		deaths:    deaths,
		notifier:  notifier,
	}
}

type noopIntentions struct{}

func (noopIntentions) CloseActive(ctx context.Context, outcome string) error { return nil }

func (env *checkerEnv) cast(t *testing.T, fingerprint string, choice valueobjects.VoteChoice) {
	t.Helper()
	_, err := env.votes.CastVote(context.Background(), valueobjects.VoterFingerprint(fingerprint), choice, "")
	require.NoError(t, err)
}

func TestCheckOnce_DailyDieVerdictKillsEntity(t *testing.T) {
	env := newCheckerEnv(t, services.ModeDaily)
	ctx := context.Background()

	env.cast(t, "a", valueobjects.ChoiceDie)
	env.cast(t, "b", valueobjects.ChoiceDie)
	env.cast(t, "c", valueobjects.ChoiceDie)
	env.cast(t, "d", valueobjects.ChoiceLive)

	round, err := env.votes.CurrentRound(ctx)
	require.NoError(t, err)

	outcome, err := env.checker.CheckOnce(ctx, round.EndsAt)
	require.NoError(t, err)
	assert.True(t, outcome.RoundClosed)
	assert.True(t, outcome.Killed)
	assert.Equal(t, "die", outcome.Verdict)

	life, err := env.lifecycle.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.StateDead, life.State())
	assert.Equal(t, valueobjects.CauseVoteMajority, life.DeathCause())

	record, err := env.deaths.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, valueobjects.CauseVoteMajority, record.Cause)
	assert.Equal(t, 1, record.TotalVotesLive)
	assert.Equal(t, 3, record.TotalVotesDie)

	assert.Equal(t, []string{"vote_majority"}, env.notifier.restarts)
}

func TestCheckOnce_DailySurvivalOpensFreshRound(t *testing.T) {
	env := newCheckerEnv(t, services.ModeDaily)
	ctx := context.Background()

	env.cast(t, "a", valueobjects.ChoiceLive)
	env.cast(t, "b", valueobjects.ChoiceLive)
	env.cast(t, "c", valueobjects.ChoiceDie)

	old, err := env.votes.CurrentRound(ctx)
	require.NoError(t, err)

	outcome, err := env.checker.CheckOnce(ctx, old.EndsAt)
	require.NoError(t, err)
	assert.True(t, outcome.RoundClosed)
	assert.False(t, outcome.Killed)
	assert.Equal(t, "live", outcome.Verdict)

	life, err := env.lifecycle.Current(ctx)
	require.NoError(t, err)
	assert.True(t, life.IsAlive())

	fresh, err := env.votes.CurrentRound(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, fresh.ID)
	assert.Zero(t, fresh.Total())
}

func TestCheckOnce_DailyRoundStillOpen(t *testing.T) {
	env := newCheckerEnv(t, services.ModeDaily)
	ctx := context.Background()

	env.cast(t, "a", valueobjects.ChoiceDie)

	round, err := env.votes.CurrentRound(ctx)
	require.NoError(t, err)

	outcome, err := env.checker.CheckOnce(ctx, round.StartsAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, outcome.RoundClosed)
	assert.False(t, outcome.Killed)

	life, err := env.lifecycle.Current(ctx)
	require.NoError(t, err)
	assert.True(t, life.IsAlive())
}

func TestCheckOnce_DailyReopensMissingRound(t *testing.T) {
	env := newCheckerEnv(t, services.ModeDaily)
	ctx := context.Background()

	// A forced close elsewhere leaves a living entity with no round
	_, err := env.votes.ForceCloseOpenRound(ctx, time.Now())
	require.NoError(t, err)
	_, err = env.votes.CurrentRound(ctx)
	require.Error(t, err)

	outcome, err := env.checker.CheckOnce(ctx, time.Now())
	require.NoError(t, err)
	assert.True(t, outcome.Skipped)

	round, err := env.votes.CurrentRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, round.LifeNumber)
	assert.Zero(t, round.Total())

	// The reopened round is a normal one on the next pass
	next, err := env.checker.CheckOnce(ctx, time.Now())
	require.NoError(t, err)
	assert.False(t, next.Skipped)
	assert.False(t, next.RoundClosed)
}

func TestCheckOnce_RollingUnderThresholdSurvives(t *testing.T) {
	env := newCheckerEnv(t, services.ModeRolling)
	ctx := context.Background()

	env.cast(t, "a", valueobjects.ChoiceDie)
	env.cast(t, "b", valueobjects.ChoiceDie)

	outcome, err := env.checker.CheckOnce(ctx, time.Now())
	require.NoError(t, err)
	assert.False(t, outcome.Killed)
	assert.Equal(t, "live", outcome.Verdict)

	life, err := env.lifecycle.Current(ctx)
	require.NoError(t, err)
	assert.True(t, life.IsAlive())
}

func TestCheckOnce_RollingDieMajorityKills(t *testing.T) {
	env := newCheckerEnv(t, services.ModeRolling)
	ctx := context.Background()

	env.cast(t, "a", valueobjects.ChoiceDie)
	env.cast(t, "b", valueobjects.ChoiceDie)
	env.cast(t, "c", valueobjects.ChoiceDie)

	outcome, err := env.checker.CheckOnce(ctx, time.Now())
	require.NoError(t, err)
	assert.True(t, outcome.Killed)

	life, err := env.lifecycle.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.StateDead, life.State())
	assert.Equal(t, valueobjects.CauseVoteMajority, life.DeathCause())
}

func TestCheckOnce_SkipsWhileDead(t *testing.T) {
	env := newCheckerEnv(t, services.ModeDaily)
	ctx := context.Background()

	_, err := env.lifecycle.Transition(ctx, valueobjects.StateDead, valueobjects.CauseManual, "")
	require.NoError(t, err)

	outcome, err := env.checker.CheckOnce(ctx, time.Now())
	require.NoError(t, err)
	assert.True(t, outcome.Skipped)
	assert.Empty(t, env.notifier.restarts)
}
