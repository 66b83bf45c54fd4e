package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"anima-backend/application/ports"
	"anima-backend/infrastructure/messaging"
	memorystore "anima-backend/infrastructure/persistence/memory"
	"anima-backend/pkg/observability"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubNotifier records runtime notifications and can fail on demand
type stubNotifier struct {
	mu          sync.Mutex
	rebirths    []ports.RebirthParams
	restarts    []string
	failRebirth int
}

func (s *stubNotifier) NotifyRebirth(ctx context.Context, params ports.RebirthParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRebirth > 0 {
		s.failRebirth--
		return context.DeadlineExceeded
	}
	s.rebirths = append(s.rebirths, params)
	return nil
}

func (s *stubNotifier) RequestRestart(ctx context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restarts = append(s.restarts, reason)
	return nil
}

func (s *stubNotifier) rebirthCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rebirths)
}

// stubIntentions records intention closes
type stubIntentions struct {
	mu       sync.Mutex
	outcomes []string
}

func (s *stubIntentions) CloseActive(ctx context.Context, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
	return nil
}

// testEnv wires the services over the in-memory stores
type testEnv struct {
	lives      ports.LifeRepository
	rounds     ports.VoteRoundRepository
	deaths     ports.DeathRecordRepository
	memories   ports.MemoryFragmentRepository
	utterances *memorystore.UtteranceStore
	locker     ports.ResourceLocker
	notifier   *stubNotifier
	intentions *stubIntentions

	votes     *VoteService
	lifecycle *LifecycleService
	generator *MemoryGenerator
}

func newTestEnv(t *testing.T, mode VotingMode) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	metrics := observability.NewCollector("anima")
	publisher := messaging.NewLoggingPublisher(logger)

	env := &testEnv{
		lives:      memorystore.NewLifeStore(),
		rounds:     memorystore.NewVoteStore(),
		deaths:     memorystore.NewDeathStore(),
		memories:   memorystore.NewMemoryStore(),
		utterances: memorystore.NewUtteranceStore(),
		locker:     memorystore.NewLocker(),
		notifier:   &stubNotifier{},
		intentions: &stubIntentions{},
	}

	env.votes = NewVoteService(env.rounds, publisher, metrics, logger, mode, 24*time.Hour, 3)
	env.lifecycle = NewLifecycleService(
		env.lives, env.deaths, env.utterances, env.votes, env.intentions, publisher, metrics, logger)
	env.generator = NewMemoryGenerator(env.utterances, env.memories, 5, logger)

	return env
}

func (env *testEnv) seed(t *testing.T) {
	t.Helper()
	_, err := env.lifecycle.EnsureSeeded(context.Background())
	require.NoError(t, err)
}

func (env *testEnv) respawner(t *testing.T) *RespawnCoordinator {
	t.Helper()
	return NewRespawnCoordinator(
		env.lifecycle,
		env.generator,
		env.notifier,
		env.locker,
		observability.NewCollector("anima"),
		zap.NewNop(),
		time.Millisecond,
		0, 0, // immediate respawn in tests
	)
}
