package memory

import (
	"context"
	"sync"
	"time"

	"anima-backend/application/ports"
	"anima-backend/domain/core/entities"
	"anima-backend/domain/core/valueobjects"
	pkgerrors "anima-backend/pkg/errors"
)

// LifeStore is the in-memory LifeRepository used in development and tests.
// It reproduces the conditional-write semantics of the DynamoDB
// implementation, including version conflicts.
type LifeStore struct {
	mu   sync.RWMutex
	life *lifeSnapshot
}

// lifeSnapshot decouples stored state from the caller's entity so later
// mutations of the entity don't leak into the store.
type lifeSnapshot struct {
	number     int
	state      valueobjects.LifeState
	intention  string
	deathCause valueobjects.DeathCause
	bornAt     time.Time
	updatedAt  time.Time
	version    int
}

func snapshotLife(life *entities.Life, version int) *lifeSnapshot {
	return &lifeSnapshot{
		number:     life.Number(),
		state:      life.State(),
		intention:  life.Intention(),
		deathCause: life.DeathCause(),
		bornAt:     life.BornAt(),
		updatedAt:  life.UpdatedAt(),
		version:    version,
	}
}

func (s *lifeSnapshot) toEntity() *entities.Life {
	return entities.ReconstructLife(
		s.number, s.state, s.intention, s.deathCause, s.bornAt, s.updatedAt, s.version)
}

// NewLifeStore creates an empty in-memory life store
func NewLifeStore() ports.LifeRepository {
	return &LifeStore{}
}

// Get returns the current life, or ErrLifeNotFound before first seed
func (s *LifeStore) Get(ctx context.Context) (*entities.Life, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.life == nil {
		return nil, pkgerrors.ErrLifeNotFound
	}
	return s.life.toEntity(), nil
}

// Seed creates the first life if none exists yet
func (s *LifeStore) Seed(ctx context.Context, life *entities.Life) (*entities.Life, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.life != nil {
		return s.life.toEntity(), nil
	}
	s.life = snapshotLife(life, life.Version())
	return life, nil
}

// Save persists the life iff the stored version equals expectedVersion
func (s *LifeStore) Save(ctx context.Context, life *entities.Life, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.life == nil {
		return pkgerrors.ErrLifeNotFound
	}
	if s.life.version != expectedVersion {
		return pkgerrors.ErrConcurrentModification
	}
	s.life = snapshotLife(life, expectedVersion+1)
	life.BumpVersion()
	return nil
}
