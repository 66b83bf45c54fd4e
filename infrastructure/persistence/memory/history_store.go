package memory

import (
	"context"
	"sort"
	"sync"

	"anima-backend/application/ports"
	"anima-backend/domain/core/entities"
	pkgerrors "anima-backend/pkg/errors"
)

// DeathStore is the in-memory DeathRecordRepository
type DeathStore struct {
	mu      sync.RWMutex
	records map[int]entities.DeathRecord
}

// NewDeathStore creates an empty in-memory death record store
func NewDeathStore() ports.DeathRecordRepository {
	return &DeathStore{records: make(map[int]entities.DeathRecord)}
}

// Append writes the record exactly once
func (s *DeathStore) Append(ctx context.Context, record *entities.DeathRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.LifeNumber]; exists {
		return pkgerrors.ErrDeathRecordExists.WithDetail("life_number", record.LifeNumber)
	}
	s.records[record.LifeNumber] = *record
	return nil
}

// Get returns the record for a life number, or nil when absent
func (s *DeathStore) Get(ctx context.Context, lifeNumber int) (*entities.DeathRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[lifeNumber]
	if !ok {
		return nil, nil
	}
	out := record
	return &out, nil
}

// MemoryStore is the in-memory MemoryFragmentRepository
type MemoryStore struct {
	mu   sync.RWMutex
	sets map[int]entities.MemoryFragmentSet
}

// NewMemoryStore creates an empty in-memory fragment store
func NewMemoryStore() ports.MemoryFragmentRepository {
	return &MemoryStore{sets: make(map[int]entities.MemoryFragmentSet)}
}

// Save persists the fragment set for a life
func (s *MemoryStore) Save(ctx context.Context, set *entities.MemoryFragmentSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[set.LifeNumber] = *set
	return nil
}

// Get returns the set for a life number, or nil when absent
func (s *MemoryStore) Get(ctx context.Context, lifeNumber int) (*entities.MemoryFragmentSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[lifeNumber]
	if !ok {
		return nil, nil
	}
	out := set
	return &out, nil
}

// DeleteBefore removes all sets with life number strictly below the bound
func (s *MemoryStore) DeleteBefore(ctx context.Context, lifeNumber int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n := range s.sets {
		if n < lifeNumber {
			delete(s.sets, n)
		}
	}
	return nil
}

// UtteranceStore is the in-memory UtteranceRepository. Tests and the dev
// runtime append utterances through Add; the governance engine only reads.
type UtteranceStore struct {
	mu         sync.RWMutex
	utterances []entities.Utterance
}

// NewUtteranceStore creates an empty in-memory utterance store
func NewUtteranceStore() *UtteranceStore {
	return &UtteranceStore{}
}

// Add appends an utterance, standing in for the runtime's writes
func (s *UtteranceStore) Add(u entities.Utterance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.utterances = append(s.utterances, u)
}

// ListBeforeLife returns utterances from lives strictly earlier than the
// given life number, newest first, up to limit.
func (s *UtteranceStore) ListBeforeLife(ctx context.Context, lifeNumber, limit int) ([]entities.Utterance, error) {
	return s.list(func(u entities.Utterance) bool { return u.LifeNumber < lifeNumber }, limit), nil
}

// ListForLife returns utterances of one life, newest first, up to limit
func (s *UtteranceStore) ListForLife(ctx context.Context, lifeNumber, limit int) ([]entities.Utterance, error) {
	return s.list(func(u entities.Utterance) bool { return u.LifeNumber == lifeNumber }, limit), nil
}

func (s *UtteranceStore) list(match func(entities.Utterance) bool, limit int) []entities.Utterance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entities.Utterance
	for _, u := range s.utterances {
		if match(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SpokenAt.After(out[j].SpokenAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
