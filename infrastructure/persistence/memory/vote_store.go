package memory

import (
	"context"
	"sync"

	"anima-backend/application/ports"
	"anima-backend/domain/core/entities"
	"anima-backend/domain/core/valueobjects"
	pkgerrors "anima-backend/pkg/errors"
)

// VoteStore is the in-memory VoteRoundRepository. Rounds and votes live in
// maps; the openID and lastClosedID fields play the role of the open-round
// and last-closed marker items.
type VoteStore struct {
	mu           sync.RWMutex
	rounds       map[string]entities.VoteRound
	votes        map[string]map[valueobjects.VoterFingerprint]entities.Vote
	openID       string
	lastClosedID string
}

// NewVoteStore creates an empty in-memory vote store
func NewVoteStore() ports.VoteRoundRepository {
	return &VoteStore{
		rounds: make(map[string]entities.VoteRound),
		votes:  make(map[string]map[valueobjects.VoterFingerprint]entities.Vote),
	}
}

// OpenRound returns the single open round, or ErrNoOpenRound
func (s *VoteStore) OpenRound(ctx context.Context) (*entities.VoteRound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.openID == "" {
		return nil, pkgerrors.ErrNoOpenRound
	}
	round, ok := s.rounds[s.openID]
	if !ok || round.Status != entities.RoundOpen {
		return nil, pkgerrors.ErrNoOpenRound
	}
	out := round
	return &out, nil
}

// GetRound returns a round by ID, or ErrRoundNotFound
func (s *VoteStore) GetRound(ctx context.Context, id string) (*entities.VoteRound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	round, ok := s.rounds[id]
	if !ok {
		return nil, pkgerrors.ErrRoundNotFound.WithDetail("round_id", id)
	}
	out := round
	return &out, nil
}

// CreateRound persists a new round and marks it as the open one
func (s *VoteStore) CreateRound(ctx context.Context, round *entities.VoteRound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds[round.ID] = *round
	s.votes[round.ID] = make(map[valueobjects.VoterFingerprint]entities.Vote)
	s.openID = round.ID
	return nil
}

// SaveRound persists round counts and status
func (s *VoteStore) SaveRound(ctx context.Context, round *entities.VoteRound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds[round.ID] = *round
	if round.Status == entities.RoundClosed {
		s.lastClosedID = round.ID
		if s.openID == round.ID {
			s.openID = ""
		}
	}
	return nil
}

// LastClosedRound returns the most recently closed round, or nil
func (s *VoteStore) LastClosedRound(ctx context.Context) (*entities.VoteRound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastClosedID == "" {
		return nil, nil
	}
	round, ok := s.rounds[s.lastClosedID]
	if !ok {
		return nil, nil
	}
	out := round
	return &out, nil
}

// InsertVote inserts atomically, rejecting duplicate fingerprints
func (s *VoteStore) InsertVote(ctx context.Context, vote *entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	roundVotes, ok := s.votes[vote.RoundID]
	if !ok {
		return pkgerrors.ErrRoundNotFound.WithDetail("round_id", vote.RoundID)
	}
	if _, exists := roundVotes[vote.Fingerprint]; exists {
		return pkgerrors.ErrDuplicateVote
	}
	roundVotes[vote.Fingerprint] = *vote
	return nil
}

// CountVotes recomputes the tally from the stored votes
func (s *VoteStore) CountVotes(ctx context.Context, roundID string) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	live, die := 0, 0
	for _, vote := range s.votes[roundID] {
		switch vote.Choice {
		case valueobjects.ChoiceLive:
			live++
		case valueobjects.ChoiceDie:
			die++
		}
	}
	return live, die, nil
}
