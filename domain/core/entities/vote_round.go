package entities

import (
	"time"

	"anima-backend/domain/core/valueobjects"

	"github.com/google/uuid"
)

// RoundStatus is the lifecycle of a voting round
type RoundStatus string

const (
	RoundOpen   RoundStatus = "open"
	RoundClosed RoundStatus = "closed"
)

// VoteRound is a bounded time window during which votes accumulate toward
// one verdict. At most one round is open at any time; the repository
// enforces that with its open-round marker.
type VoteRound struct {
	ID         string
	LifeNumber int
	StartsAt   time.Time
	EndsAt     time.Time
	LiveCount  int
	DieCount   int
	Status     RoundStatus
}

// NewVoteRound opens a fresh round for the given life spanning the fixed
// round duration.
func NewVoteRound(lifeNumber int, start time.Time, duration time.Duration) *VoteRound {
	return &VoteRound{
		ID:         uuid.New().String(),
		LifeNumber: lifeNumber,
		StartsAt:   start,
		EndsAt:     start.Add(duration),
		Status:     RoundOpen,
	}
}

// Total returns the number of votes cast in the round
func (r *VoteRound) Total() int {
	return r.LiveCount + r.DieCount
}

// IsDue reports whether the round's window has elapsed
func (r *VoteRound) IsDue(now time.Time) bool {
	return !now.Before(r.EndsAt)
}

// Verdict computes the round's outcome under the given minimum-vote
// threshold.
func (r *VoteRound) Verdict(minVotes int) valueobjects.Verdict {
	return valueobjects.Adjudicate(r.LiveCount, r.DieCount, minVotes)
}

// Close marks the round closed. Counts are left as last recomputed from the
// persisted votes.
func (r *VoteRound) Close() {
	r.Status = RoundClosed
}

// Vote is a single voter's choice within a round. The (RoundID, Fingerprint)
// pair is unique; duplicates are rejected atomically at the storage layer.
type Vote struct {
	RoundID     string
	Fingerprint valueobjects.VoterFingerprint
	Choice      valueobjects.VoteChoice
	Reason      string
	CreatedAt   time.Time
}
