package ports

import (
	"context"

	"anima-backend/domain/core/entities"
)

// LifeRepository owns the singleton life record. Save is a conditional write
// on the expected version; a lost race returns ErrConcurrentModification so
// the caller can re-read and reject cleanly.
type LifeRepository interface {
	// Get returns the current life, or ErrLifeNotFound before first seed
	Get(ctx context.Context) (*entities.Life, error)

	// Seed creates the first life if none exists yet. Idempotent: when a
	// life already exists it returns the existing one untouched.
	Seed(ctx context.Context, life *entities.Life) (*entities.Life, error)

	// Save persists the life iff the stored version equals expectedVersion,
	// then bumps the entity's version.
	Save(ctx context.Context, life *entities.Life, expectedVersion int) error
}

// VoteRoundRepository owns rounds and votes. InsertVote must enforce the
// (round, fingerprint) uniqueness atomically at the storage layer.
type VoteRoundRepository interface {
	// OpenRound returns the single open round, or ErrNoOpenRound
	OpenRound(ctx context.Context) (*entities.VoteRound, error)

	// GetRound returns a round by ID, or ErrRoundNotFound
	GetRound(ctx context.Context, id string) (*entities.VoteRound, error)

	// LastClosedRound returns the most recently closed round, or nil when
	// no round has closed yet. The pointer is persisted so it survives
	// process boundaries.
	LastClosedRound(ctx context.Context) (*entities.VoteRound, error)

	// CreateRound persists a new round and marks it as the open one
	CreateRound(ctx context.Context, round *entities.VoteRound) error

	// SaveRound persists round counts and status; closing a round clears
	// the open marker.
	SaveRound(ctx context.Context, round *entities.VoteRound) error

	// InsertVote inserts atomically, returning ErrDuplicateVote when the
	// (round, fingerprint) pair already exists.
	InsertVote(ctx context.Context, vote *entities.Vote) error

	// CountVotes recomputes the tally from the persisted votes
	CountVotes(ctx context.Context, roundID string) (live, die int, err error)
}

// DeathRecordRepository is the append-only history of completed lives
type DeathRecordRepository interface {
	// Append writes the record exactly once; a second write for the same
	// life number returns ErrDeathRecordExists.
	Append(ctx context.Context, record *entities.DeathRecord) error

	// Get returns the record for a life number, or nil when absent
	Get(ctx context.Context, lifeNumber int) (*entities.DeathRecord, error)
}

// MemoryFragmentRepository owns the rolling window of memory fragment sets
type MemoryFragmentRepository interface {
	Save(ctx context.Context, set *entities.MemoryFragmentSet) error

	// Get returns the set for a life number, or nil when absent
	Get(ctx context.Context, lifeNumber int) (*entities.MemoryFragmentSet, error)

	// DeleteBefore removes all sets with life number strictly below the
	// given bound.
	DeleteBefore(ctx context.Context, lifeNumber int) error
}

// UtteranceRepository reads the runtime's public utterances. The governance
// engine never writes utterances.
type UtteranceRepository interface {
	// ListBeforeLife returns utterances from lives strictly earlier than
	// the given life number, newest first, up to limit.
	ListBeforeLife(ctx context.Context, lifeNumber, limit int) ([]entities.Utterance, error)

	// ListForLife returns utterances of one life, newest first, up to limit
	ListForLife(ctx context.Context, lifeNumber, limit int) ([]entities.Utterance, error)
}
