package valueobjects

import (
	pkgerrors "anima-backend/pkg/errors"
)

// DeathCause is the closed enumeration of reasons a life may end
type DeathCause string

const (
	// CauseBankruptcy: the budget collaborator exhausted the entity's resources
	CauseBankruptcy DeathCause = "bankruptcy"

	// CauseVoteMajority: a closed round's verdict went against the entity
	CauseVoteMajority DeathCause = "vote_majority"

	// CauseManual: an authenticated operator ended the life
	CauseManual DeathCause = "manual"
)

// ParseDeathCause parses a wire string into a DeathCause. Anything outside
// the closed set is rejected, including the empty string.
func ParseDeathCause(s string) (DeathCause, error) {
	cause := DeathCause(s)
	if !cause.Valid() {
		return "", pkgerrors.ErrUnsupportedDeathCause.WithDetail("cause", s)
	}
	return cause, nil
}

// Valid reports whether the cause belongs to the closed enumeration
func (c DeathCause) Valid() bool {
	switch c {
	case CauseBankruptcy, CauseVoteMajority, CauseManual:
		return true
	}
	return false
}

// String returns the wire representation
func (c DeathCause) String() string {
	return string(c)
}
