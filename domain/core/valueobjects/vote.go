package valueobjects

import (
	"fmt"
)

// VoteChoice is the direction of a single vote
type VoteChoice string

const (
	ChoiceLive VoteChoice = "live"
	ChoiceDie  VoteChoice = "die"
)

// ParseVoteChoice parses a wire string into a VoteChoice
func ParseVoteChoice(s string) (VoteChoice, error) {
	choice := VoteChoice(s)
	switch choice {
	case ChoiceLive, ChoiceDie:
		return choice, nil
	}
	return "", fmt.Errorf("unknown vote choice: %q", s)
}

// String returns the wire representation
func (c VoteChoice) String() string {
	return string(c)
}

// Verdict is the outcome computed from a closed round's tally
type Verdict string

const (
	VerdictLive Verdict = "live"
	VerdictDie  Verdict = "die"
)

// String returns the wire representation
func (v Verdict) String() string {
	return string(v)
}

// Adjudicate converts a tally into a verdict. The verdict is die only when
// the total meets the minimum threshold AND die strictly outnumbers live;
// ties and under-threshold totals resolve to live. The survival bias is
// deliberate: the entity is presumed to live absent a clear, sufficiently
// attested majority against it.
func Adjudicate(live, die, minVotes int) Verdict {
	total := live + die
	if total >= minVotes && die > live {
		return VerdictDie
	}
	return VerdictLive
}

// VoterFingerprint is an opaque, de-identified token representing a distinct
// voter. Uniqueness of (round, fingerprint) is enforced at the storage layer.
type VoterFingerprint string

// NewVoterFingerprint wraps a pre-hashed fingerprint value
func NewVoterFingerprint(s string) (VoterFingerprint, error) {
	if s == "" {
		return "", fmt.Errorf("voter fingerprint cannot be empty")
	}
	return VoterFingerprint(s), nil
}

// String returns the opaque value
func (f VoterFingerprint) String() string {
	return string(f)
}
