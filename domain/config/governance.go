package config

import (
	"time"
)

// Governance holds the tunable parameters of the voting and lifecycle
// protocol. Defaults reflect the canonical deployment; stricter deployments
// narrow the respawn window and shorten the round.
type Governance struct {
	// MinVotesForDeath is the minimum total tally before a die majority can
	// end the life.
	MinVotesForDeath int

	// RoundDuration is the span of one discrete voting round.
	RoundDuration time.Duration

	// DemocracyCheckInterval is the cadence of the periodic verdict job.
	DemocracyCheckInterval time.Duration

	// RespawnDelayMin/Max bound the randomized delay before rebirth.
	RespawnDelayMin time.Duration
	RespawnDelayMax time.Duration

	// MemoryRetentionLives is how many lives of memory fragments are kept
	// behind the current one before pruning.
	MemoryRetentionLives int
}

// DefaultGovernance returns the canonical parameter set
func DefaultGovernance() Governance {
	return Governance{
		MinVotesForDeath:       3,
		RoundDuration:          24 * time.Hour,
		DemocracyCheckInterval: time.Hour,
		RespawnDelayMin:        0,
		RespawnDelayMax:        600 * time.Second,
		MemoryRetentionLives:   5,
	}
}
