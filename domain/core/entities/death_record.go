package entities

import (
	"time"

	"anima-backend/domain/core/valueobjects"
)

// DeathRecord is the append-only record of one completed life. It is written
// exactly once by the death transition handler and never mutated.
type DeathRecord struct {
	LifeNumber     int
	BirthTime      time.Time
	DeathTime      time.Time
	Cause          valueobjects.DeathCause
	TotalVotesLive int
	TotalVotesDie  int
	Summary        string
}

// NewDeathRecord builds the record for a life that just ended
func NewDeathRecord(
	lifeNumber int,
	birthTime, deathTime time.Time,
	cause valueobjects.DeathCause,
	votesLive, votesDie int,
	summary string,
) *DeathRecord {
	return &DeathRecord{
		LifeNumber:     lifeNumber,
		BirthTime:      birthTime,
		DeathTime:      deathTime,
		Cause:          cause,
		TotalVotesLive: votesLive,
		TotalVotesDie:  votesDie,
		Summary:        summary,
	}
}

// DurationSeconds returns how long the life lasted
func (d *DeathRecord) DurationSeconds() int64 {
	return int64(d.DeathTime.Sub(d.BirthTime).Seconds())
}
