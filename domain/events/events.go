package events

import (
	"strconv"
	"time"
)

// SourceGovernance identifies this service as the event source on the bus
const SourceGovernance = "anima.governance"

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Lifecycle events

// LifeTransitioned is raised on every accepted lifecycle transition
type LifeTransitioned struct {
	BaseEvent
	LifeNumber int    `json:"life_number"`
	FromState  string `json:"from_state"`
	ToState    string `json:"to_state"`
}

// NewLifeTransitioned creates a LifeTransitioned event
func NewLifeTransitioned(lifeNumber int, from, to string, timestamp time.Time) LifeTransitioned {
	return LifeTransitioned{
		BaseEvent: BaseEvent{
			AggregateID: lifeAggregateID(lifeNumber),
			EventType:   "life.transitioned",
			Timestamp:   timestamp,
			Version:     1,
		},
		LifeNumber: lifeNumber,
		FromState:  from,
		ToState:    to,
	}
}

// LifeDied is raised when the entity enters the dead state
type LifeDied struct {
	BaseEvent
	LifeNumber int    `json:"life_number"`
	Cause      string `json:"cause"`
}

// NewLifeDied creates a LifeDied event
func NewLifeDied(lifeNumber int, cause string, timestamp time.Time) LifeDied {
	return LifeDied{
		BaseEvent: BaseEvent{
			AggregateID: lifeAggregateID(lifeNumber),
			EventType:   "life.died",
			Timestamp:   timestamp,
			Version:     1,
		},
		LifeNumber: lifeNumber,
		Cause:      cause,
	}
}

// LifeReborn is raised when a new life begins
type LifeReborn struct {
	BaseEvent
	LifeNumber     int `json:"life_number"`
	PreviousNumber int `json:"previous_number"`
}

// NewLifeReborn creates a LifeReborn event
func NewLifeReborn(lifeNumber, previousNumber int, timestamp time.Time) LifeReborn {
	return LifeReborn{
		BaseEvent: BaseEvent{
			AggregateID: lifeAggregateID(lifeNumber),
			EventType:   "life.reborn",
			Timestamp:   timestamp,
			Version:     1,
		},
		LifeNumber:     lifeNumber,
		PreviousNumber: previousNumber,
	}
}

// Voting events

// VoteCast is raised when a vote is accepted into the current round
type VoteCast struct {
	BaseEvent
	RoundID string `json:"round_id"`
	Choice  string `json:"choice"`
	Live    int    `json:"live"`
	Die     int    `json:"die"`
}

// NewVoteCast creates a VoteCast event
func NewVoteCast(roundID, choice string, live, die int, timestamp time.Time) VoteCast {
	return VoteCast{
		BaseEvent: BaseEvent{
			AggregateID: roundID,
			EventType:   "vote.cast",
			Timestamp:   timestamp,
			Version:     1,
		},
		RoundID: roundID,
		Choice:  choice,
		Live:    live,
		Die:     die,
	}
}

// RoundClosed is raised when a voting round reaches its verdict
type RoundClosed struct {
	BaseEvent
	RoundID string `json:"round_id"`
	Verdict string `json:"verdict"`
	Live    int    `json:"live"`
	Die     int    `json:"die"`
	Forced  bool   `json:"forced"`
}

// NewRoundClosed creates a RoundClosed event
func NewRoundClosed(roundID, verdict string, live, die int, forced bool, timestamp time.Time) RoundClosed {
	return RoundClosed{
		BaseEvent: BaseEvent{
			AggregateID: roundID,
			EventType:   "round.closed",
			Timestamp:   timestamp,
			Version:     1,
		},
		RoundID: roundID,
		Verdict: verdict,
		Live:    live,
		Die:     die,
		Forced:  forced,
	}
}

func lifeAggregateID(lifeNumber int) string {
	return "life-" + strconv.Itoa(lifeNumber)
}
