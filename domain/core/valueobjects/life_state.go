package valueobjects

import (
	"fmt"
)

// LifeState represents the coarse lifecycle state of the entity
type LifeState string

const (
	StateBorn           LifeState = "born"
	StateActive         LifeState = "active"
	StateCritical       LifeState = "critical"
	StateDying          LifeState = "dying"
	StateDead           LifeState = "dead"
	StateRebirthPending LifeState = "rebirth_pending"
)

// transitionGraph is the single source of truth for which lifecycle moves are
// legal. Rebirth must pass through rebirth_pending, so the graph itself
// enforces that born is only reachable after death.
var transitionGraph = map[LifeState][]LifeState{
	StateBorn:           {StateActive},
	StateActive:         {StateCritical, StateDying, StateDead},
	StateCritical:       {StateActive, StateDying, StateDead},
	StateDying:          {StateDead},
	StateDead:           {StateRebirthPending},
	StateRebirthPending: {StateBorn},
}

// ParseLifeState parses a wire string into a LifeState
func ParseLifeState(s string) (LifeState, error) {
	state := LifeState(s)
	switch state {
	case StateBorn, StateActive, StateCritical, StateDying, StateDead, StateRebirthPending:
		return state, nil
	}
	return "", fmt.Errorf("unknown life state: %q", s)
}

// String returns the wire representation
func (s LifeState) String() string {
	return string(s)
}

// IsAlive reports whether the entity counts as alive in this state
func (s LifeState) IsAlive() bool {
	switch s {
	case StateBorn, StateActive, StateCritical:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving to next is allowed from this state
func (s LifeState) CanTransitionTo(next LifeState) bool {
	for _, allowed := range transitionGraph[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
