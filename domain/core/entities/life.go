package entities

import (
	"time"

	"anima-backend/domain/core/valueobjects"
	"anima-backend/domain/events"
	pkgerrors "anima-backend/pkg/errors"
)

// Life is the singleton entity representing the current life of the digital
// entity. This is a rich domain model: the transition graph, death-cause
// rules and life numbering are enforced here, while atomicity of persistence
// is the repository's job.
type Life struct {
	// Private fields ensure encapsulation
	number     int
	state      valueobjects.LifeState
	intention  string
	deathCause valueobjects.DeathCause
	bornAt     time.Time
	updatedAt  time.Time
	version    int

	// Domain events that occurred during this aggregate's lifetime
	events []events.DomainEvent
}

// NewFirstLife seeds the very first life. The entity starts its existence
// already active, life number 1.
func NewFirstLife(now time.Time) *Life {
	return &Life{
		number:    1,
		state:     valueobjects.StateActive,
		bornAt:    now,
		updatedAt: now,
		version:   1,
		events:    []events.DomainEvent{},
	}
}

// ReconstructLife rebuilds a life from repository data with preserved fields
func ReconstructLife(
	number int,
	state valueobjects.LifeState,
	intention string,
	deathCause valueobjects.DeathCause,
	bornAt, updatedAt time.Time,
	version int,
) *Life {
	return &Life{
		number:     number,
		state:      state,
		intention:  intention,
		deathCause: deathCause,
		bornAt:     bornAt,
		updatedAt:  updatedAt,
		version:    version,
		events:     []events.DomainEvent{},
	}
}

// Number returns the monotonically increasing life number
func (l *Life) Number() int { return l.number }

// State returns the current lifecycle state
func (l *Life) State() valueobjects.LifeState { return l.state }

// IsAlive reports whether the entity currently counts as alive
func (l *Life) IsAlive() bool { return l.state.IsAlive() }

// Intention returns the current free-text intention label
func (l *Life) Intention() string { return l.intention }

// DeathCause returns the cause of the current death, when state is dead
func (l *Life) DeathCause() valueobjects.DeathCause { return l.deathCause }

// BornAt returns when this life began
func (l *Life) BornAt() time.Time { return l.bornAt }

// UpdatedAt returns the last state change time
func (l *Life) UpdatedAt() time.Time { return l.updatedAt }

// Version returns the optimistic concurrency version
func (l *Life) Version() int { return l.version }

// SetIntention updates the current intention label
func (l *Life) SetIntention(intention string, now time.Time) {
	l.intention = intention
	l.updatedAt = now
}

// TransitionTo moves the life to the next state. The move must appear in the
// transition graph; entering dead additionally requires a cause from the
// closed enumeration. Entering born increments the life number by exactly
// one; the graph guarantees born is only reachable via rebirth_pending.
func (l *Life) TransitionTo(next valueobjects.LifeState, cause valueobjects.DeathCause, now time.Time) error {
	if !l.state.CanTransitionTo(next) {
		return pkgerrors.NewInvalidTransitionError(l.state.String(), next.String())
	}

	if next == valueobjects.StateDead {
		if !cause.Valid() {
			return pkgerrors.ErrUnsupportedDeathCause.WithDetail("cause", cause.String())
		}
		l.deathCause = cause
	}

	from := l.state
	l.state = next
	l.updatedAt = now

	if next == valueobjects.StateBorn {
		previous := l.number
		l.number++
		l.bornAt = now
		l.intention = ""
		l.deathCause = ""
		l.addEvent(events.NewLifeReborn(l.number, previous, now))
	}

	l.addEvent(events.NewLifeTransitioned(l.number, from.String(), next.String(), now))

	if next == valueobjects.StateDead {
		l.addEvent(events.NewLifeDied(l.number, l.deathCause.String(), now))
	}

	return nil
}

// Events returns the domain events raised since the last clear
func (l *Life) Events() []events.DomainEvent {
	return l.events
}

// ClearEvents resets the pending event list after publishing
func (l *Life) ClearEvents() {
	l.events = []events.DomainEvent{}
}

// BumpVersion increments the optimistic concurrency version. Called by the
// repository after a successful conditional write.
func (l *Life) BumpVersion() {
	l.version++
}

func (l *Life) addEvent(event events.DomainEvent) {
	l.events = append(l.events, event)
}
