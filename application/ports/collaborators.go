package ports

import (
	"context"
	"time"

	"anima-backend/domain/events"
)

// RebirthParams is what the entity's runtime needs to know about its new life
type RebirthParams struct {
	LifeNumber    int    `json:"life_number"`
	State         string `json:"state"`
	MemoryCount   int    `json:"memory_count"`
	MemoryEmotion string `json:"memory_emotion"`
}

// RuntimeNotifier reaches the entity's separate runtime process. Both calls
// are best-effort from the state machine's point of view: lifecycle state
// never rolls back on notification failure.
type RuntimeNotifier interface {
	// NotifyRebirth informs the runtime of its new life parameters
	NotifyRebirth(ctx context.Context, params RebirthParams) error

	// RequestRestart asks the runtime process to restart itself
	RequestRestart(ctx context.Context, reason string) error
}

// IntentionCloser closes the in-flight intention record owned by the
// planning collaborator when a life ends.
type IntentionCloser interface {
	CloseActive(ctx context.Context, outcome string) error
}

// EventPublisher pushes domain events onto the shared bus
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// ResourceLocker serializes a critical section across replicas. Acquire
// returns ErrConcurrentModification when another owner holds the lease.
type ResourceLocker interface {
	// Acquire takes a lease on the resource and returns its release func
	Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (release func(context.Context) error, err error)
}
