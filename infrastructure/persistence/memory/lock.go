package memory

import (
	"context"
	"sync"
	"time"

	"anima-backend/application/ports"
	pkgerrors "anima-backend/pkg/errors"
)

// Locker is the in-memory ResourceLocker. Single-process only, but it keeps
// the same lease semantics as the DynamoDB implementation so the respawn
// coordinator behaves identically in development.
type Locker struct {
	mu     sync.Mutex
	leases map[string]lease
}

type lease struct {
	owner     string
	expiresAt time.Time
}

// NewLocker creates an in-memory locker
func NewLocker() ports.ResourceLocker {
	return &Locker{leases: make(map[string]lease)}
}

// Acquire takes a lease on the resource and returns its release func
func (l *Locker) Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if current, held := l.leases[resource]; held && current.expiresAt.After(now) && current.owner != owner {
		return nil, pkgerrors.ErrConcurrentModification.WithDetail("resource", resource)
	}
	l.leases[resource] = lease{owner: owner, expiresAt: now.Add(ttl)}

	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if current, held := l.leases[resource]; held && current.owner == owner {
			delete(l.leases, resource)
		}
		return nil
	}
	return release, nil
}
