package services

import (
	"context"
	"math/rand"
	"os"
	"sync"
	"time"

	"anima-backend/application/ports"
	"anima-backend/domain/core/valueobjects"
	"anima-backend/pkg/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	respawnLockResource = "respawn"
	notifyAttempts      = 3
)

// Backoff before the second and third notification attempts
var notifyBackoff = []time.Duration{5 * time.Second, 10 * time.Second}

// RespawnCoordinator watches shared storage for a dead life and brings the
// entity back: a randomized delay, the rebirth transitions, fresh memory
// fragments, then a best-effort runtime notification. It runs in every
// replica; a storage lease ensures only one actually performs the rebirth.
type RespawnCoordinator struct {
	lifecycle *LifecycleService
	memories  *MemoryGenerator
	notifier  ports.RuntimeNotifier
	locker    ports.ResourceLocker
	metrics   *observability.Collector
	logger    *zap.Logger

	pollInterval time.Duration
	delayMin     time.Duration
	delayMax     time.Duration
	owner        string
	rng          *rand.Rand

	mu          sync.Mutex
	running     bool
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewRespawnCoordinator creates a respawn coordinator
func NewRespawnCoordinator(
	lifecycle *LifecycleService,
	memories *MemoryGenerator,
	notifier ports.RuntimeNotifier,
	locker ports.ResourceLocker,
	metrics *observability.Collector,
	logger *zap.Logger,
	pollInterval, delayMin, delayMax time.Duration,
) *RespawnCoordinator {
	hostname, _ := os.Hostname()
	return &RespawnCoordinator{
		lifecycle:    lifecycle,
		memories:     memories,
		notifier:     notifier,
		locker:       locker,
		metrics:      metrics,
		logger:       logger,
		pollInterval: pollInterval,
		delayMin:     delayMin,
		delayMax:     delayMax,
		owner:        hostname + "-" + uuid.New().String(),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start launches the polling loop
func (c *RespawnCoordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.stopChan = make(chan struct{})
	c.stoppedChan = make(chan struct{})

	go c.loop(ctx)
	c.logger.Info("Respawn coordinator started",
		zap.Duration("pollInterval", c.pollInterval),
		zap.Duration("delayMin", c.delayMin),
		zap.Duration("delayMax", c.delayMax),
	)
}

// Stop signals the loop and waits for it to exit
func (c *RespawnCoordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopChan)
	stopped := c.stoppedChan
	c.mu.Unlock()

	<-stopped
	c.logger.Info("Respawn coordinator stopped")
}

func (c *RespawnCoordinator) loop(ctx context.Context) {
	defer close(c.stoppedChan)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-ticker.C:
			if err := c.CheckOnce(ctx); err != nil {
				c.logger.Error("Respawn check failed", zap.Error(err))
			}
		}
	}
}

// CheckOnce performs one poll: if the entity is dead, run the respawn
// sequence. Exposed so a one-shot invocation can drive the same path.
func (c *RespawnCoordinator) CheckOnce(ctx context.Context) error {
	life, err := c.lifecycle.Current(ctx)
	if err != nil {
		return err
	}
	if life.State() != valueobjects.StateDead {
		return nil
	}
	return c.respawn(ctx, life.Number())
}

func (c *RespawnCoordinator) respawn(ctx context.Context, deadLifeNumber int) error {
	delay := c.drawDelay()
	c.logger.Info("Death detected, respawn scheduled",
		zap.Int("deadLifeNumber", deadLifeNumber),
		zap.Duration("delay", delay),
	)
	if !c.sleep(ctx, delay) {
		return nil
	}

	// The lease TTL covers the whole sequence; a crashed holder's lease
	// expires and another replica picks the death up on its next poll.
	release, err := c.locker.Acquire(ctx, respawnLockResource, c.owner, 2*time.Minute)
	if err != nil {
		c.logger.Debug("Respawn lease held elsewhere", zap.Error(err))
		return nil
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			c.logger.Warn("Failed to release respawn lease", zap.Error(err))
		}
	}()

	// Re-check under the lease: another replica may have finished already
	life, err := c.lifecycle.Current(ctx)
	if err != nil {
		return err
	}
	if life.State() != valueobjects.StateDead {
		return nil
	}

	if _, err := c.lifecycle.Transition(ctx, valueobjects.StateRebirthPending, "", ""); err != nil {
		return err
	}
	life, err = c.lifecycle.Transition(ctx, valueobjects.StateBorn, "", "")
	if err != nil {
		return err
	}

	set, err := c.memories.GenerateForRebirth(ctx, life.Number())
	if err != nil {
		// The new life simply wakes up without memories
		c.logger.Error("Memory generation failed", zap.Int("lifeNumber", life.Number()), zap.Error(err))
	}

	life, err = c.lifecycle.Transition(ctx, valueobjects.StateActive, "", "")
	if err != nil {
		return err
	}

	params := ports.RebirthParams{
		LifeNumber: life.Number(),
		State:      life.State().String(),
	}
	if set != nil {
		params.MemoryCount = len(set.Fragments)
		params.MemoryEmotion = set.Emotion
	}
	c.notifyWithRetry(ctx, params)

	c.logger.Info("Respawn complete",
		zap.Int("lifeNumber", life.Number()),
		zap.Int("memoryCount", params.MemoryCount),
	)
	return nil
}

// notifyWithRetry attempts the runtime notification a bounded number of
// times. The new life's state is already persisted, so exhausting retries
// raises an operator alert but never rolls anything back.
func (c *RespawnCoordinator) notifyWithRetry(ctx context.Context, params ports.RebirthParams) {
	for attempt := 1; attempt <= notifyAttempts; attempt++ {
		// An in-flight attempt is allowed to finish even during shutdown
		err := c.notifier.NotifyRebirth(context.WithoutCancel(ctx), params)
		if err == nil {
			return
		}
		c.logger.Warn("Rebirth notification failed",
			zap.Int("attempt", attempt),
			zap.Int("lifeNumber", params.LifeNumber),
			zap.Error(err),
		)
		if attempt < notifyAttempts {
			c.metrics.NotificationRetries.Inc()
			if !c.sleep(ctx, notifyBackoff[attempt-1]) {
				break
			}
		}
	}

	c.metrics.NotificationFailures.Inc()
	c.logger.Error("Rebirth notification permanently failed, runtime may be out of sync",
		zap.Int("lifeNumber", params.LifeNumber),
		zap.Bool("alert", true),
	)
}

func (c *RespawnCoordinator) drawDelay() time.Duration {
	if c.delayMax <= c.delayMin {
		return c.delayMin
	}
	return c.delayMin + time.Duration(c.rng.Int63n(int64(c.delayMax-c.delayMin)))
}

// sleep waits for d, returning false when interrupted by shutdown
func (c *RespawnCoordinator) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-c.stopChan:
		return false
	case <-timer.C:
		return true
	}
}
