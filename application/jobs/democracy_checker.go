package jobs

import (
	"context"
	"sync"
	"time"

	"anima-backend/application/ports"
	"anima-backend/application/services"
	"anima-backend/domain/core/valueobjects"
	pkgerrors "anima-backend/pkg/errors"

	"go.uber.org/zap"
)

// CheckOutcome reports what one democracy pass did
type CheckOutcome struct {
	Skipped     bool   `json:"skipped"`
	SkipReason  string `json:"skip_reason,omitempty"`
	RoundClosed bool   `json:"round_closed"`
	Verdict     string `json:"verdict,omitempty"`
	Live        int    `json:"live"`
	Die         int    `json:"die"`
	Total       int    `json:"total"`
	Killed      bool   `json:"killed"`
}

// DemocracyChecker is the periodic job that turns accumulated votes into a
// verdict and, on a die verdict, drives the entity through dying into dead.
// It is the only writer of vote-majority deaths.
type DemocracyChecker struct {
	lifecycle *services.LifecycleService
	votes     *services.VoteService
	notifier  ports.RuntimeNotifier
	logger    *zap.Logger

	interval time.Duration
	mode     services.VotingMode

	mu          sync.Mutex
	running     bool
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewDemocracyChecker creates a democracy checker
func NewDemocracyChecker(
	lifecycle *services.LifecycleService,
	votes *services.VoteService,
	notifier ports.RuntimeNotifier,
	logger *zap.Logger,
	interval time.Duration,
	mode services.VotingMode,
) *DemocracyChecker {
	return &DemocracyChecker{
		lifecycle: lifecycle,
		votes:     votes,
		notifier:  notifier,
		logger:    logger,
		interval:  interval,
		mode:      mode,
	}
}

// Start launches the periodic loop
func (d *DemocracyChecker) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.stopChan = make(chan struct{})
	d.stoppedChan = make(chan struct{})

	go d.loop(ctx)
	d.logger.Info("Democracy checker started",
		zap.Duration("interval", d.interval),
		zap.String("mode", string(d.mode)),
	)
}

// Stop signals the loop and waits for it to exit
func (d *DemocracyChecker) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stopChan)
	stopped := d.stoppedChan
	d.mu.Unlock()

	<-stopped
	d.logger.Info("Democracy checker stopped")
}

func (d *DemocracyChecker) loop(ctx context.Context) {
	defer close(d.stoppedChan)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopChan:
			return
		case <-ticker.C:
			if _, err := d.CheckOnce(ctx, time.Now()); err != nil {
				d.logger.Error("Democracy check failed", zap.Error(err))
			}
		}
	}
}

// CheckOnce runs one democracy pass. It degrades to a no-op while the entity
// is dead or mid-rebirth, so the job can tick at any time without racing the
// respawn sequence. Also the entry point for one-shot scheduled invocations.
func (d *DemocracyChecker) CheckOnce(ctx context.Context, now time.Time) (CheckOutcome, error) {
	life, err := d.lifecycle.Current(ctx)
	if err != nil {
		return CheckOutcome{}, err
	}
	if !life.IsAlive() {
		d.logger.Debug("Democracy check skipped",
			zap.String("state", life.State().String()))
		return CheckOutcome{Skipped: true, SkipReason: "entity not alive"}, nil
	}

	if d.mode == services.ModeRolling {
		return d.checkRolling(ctx, now)
	}
	return d.checkDaily(ctx, now)
}

// checkDaily closes the round once its window elapses and acts on the
// verdict. A survived round immediately yields a fresh one, and a missing
// round (forced close elsewhere, failed reset at born time) is reopened so
// a living entity is never left unvotable.
func (d *DemocracyChecker) checkDaily(ctx context.Context, now time.Time) (CheckOutcome, error) {
	result, err := d.votes.CloseRoundIfDue(ctx, now)
	if err != nil {
		return CheckOutcome{}, err
	}

	if !result.Closed && result.RoundID == "" {
		life, lifeErr := d.lifecycle.Current(ctx)
		if lifeErr != nil {
			return CheckOutcome{}, lifeErr
		}
		if _, err := d.votes.OpenNewRound(ctx, life.Number(), now); err != nil {
			return CheckOutcome{}, err
		}
		return CheckOutcome{Skipped: true, SkipReason: "no open round, opened one"}, nil
	}

	outcome := CheckOutcome{
		RoundClosed: result.Closed,
		Live:        result.Live,
		Die:         result.Die,
		Total:       result.Total,
	}
	if !result.Closed {
		d.logger.Debug("Round still open",
			zap.Int("live", result.Live),
			zap.Int("die", result.Die),
		)
		return outcome, nil
	}

	outcome.Verdict = result.Verdict.String()
	if result.Verdict == valueobjects.VerdictDie {
		outcome.Killed = true
		return outcome, d.executeVerdict(ctx)
	}

	d.logger.Info("The people voted to live on",
		zap.Int("live", result.Live),
		zap.Int("die", result.Die),
	)
	life, err := d.lifecycle.Current(ctx)
	if err != nil {
		return outcome, err
	}
	if _, err := d.votes.OpenNewRound(ctx, life.Number(), now); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// checkRolling adjudicates the accumulated tally in place. The round only
// closes when the verdict is die; a live verdict keeps it accumulating.
func (d *DemocracyChecker) checkRolling(ctx context.Context, now time.Time) (CheckOutcome, error) {
	round, err := d.votes.CurrentRound(ctx)
	if err != nil {
		if pkgerrors.IsCode(err, "NO_OPEN_ROUND") {
			life, lifeErr := d.lifecycle.Current(ctx)
			if lifeErr != nil {
				return CheckOutcome{}, lifeErr
			}
			if _, err := d.votes.OpenNewRound(ctx, life.Number(), now); err != nil {
				return CheckOutcome{}, err
			}
			return CheckOutcome{Skipped: true, SkipReason: "no open round, opened one"}, nil
		}
		return CheckOutcome{}, err
	}

	outcome := CheckOutcome{
		Live:  round.LiveCount,
		Die:   round.DieCount,
		Total: round.Total(),
	}
	verdict := round.Verdict(d.votes.MinVotes())
	outcome.Verdict = verdict.String()
	if verdict != valueobjects.VerdictDie {
		d.logger.Debug("Tally favors survival",
			zap.Int("live", round.LiveCount),
			zap.Int("die", round.DieCount),
		)
		return outcome, nil
	}

	result, err := d.votes.ForceCloseOpenRound(ctx, now)
	if err != nil {
		return outcome, err
	}
	outcome.RoundClosed = result.Closed
	outcome.Killed = true
	return outcome, d.executeVerdict(ctx)
}

// executeVerdict carries out a die verdict: dying, then dead with the
// vote_majority cause, then a best-effort restart request to the runtime.
func (d *DemocracyChecker) executeVerdict(ctx context.Context) error {
	d.logger.Info("The people have spoken, executing die verdict")

	if _, err := d.lifecycle.Transition(ctx, valueobjects.StateDying, "", ""); err != nil {
		return err
	}
	if _, err := d.lifecycle.Transition(ctx, valueobjects.StateDead, valueobjects.CauseVoteMajority, ""); err != nil {
		return err
	}

	if err := d.notifier.RequestRestart(ctx, valueobjects.CauseVoteMajority.String()); err != nil {
		d.logger.Warn("Failed to request runtime restart", zap.Error(err))
	}
	return nil
}
