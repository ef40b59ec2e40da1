package scheduler

import (
	"context"
	"time"

	"crescoflow/platform/logger"
)

const (
	defaultSweepInterval = time.Minute
	defaultInboxInterval = 15 * time.Minute
)

// Ticker runs the stage sweep and inbox check in-process, for deployments
// without Redis.
type Ticker struct {
	sweeper       Sweeper
	inbox         InboxChecker
	log           *logger.Logger
	sweepInterval time.Duration
	inboxInterval time.Duration
}

// NewTicker accepts a nil inbox checker. Non-positive intervals fall back to
// one minute and fifteen minutes.
func NewTicker(sweeper Sweeper, inbox InboxChecker, log *logger.Logger, sweepInterval, inboxInterval time.Duration) *Ticker {
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	if inboxInterval <= 0 {
		inboxInterval = defaultInboxInterval
	}
	return &Ticker{
		sweeper:       sweeper,
		inbox:         inbox,
		log:           log.WithComponent("ticker"),
		sweepInterval: sweepInterval,
		inboxInterval: inboxInterval,
	}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (t *Ticker) Run(ctx context.Context) {
	if t == nil || t.sweeper == nil {
		return
	}

	t.sweep(ctx)

	sweepTicker := time.NewTicker(t.sweepInterval)
	defer sweepTicker.Stop()

	var inboxC <-chan time.Time
	if t.inbox != nil {
		inboxTicker := time.NewTicker(t.inboxInterval)
		defer inboxTicker.Stop()
		inboxC = inboxTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweepTicker.C:
			t.sweep(ctx)
		case <-inboxC:
			if _, err := t.inbox.Check(ctx); err != nil {
				t.log.Warn("inbox check failed", "error", err)
			}
		}
	}
}

func (t *Ticker) sweep(ctx context.Context) {
	if _, err := t.sweeper.Sweep(ctx); err != nil {
		t.log.Warn("stage sweep failed", "error", err)
	}
}
