// Package maintenance runs the periodic stage engine sweep over the lead store.
package maintenance

import (
	"context"
	"time"

	"crescoflow/internal/events"
	"crescoflow/internal/leads/domain"
	"crescoflow/internal/leadstore"
	"crescoflow/internal/pipeline"
	"crescoflow/platform/logger"
	"crescoflow/platform/metrics"
)

type Store interface {
	Leads() []domain.Lead
	ApplyStages(ctx context.Context, changes []leadstore.StageChange) []leadstore.StageChange
}

// Sweeper evaluates every active lead and applies the resulting transitions.
type Sweeper struct {
	store Store
	bus   events.Bus
	log   *logger.Logger
	now   func() time.Time
}

func NewSweeper(store Store, bus events.Bus, log *logger.Logger) *Sweeper {
	return &Sweeper{store: store, bus: bus, log: log.WithComponent("stage-sweep"), now: time.Now}
}

// Sweep runs one pass and returns how many leads changed stage. Leads whose
// stage moved between the read and the write are left for the next pass.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	active := make([]domain.Lead, 0)
	for _, l := range s.store.Leads() {
		if !l.Archived {
			active = append(active, l)
		}
	}

	res := pipeline.Evaluate(active, s.now())
	if len(res.Transitions) == 0 {
		return 0, nil
	}

	changes := make([]leadstore.StageChange, len(res.Transitions))
	rules := make(map[string]string, len(res.Transitions))
	for i, t := range res.Transitions {
		changes[i] = leadstore.StageChange{LeadID: t.LeadID, From: t.From, To: t.To}
		rules[t.LeadID] = t.Rule
	}

	applied := s.store.ApplyStages(ctx, changes)
	for _, c := range applied {
		s.log.StageChanged(c.LeadID, string(c.From), string(c.To), rules[c.LeadID])
		metrics.RecordStageTransition(string(c.To))
		if s.bus != nil {
			s.bus.Publish(ctx, events.LeadStageChanged{
				BaseEvent: events.NewBaseEvent(),
				LeadID:    c.LeadID,
				OldStage:  string(c.From),
				NewStage:  string(c.To),
				Reason:    rules[c.LeadID],
			})
		}
	}
	if len(applied) > 0 {
		s.log.Info("stage sweep applied", "evaluated", len(active), "changed", len(applied))
	}
	return len(applied), nil
}
