package instantly

import (
	"context"
	"time"

	"crescoflow/internal/events"
	"crescoflow/internal/leads/domain"
	"crescoflow/platform/logger"
	"crescoflow/platform/metrics"

	"github.com/google/uuid"
)

// ReplyTags are added to the CRM contact of a lead that replied.
var ReplyTags = []string{"Interesse", "Replied Instantly"}

// StatusSource answers whether an email address replied.
type StatusSource interface {
	LeadStatus(ctx context.Context, email string) (LeadState, error)
}

// ContactSyncer pushes a lead to the CRM.
type ContactSyncer interface {
	Push(ctx context.Context, lead domain.Lead, tags []string) (string, bool)
}

// LeadStore is the part of the lead store the checker needs.
type LeadStore interface {
	Leads() []domain.Lead
	UpdateLead(ctx context.Context, id string, fn func(*domain.Lead) error) (domain.Lead, error)
}

// InboxCheckResult counts what one check did.
type InboxCheckResult struct {
	Checked int `json:"checked"`
	Replied int `json:"replied"`
	Errors  int `json:"errors"`
}

// InboxChecker moves sent leads that replied in Instantly to replied.
type InboxChecker struct {
	source StatusSource
	syncer ContactSyncer
	store  LeadStore
	bus    events.Bus
	log    *logger.Logger
	now    func() time.Time
}

// NewInboxChecker builds a checker. syncer and bus may be nil.
func NewInboxChecker(source StatusSource, syncer ContactSyncer, store LeadStore, bus events.Bus, log *logger.Logger) *InboxChecker {
	return &InboxChecker{source: source, syncer: syncer, store: store, bus: bus, log: log, now: time.Now}
}

// Check queries every lead in stage sent that has an email address.
// Lookup failures are counted and skipped.
func (c *InboxChecker) Check(ctx context.Context) (InboxCheckResult, error) {
	var res InboxCheckResult
	for _, lead := range c.store.Leads() {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		email := lead.PrimaryEmail()
		if lead.PipelineTag != domain.StageSent || email == "" || lead.Archived {
			continue
		}

		res.Checked++
		state, err := c.source.LeadStatus(ctx, email)
		if err != nil {
			res.Errors++
			continue
		}
		if state != StateReplied {
			continue
		}

		updated, err := c.markReplied(ctx, lead.ID)
		if err != nil {
			c.log.Warn("mark lead replied failed", "lead", lead.ID, "error", err)
			res.Errors++
			continue
		}
		res.Replied++
		c.sync(ctx, updated)
	}

	c.log.Info("instantly inbox checked", "checked", res.Checked, "replied", res.Replied, "errors", res.Errors)
	return res, nil
}

func (c *InboxChecker) markReplied(ctx context.Context, id string) (domain.Lead, error) {
	now := c.now()
	updated, err := c.store.UpdateLead(ctx, id, func(l *domain.Lead) error {
		l.PipelineTag = domain.StageReplied
		l.ReplyReceived = true
		l.ReplyDate = &now
		l.LastInteractionDate = &now
		l.Interactions = append(l.Interactions, domain.Interaction{
			ID:        uuid.NewString(),
			Type:      domain.InteractionSystem,
			Timestamp: now,
			Outcome:   "Reactie ontvangen via Instantly",
		})
		return nil
	})
	if err != nil {
		return domain.Lead{}, err
	}

	c.log.StageChanged(id, string(domain.StageSent), string(domain.StageReplied), "instantly reply")
	if c.bus != nil {
		c.bus.Publish(ctx, events.LeadReplied{BaseEvent: events.NewBaseEvent(), LeadID: id, Source: "instantly"})
	}
	metrics.RecordStageTransition(string(domain.StageReplied))
	return updated, nil
}

func (c *InboxChecker) sync(ctx context.Context, lead domain.Lead) {
	if c.syncer == nil {
		return
	}
	id, ok := c.syncer.Push(ctx, lead, ReplyTags)
	if !ok {
		return
	}
	if _, err := c.store.UpdateLead(ctx, lead.ID, func(l *domain.Lead) error {
		l.GHLSynced = true
		l.GHLContactID = id
		return nil
	}); err != nil {
		c.log.Warn("record ghl sync failed", "lead", lead.ID, "error", err)
	}
}
