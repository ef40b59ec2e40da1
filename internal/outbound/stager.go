package outbound

import (
	"context"
	"time"

	"crescoflow/internal/leads/domain"
	"crescoflow/platform/apperr"
	"crescoflow/platform/logger"
)

// StageStore is what the stager reads and writes.
type StageStore interface {
	Leads() []domain.Lead
	Queue() []QueueItem
	ChangeQueue(ctx context.Context, plan QueuePlanner) (QueueChange, error)
	UpdateLead(ctx context.Context, id string, fn func(*domain.Lead) error) (domain.Lead, error)
}

// Template is the message (and optional subject) queued for a channel.
type Template struct {
	Subject string
	Body    string
}

// TemplateSource resolves the active template of a channel.
type TemplateSource interface {
	ForChannel(channel domain.Channel) (Template, bool)
}

// StageRequest selects what to stage.
type StageRequest struct {
	Channel domain.Channel
	// LeadIDs limits staging to these leads; empty means every eligible lead.
	LeadIDs []string
	// Body overrides the channel template when set.
	Body    string
	Subject string
	Preview bool
}

// StageResult reports the items created, or that would be created in
// preview mode, and today's usage after staging.
type StageResult struct {
	Channel domain.Channel `json:"channel"`
	Items   []QueueItem    `json:"items"`
	Preview bool           `json:"preview"`
	Usage   Usage          `json:"usage"`
}

// Stager turns eligible leads into queue items.
type Stager struct {
	store     StageStore
	templates TemplateSource
	log       *logger.Logger
	horizon   int
	now       func() time.Time
}

// NewStager builds a stager. horizonDays <= 0 uses DefaultHorizonDays.
func NewStager(store StageStore, templates TemplateSource, log *logger.Logger, horizonDays int) *Stager {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	return &Stager{store: store, templates: templates, log: log, horizon: horizonDays, now: time.Now}
}

// Stage schedules leads on req.Channel, highest confidence first. In preview
// mode nothing is written.
func (s *Stager) Stage(ctx context.Context, req StageRequest) (StageResult, error) {
	if Quota(req.Channel) == 0 {
		return StageResult{}, apperr.Validation("channel has no outbound queue: " + string(req.Channel))
	}

	tpl := Template{Body: req.Body, Subject: req.Subject}
	if tpl.Body == "" {
		stored, ok := s.templates.ForChannel(req.Channel)
		if !ok {
			return StageResult{}, apperr.NotFound("no template for channel " + string(req.Channel))
		}
		tpl.Body = stored.Body
		if tpl.Subject == "" {
			tpl.Subject = stored.Subject
		}
	}

	now := s.now()
	opts := []EnqueueOption{WithHorizon(s.horizon)}
	if tpl.Subject != "" && req.Channel == domain.ChannelColdEmail {
		opts = append(opts, WithSubject(tpl.Subject))
	}
	plan := func(leads []domain.Lead, queue []QueueItem) []QueueItem {
		candidates := PrioritizeByConfidence(selectLeads(leads, req.LeadIDs))
		return Enqueue(req.Channel, candidates, tpl.Body, queue, now, opts...)
	}

	res := StageResult{Channel: req.Channel, Preview: req.Preview}
	if req.Preview {
		existing := s.store.Queue()
		res.Items = plan(s.store.Leads(), existing)
		res.Usage = DailyUsage(append(existing, res.Items...), req.Channel, DayOf(now))
		return res, nil
	}

	// Reading the queue, placing the items and appending them happen under
	// one lock so concurrent staging cannot overfill a day.
	change, err := s.store.ChangeQueue(ctx, func(leads []domain.Lead, queue []QueueItem) (QueueChange, error) {
		return QueueChange{Append: plan(leads, queue)}, nil
	})
	if err != nil {
		return StageResult{}, err
	}
	items := change.Append
	res.Items = items
	if len(items) == 0 {
		res.Usage = DailyUsage(s.store.Queue(), req.Channel, DayOf(now))
		return res, nil
	}

	for _, it := range items {
		day, err := ParseDay(it.ScheduledDate, now.Location())
		if err != nil {
			continue
		}
		if _, err := s.store.UpdateLead(ctx, it.LeadID, func(l *domain.Lead) error {
			l.OutboundChannel = req.Channel
			l.ScheduledDate = &day
			return nil
		}); err != nil {
			s.log.Warn("stage lead update failed", "lead", it.LeadID, "error", err)
		}
	}

	res.Usage = DailyUsage(s.store.Queue(), req.Channel, DayOf(now))
	s.log.Info("outbound items staged", "channel", req.Channel, "count", len(items))
	return res, nil
}

// selectLeads keeps the active leads, limited to ids when any are given.
func selectLeads(leads []domain.Lead, ids []string) []domain.Lead {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []domain.Lead
	for _, l := range leads {
		if l.Archived {
			continue
		}
		if _, ok := want[l.ID]; ok || len(ids) == 0 {
			out = append(out, l)
		}
	}
	return out
}
