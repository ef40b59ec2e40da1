package outbound

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"crescoflow/internal/events"
	"crescoflow/internal/leads/domain"
	"crescoflow/platform/apperr"
	"crescoflow/platform/logger"
	"crescoflow/platform/metrics"

	"github.com/google/uuid"
)

// DefaultSpacing is the pause between two consecutive sends.
const DefaultSpacing = 2 * time.Second

// DefaultMaxRetries is how many times a failed item may go back to pending.
const DefaultMaxRetries = 3

// ErrNotContactable is returned by senders when a lead has no address for
// the channel. The dispatcher marks such items skipped instead of failed.
var ErrNotContactable = errors.New("lead not contactable on channel")

// Sender delivers one queue item.
type Sender interface {
	Send(ctx context.Context, item QueueItem, lead domain.Lead) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, item QueueItem, lead domain.Lead) error

func (f SenderFunc) Send(ctx context.Context, item QueueItem, lead domain.Lead) error {
	return f(ctx, item, lead)
}

// Store is the slice of pipeline state the dispatcher works on.
type Store interface {
	Queue() []QueueItem
	Lead(id string) (domain.Lead, bool)
	UpdateQueueItem(ctx context.Context, id string, fn func(*QueueItem) error) (QueueItem, error)
	UpdateLead(ctx context.Context, id string, fn func(*domain.Lead) error) (domain.Lead, error)
	ChangeQueue(ctx context.Context, plan QueuePlanner) (QueueChange, error)
	RemoveQueueItem(ctx context.Context, id string) error
}

// DispatchResult reports what one Process run did.
type DispatchResult struct {
	Channel domain.Channel `json:"channel"`
	Sent    int            `json:"sent"`
	Failed  int            `json:"failed"`
	Skipped int            `json:"skipped"`
}

// Dispatcher sends due queue items through the channel's Sender.
type Dispatcher struct {
	store      Store
	senders    map[domain.Channel]Sender
	bus        events.Bus
	log        *logger.Logger
	spacing    time.Duration
	maxRetries int
	horizon    int
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSpacing sets the pause between consecutive sends.
func WithSpacing(d time.Duration) DispatcherOption {
	return func(x *Dispatcher) { x.spacing = d }
}

// WithMaxRetries sets how often a failed item may be retried.
func WithMaxRetries(n int) DispatcherOption {
	return func(x *Dispatcher) {
		if n >= 0 {
			x.maxRetries = n
		}
	}
}

// WithRetryHorizon bounds how far ahead retried items may be rescheduled.
func WithRetryHorizon(days int) DispatcherOption {
	return func(x *Dispatcher) {
		if days > 0 {
			x.horizon = days
		}
	}
}

// WithClock replaces time.Now and the spacing sleep, for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) DispatcherOption {
	return func(x *Dispatcher) {
		x.now = now
		x.sleep = sleep
	}
}

// NewDispatcher builds a dispatcher. Channels without a sender are skipped
// by Process.
func NewDispatcher(store Store, senders map[domain.Channel]Sender, bus events.Bus, log *logger.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:      store,
		senders:    senders,
		bus:        bus,
		log:        log,
		spacing:    DefaultSpacing,
		maxRetries: DefaultMaxRetries,
		horizon:    DefaultHorizonDays,
		now:        time.Now,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HasSender reports whether channel can be dispatched.
func (d *Dispatcher) HasSender(channel domain.Channel) bool {
	return d.senders[channel] != nil
}

// Process sends the pending items of channel that are due today or
// earlier, in (day, order) order. Each item is claimed before its send, so a
// concurrent Skip or an overlapping run cannot deliver it twice. A past-due
// item only goes out when today still has a free slot, which keeps today's
// sends within the channel quota. Sends are spaced by the configured pause.
func (d *Dispatcher) Process(ctx context.Context, channel domain.Channel) (DispatchResult, error) {
	res := DispatchResult{Channel: channel}
	sender := d.senders[channel]
	if sender == nil {
		return res, apperr.Unavailable(fmt.Sprintf("no sender configured for %s", channel))
	}

	today := DayOf(d.now())
	due := dueItems(d.store.Queue(), channel, today)

	pause := false
	for _, candidate := range due {
		if ctx.Err() != nil {
			break
		}

		lead, ok := d.store.Lead(candidate.LeadID)
		if !ok || lead.Archived || lead.PipelineTag.IsTerminal() {
			if d.markSkipped(ctx, candidate, StatusPending, "lead unavailable") {
				res.Skipped++
			}
			continue
		}

		if pause {
			if err := d.sleep(ctx, d.spacing); err != nil {
				break
			}
			pause = false
		}

		item, claimed, err := d.claim(ctx, candidate.ID, channel, today)
		if err != nil {
			d.log.Error("claim queue item", "item", candidate.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}

		err = sender.Send(ctx, item, lead)
		pause = true
		switch {
		case errors.Is(err, ErrNotContactable):
			d.markSkipped(ctx, item, StatusSending, err.Error())
			res.Skipped++
		case err != nil:
			d.markFailed(ctx, item, err)
			res.Failed++
		default:
			d.markSent(ctx, item, d.now())
			res.Sent++
		}
	}

	d.log.Info("outbound dispatch finished",
		"channel", channel, "sent", res.Sent, "failed", res.Failed, "skipped", res.Skipped)
	return res, nil
}

// claim moves item id from pending to sending. It reports false when the
// item is no longer pending and due, or when it is past due and today has
// no slot left. A past-due item takes today's next slot.
func (d *Dispatcher) claim(ctx context.Context, id string, channel domain.Channel, today string) (QueueItem, bool, error) {
	change, err := d.store.ChangeQueue(ctx, func(_ []domain.Lead, queue []QueueItem) (QueueChange, error) {
		for _, it := range queue {
			if it.ID != id {
				continue
			}
			if it.Status != StatusPending || it.ScheduledDate > today {
				return QueueChange{}, nil
			}
			if it.ScheduledDate < today {
				if DailyUsage(queue, channel, today).Remaining <= 0 {
					return QueueChange{}, nil
				}
				it.Order = newDayPlan(channel, queue).takeOrder(today)
				it.ScheduledDate = today
			}
			it.Status = StatusSending
			return QueueChange{Update: []QueueItem{it}}, nil
		}
		return QueueChange{}, nil
	})
	if err != nil || len(change.Update) == 0 {
		return QueueItem{}, false, err
	}
	return change.Update[0], true, nil
}

// RetryFailed moves failed items of channel that have retries left back to
// pending, rescheduled onto the first day from today with free capacity.
// Failed items hold no slot, so they are placed like new candidates.
func (d *Dispatcher) RetryFailed(ctx context.Context, channel domain.Channel) (int, error) {
	start := DayOf(d.now())
	change, err := d.store.ChangeQueue(ctx, func(_ []domain.Lead, queue []QueueItem) (QueueChange, error) {
		plan := newDayPlan(channel, queue)
		var c QueueChange
		offset := 0
		for _, item := range queue {
			if item.Channel != channel || item.Status != StatusFailed || item.RetryCount >= d.maxRetries {
				continue
			}
			day, next, ok := plan.reserve(start, offset, d.horizon)
			if !ok {
				break
			}
			offset = next
			item.Status = StatusPending
			item.ScheduledDate = day
			item.Order = plan.takeOrder(day)
			item.Error = ""
			c.Update = append(c.Update, item)
		}
		return c, nil
	})
	if err != nil {
		return 0, err
	}
	return len(change.Update), nil
}

// Skip marks a pending item skipped, freeing its slot.
func (d *Dispatcher) Skip(ctx context.Context, itemID string) (QueueItem, error) {
	return d.store.UpdateQueueItem(ctx, itemID, func(it *QueueItem) error {
		if it.Status != StatusPending {
			return apperr.Conflict("only pending items can be skipped")
		}
		it.Status = StatusSkipped
		it.Error = "skipped by operator"
		return nil
	})
}

// Remove deletes an item that is neither sent nor being sent.
func (d *Dispatcher) Remove(ctx context.Context, itemID string) error {
	for _, it := range d.store.Queue() {
		if it.ID != itemID {
			continue
		}
		switch it.Status {
		case StatusSent:
			return apperr.Conflict("sent items are kept for history")
		case StatusSending:
			return apperr.Conflict("item is being sent")
		}
		return d.store.RemoveQueueItem(ctx, itemID)
	}
	return apperr.NotFound("queue item not found")
}

func (d *Dispatcher) markSent(ctx context.Context, item QueueItem, at time.Time) {
	if _, err := d.store.UpdateQueueItem(ctx, item.ID, func(it *QueueItem) error {
		if it.Status != StatusSending {
			return apperr.Conflict("queue item is not claimed")
		}
		it.Status = StatusSent
		it.Error = ""
		it.SentAt = &at
		return nil
	}); err != nil {
		d.log.Error("mark queue item sent", "item", item.ID, "error", err)
	}

	if _, err := d.store.UpdateLead(ctx, item.LeadID, func(l *domain.Lead) error {
		l.Interactions = append(l.Interactions, domain.Interaction{
			ID:        uuid.NewString(),
			Type:      item.Channel.InteractionType(),
			Timestamp: at,
			Outcome:   fmt.Sprintf("%s verzonden naar %s", item.Channel, item.Recipient),
		})
		l.OutboundChannel = item.Channel
		if l.PipelineTag == domain.StageCold || l.PipelineTag == domain.StageReactivation {
			l.PipelineTag = domain.StageSent
		}
		if item.Channel == domain.ChannelColdEmail {
			l.EmailSentAt = &at
		}
		return nil
	}); err != nil {
		d.log.Error("record outbound interaction", "lead", item.LeadID, "error", err)
	}

	metrics.RecordDispatch(string(item.Channel), string(StatusSent))
	if d.bus != nil {
		d.bus.Publish(ctx, events.QueueItemSent{
			BaseEvent: events.NewBaseEvent(),
			ItemID:    item.ID,
			LeadID:    item.LeadID,
			Channel:   string(item.Channel),
		})
	}
}

func (d *Dispatcher) markFailed(ctx context.Context, item QueueItem, sendErr error) {
	d.log.ExternalCallFailed(string(item.Channel), "send", sendErr)
	if _, err := d.store.UpdateQueueItem(ctx, item.ID, func(it *QueueItem) error {
		if it.Status != StatusSending {
			return apperr.Conflict("queue item is not claimed")
		}
		it.Status = StatusFailed
		it.RetryCount++
		it.Error = sendErr.Error()
		return nil
	}); err != nil {
		d.log.Error("mark queue item failed", "item", item.ID, "error", err)
	}

	metrics.RecordDispatch(string(item.Channel), string(StatusFailed))
	if d.bus != nil {
		d.bus.Publish(ctx, events.QueueItemFailed{
			BaseEvent: events.NewBaseEvent(),
			ItemID:    item.ID,
			LeadID:    item.LeadID,
			Channel:   string(item.Channel),
			Error:     sendErr.Error(),
		})
	}
}

// markSkipped moves item from status from to skipped and reports whether it
// did.
func (d *Dispatcher) markSkipped(ctx context.Context, item QueueItem, from Status, reason string) bool {
	if _, err := d.store.UpdateQueueItem(ctx, item.ID, func(it *QueueItem) error {
		if it.Status != from {
			return apperr.Conflict("queue item changed status")
		}
		it.Status = StatusSkipped
		it.Error = reason
		return nil
	}); err != nil {
		d.log.Error("mark queue item skipped", "item", item.ID, "error", err)
		return false
	}
	metrics.RecordDispatch(string(item.Channel), string(StatusSkipped))
	return true
}

func dueItems(queue []QueueItem, channel domain.Channel, today string) []QueueItem {
	var due []QueueItem
	for _, it := range queue {
		if it.Channel == channel && it.Status == StatusPending && it.ScheduledDate <= today {
			due = append(due, it)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].ScheduledDate != due[j].ScheduledDate {
			return due[i].ScheduledDate < due[j].ScheduledDate
		}
		return due[i].Order < due[j].Order
	})
	return due
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
