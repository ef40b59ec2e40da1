// Package outbound schedules leads onto per-channel daily send queues and
// dispatches the scheduled messages.
package outbound

import (
	"time"

	"crescoflow/internal/leads/domain"

	"github.com/google/uuid"
)

// DayLayout is the calendar-day format used for ScheduledDate.
const DayLayout = "2006-01-02"

// DefaultHorizonDays bounds how far ahead overflow may spill.
const DefaultHorizonDays = 30

// Daily quotas per queueable channel.
const (
	CallDailyQuota  = 25
	SMSDailyQuota   = 75
	EmailDailyQuota = 300
)

var quotas = map[domain.Channel]int{
	domain.ChannelColdCall:  CallDailyQuota,
	domain.ChannelColdSMS:   SMSDailyQuota,
	domain.ChannelColdEmail: EmailDailyQuota,
}

// Quota returns the daily quota of channel, 0 when the channel has no queue.
func Quota(channel domain.Channel) int {
	return quotas[channel]
}

// QueueChannels lists the channels that have a capacity queue.
func QueueChannels() []domain.Channel {
	return []domain.Channel{domain.ChannelColdCall, domain.ChannelColdSMS, domain.ChannelColdEmail}
}

// Status of a queue item.
type Status string

// StatusSending marks an item claimed by a dispatch run while its message
// is on the way. It holds its slot like pending and sent.
const (
	StatusPending Status = "pending"
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Committed reports whether the item occupies a slot of its day's quota.
func (s Status) Committed() bool {
	return s == StatusPending || s == StatusSending || s == StatusSent
}

// QueueItem is one scheduled outbound action for one lead on one channel.
type QueueItem struct {
	ID            string         `json:"id"`
	LeadID        string         `json:"leadId"`
	Channel       domain.Channel `json:"channel"`
	CompanyName   string         `json:"companyName"`
	Recipient     string         `json:"recipient"`
	Subject       string         `json:"subject,omitempty"`
	Message       string         `json:"message"`
	ScheduledDate string         `json:"scheduledDate"`
	Status        Status         `json:"status"`
	Order         int            `json:"order"`
	RetryCount    int            `json:"retryCount"`
	Error         string         `json:"error,omitempty"`
	SentAt        *time.Time     `json:"sentAt,omitempty"`
}

// DayOf formats t as a calendar day in t's location.
func DayOf(t time.Time) string {
	return t.Format(DayLayout)
}

// ParseDay parses a calendar day at midnight in loc.
func ParseDay(day string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DayLayout, day, loc)
}

func addDays(day string, n int) string {
	t, err := time.Parse(DayLayout, day)
	if err != nil {
		return day
	}
	return t.AddDate(0, 0, n).Format(DayLayout)
}

// Eligibility decides whether a lead may be queued on a channel.
type Eligibility func(domain.Lead) bool

type enqueueOptions struct {
	eligible    Eligibility
	horizonDays int
	subject     string
	newID       func() string
}

// EnqueueOption customizes Enqueue.
type EnqueueOption func(*enqueueOptions)

// WithEligibility overrides the channel's default eligibility preset.
func WithEligibility(e Eligibility) EnqueueOption {
	return func(o *enqueueOptions) { o.eligible = e }
}

// WithHorizon bounds overflow to days [asOf, asOf+days).
func WithHorizon(days int) EnqueueOption {
	return func(o *enqueueOptions) {
		if days > 0 {
			o.horizonDays = days
		}
	}
}

// WithSubject sets a personalized subject template (email).
func WithSubject(subject string) EnqueueOption {
	return func(o *enqueueOptions) { o.subject = subject }
}

// WithIDGenerator replaces uuid item ids, for deterministic tests.
func WithIDGenerator(fn func() string) EnqueueOption {
	return func(o *enqueueOptions) { o.newID = fn }
}

// Enqueue assigns eligible candidates to send days on channel. Candidates
// are taken in input order; each day receives at most Quota(channel)
// committed items, counting what existing already holds for that day.
// Candidates already queued on the channel are skipped, so calling Enqueue
// again with its own output appended to existing yields nothing new.
// Candidates that do not fit within the horizon are left unscheduled.
func Enqueue(channel domain.Channel, candidates []domain.Lead, template string, existing []QueueItem, asOf time.Time, opts ...EnqueueOption) []QueueItem {
	o := enqueueOptions{
		eligible:    EligibilityFor(channel),
		horizonDays: DefaultHorizonDays,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}

	plan := newDayPlan(channel, existing)
	if plan.quota <= 0 {
		return nil
	}

	queued := queuedLeads(channel, existing)
	start := DayOf(asOf)
	offset := 0

	var out []QueueItem
	for _, lead := range candidates {
		if _, dup := queued[lead.ID]; dup || !o.eligible(lead) {
			continue
		}

		day, next, ok := plan.reserve(start, offset, o.horizonDays)
		if !ok {
			break
		}
		offset = next
		queued[lead.ID] = struct{}{}

		item := QueueItem{
			ID:            o.newID(),
			LeadID:        lead.ID,
			Channel:       channel,
			CompanyName:   lead.CompanyName,
			Recipient:     Recipient(channel, lead),
			Message:       Personalize(template, lead),
			ScheduledDate: day,
			Status:        StatusPending,
			Order:         plan.takeOrder(day),
		}
		if o.subject != "" {
			item.Subject = Personalize(o.subject, lead)
		}
		out = append(out, item)
	}
	return out
}

// queuedLeads returns the leads that hold an item on channel, whatever its
// status. Removing the item is the only way to release a lead.
func queuedLeads(channel domain.Channel, existing []QueueItem) map[string]struct{} {
	queued := make(map[string]struct{})
	for _, it := range existing {
		if it.Channel == channel {
			queued[it.LeadID] = struct{}{}
		}
	}
	return queued
}

// dayPlan tracks committed slots and next order per day for one channel.
type dayPlan struct {
	quota     int
	used      map[string]int
	nextOrder map[string]int
}

func newDayPlan(channel domain.Channel, existing []QueueItem) *dayPlan {
	p := &dayPlan{
		quota:     Quota(channel),
		used:      make(map[string]int),
		nextOrder: make(map[string]int),
	}
	for _, it := range existing {
		if it.Channel != channel {
			continue
		}
		if it.Status.Committed() {
			p.used[it.ScheduledDate]++
		}
		if it.Order+1 > p.nextOrder[it.ScheduledDate] {
			p.nextOrder[it.ScheduledDate] = it.Order + 1
		}
	}
	return p
}

// reserve finds the first day at or after start+offset with a free slot and
// claims it. It returns the day, the offset to resume from, and false once
// the horizon is exhausted.
func (p *dayPlan) reserve(start string, offset, horizon int) (string, int, bool) {
	for ; offset < horizon; offset++ {
		day := addDays(start, offset)
		if p.used[day] < p.quota {
			p.used[day]++
			return day, offset, true
		}
	}
	return "", offset, false
}

func (p *dayPlan) takeOrder(day string) int {
	order := p.nextOrder[day]
	p.nextOrder[day] = order + 1
	return order
}

// Usage is the committed load of one channel on one day.
type Usage struct {
	Channel    domain.Channel `json:"channel"`
	Date       string         `json:"date"`
	Quota      int            `json:"quota"`
	Used       int            `json:"used"`
	Remaining  int            `json:"remaining"`
	Percentage float64        `json:"percentage"`
}

// DailyUsage counts the committed items (pending, sending or sent) of
// channel scheduled on day. Enqueue, RetryFailed and Process all respect
// this same count.
func DailyUsage(queue []QueueItem, channel domain.Channel, day string) Usage {
	quota := Quota(channel)
	used := 0
	for _, it := range queue {
		if it.Channel == channel && it.ScheduledDate == day && it.Status.Committed() {
			used++
		}
	}

	u := Usage{Channel: channel, Date: day, Quota: quota, Used: used}
	u.Remaining = max(0, quota-used)
	if quota > 0 {
		u.Percentage = float64(used) * 100 / float64(quota)
	}
	return u
}

// QueueChange is a set of queue edits computed from one consistent view of
// the pipeline state. Update replaces items by id; Append adds new ones.
type QueueChange struct {
	Update []QueueItem
	Append []QueueItem
}

func (c QueueChange) Empty() bool {
	return len(c.Update) == 0 && len(c.Append) == 0
}

// QueuePlanner computes a QueueChange. It runs while the state is locked,
// so it must not call back into the store.
type QueuePlanner func(leads []domain.Lead, queue []QueueItem) (QueueChange, error)
