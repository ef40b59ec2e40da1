// Package pipeline derives automatic stage transitions from elapsed time and
// interaction history. Everything here is pure: callers decide what to do
// with the changed leads.
package pipeline

import (
	"time"

	"crescoflow/internal/leads/domain"
)

// ReactivationAfter is how long a cold or no-show lead may sit without
// contact before it moves to the reactivation pool.
const ReactivationAfter = 30 * 24 * time.Hour

// HotAfterInteractions is the interaction count at which a replied lead is hot.
const HotAfterInteractions = 3

// Rule names reported with every transition.
const (
	RuleMissedAppointment = "missed_appointment"
	RuleReactivation      = "reactivation"
	RuleEngagementDepth   = "engagement_depth"
)

// Transition describes one stage change produced by a sweep.
type Transition struct {
	LeadID string
	From   domain.Stage
	To     domain.Stage
	Rule   string
}

// Result is the outcome of a sweep. Changed holds copies of the leads with
// their new stage; Transitions lines up with Changed index by index.
type Result struct {
	Changed     []domain.Lead
	Transitions []Transition
}

// Evaluate applies the transition rules to every lead, at most one rule per
// lead, first match wins. Leads that match no rule are left out of the result.
func Evaluate(leads []domain.Lead, now time.Time) Result {
	var res Result
	for _, lead := range leads {
		next, rule, ok := Next(lead, now)
		if !ok {
			continue
		}
		changed := lead.Clone()
		changed.PipelineTag = next
		res.Changed = append(res.Changed, changed)
		res.Transitions = append(res.Transitions, Transition{
			LeadID: lead.ID,
			From:   lead.PipelineTag,
			To:     next,
			Rule:   rule,
		})
	}
	return res
}

// Next returns the stage lead should move to, the rule that fired, and
// whether any rule fired.
func Next(lead domain.Lead, now time.Time) (domain.Stage, string, bool) {
	switch {
	case missedAppointment(lead, now):
		return domain.StageNoShow, RuleMissedAppointment, true
	case dormant(lead, now):
		return domain.StageReactivation, RuleReactivation, true
	case lead.PipelineTag == domain.StageReplied && len(lead.Interactions) >= HotAfterInteractions:
		return domain.StageHot, RuleEngagementDepth, true
	}
	return lead.PipelineTag, "", false
}

// missedAppointment: booked, the meeting time has passed and nothing was
// logged at or after it. A zero scheduled date never counts as past.
func missedAppointment(lead domain.Lead, now time.Time) bool {
	if lead.PipelineTag != domain.StageAppointmentBooked || lead.ScheduledDate == nil {
		return false
	}
	scheduled := *lead.ScheduledDate
	if scheduled.IsZero() || !scheduled.Before(now) {
		return false
	}
	for _, in := range lead.Interactions {
		if !in.Timestamp.IsZero() && !in.Timestamp.Before(scheduled) {
			return false
		}
	}
	return true
}

// dormant: cold or no-show with no contact for longer than ReactivationAfter.
// A zero reference time is treated as infinitely old.
func dormant(lead domain.Lead, now time.Time) bool {
	if lead.PipelineTag != domain.StageCold && lead.PipelineTag != domain.StageNoShow {
		return false
	}
	ref := lead.ScrapedAt
	if last, ok := lead.LastInteraction(); ok {
		ref = last.Timestamp
	}
	if ref.IsZero() {
		return true
	}
	return now.Sub(ref) > ReactivationAfter
}
