// Package events defines the pipeline events modules publish to each
// other. The bus itself lives in platform/events.
package events

import (
	"crescoflow/platform/events"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

const (
	NameLeadStageChanged = "leads.lead.stage_changed"
	NameLeadEnriched     = "leads.lead.enriched"
	NameLeadReplied      = "leads.lead.replied"
	NameQueueItemSent    = "outbound.item.sent"
	NameQueueItemFailed  = "outbound.item.failed"
)

// LeadStageChanged is published whenever a lead's pipeline tag changes,
// either by the stage engine sweep or by a manual override.
type LeadStageChanged struct {
	BaseEvent
	LeadID   string `json:"leadId"`
	OldStage string `json:"oldStage"`
	NewStage string `json:"newStage"`
	Reason   string `json:"reason"`
}

func (e LeadStageChanged) EventName() string { return NameLeadStageChanged }

// LeadEnriched is published after the worker loop upserts an enriched lead.
type LeadEnriched struct {
	BaseEvent
	LeadID      string `json:"leadId"`
	CompanyName string `json:"companyName"`
	Created     bool   `json:"created"`
}

func (e LeadEnriched) EventName() string { return NameLeadEnriched }

// LeadReplied is published when the inbox check detects a reply.
type LeadReplied struct {
	BaseEvent
	LeadID string `json:"leadId"`
	Source string `json:"source"`
}

func (e LeadReplied) EventName() string { return NameLeadReplied }

// QueueItemSent is published after an outbound queue item is delivered.
type QueueItemSent struct {
	BaseEvent
	ItemID  string `json:"itemId"`
	LeadID  string `json:"leadId"`
	Channel string `json:"channel"`
}

func (e QueueItemSent) EventName() string { return NameQueueItemSent }

// QueueItemFailed is published when delivery of a queue item fails.
type QueueItemFailed struct {
	BaseEvent
	ItemID  string `json:"itemId"`
	LeadID  string `json:"leadId"`
	Channel string `json:"channel"`
	Error   string `json:"error"`
}

func (e QueueItemFailed) EventName() string { return NameQueueItemFailed }
