package scheduler

import (
	"encoding/json"

	"crescoflow/internal/leads/domain"

	"github.com/hibiken/asynq"
)

const (
	TaskPipelineSweep       = "pipeline.sweep"
	TaskOutboundDispatch    = "outbound.dispatch"
	TaskOutboundRetry       = "outbound.retry"
	TaskInstantlyInboxCheck = "instantly.inbox_check"
	TaskGHLSyncLead         = "ghl.sync_lead"
)

type ChannelPayload struct {
	Channel domain.Channel `json:"channel"`
}

type LeadSyncPayload struct {
	LeadID string `json:"leadId"`
}

func NewPipelineSweepTask() *asynq.Task {
	return asynq.NewTask(TaskPipelineSweep, nil)
}

func NewInboxCheckTask() *asynq.Task {
	return asynq.NewTask(TaskInstantlyInboxCheck, nil)
}

func NewDispatchTask(channel domain.Channel) (*asynq.Task, error) {
	return newChannelTask(TaskOutboundDispatch, channel)
}

func NewRetryTask(channel domain.Channel) (*asynq.Task, error) {
	return newChannelTask(TaskOutboundRetry, channel)
}

// DispatchTaskID is the task id shared by every dispatch run of channel, so
// at most one of them is queued or running at a time.
func DispatchTaskID(channel domain.Channel) string {
	return "dispatch:" + string(channel)
}

func newChannelTask(typename string, channel domain.Channel) (*asynq.Task, error) {
	data, err := json.Marshal(ChannelPayload{Channel: channel})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typename, data), nil
}

func ParseChannelPayload(task *asynq.Task) (ChannelPayload, error) {
	var payload ChannelPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ChannelPayload{}, err
	}
	return payload, nil
}

func NewGHLSyncTask(payload LeadSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGHLSyncLead, data), nil
}

func ParseLeadSyncPayload(task *asynq.Task) (LeadSyncPayload, error) {
	var payload LeadSyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadSyncPayload{}, err
	}
	return payload, nil
}
