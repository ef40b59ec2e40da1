package scheduler

import (
	"context"
	"fmt"

	"crescoflow/internal/outbound"
	"crescoflow/platform/config"
	"crescoflow/platform/logger"

	"github.com/hibiken/asynq"
)

// Entry is one periodic task.
type Entry struct {
	Spec string
	Task *asynq.Task
	Opts []asynq.Option
}

// PeriodicEntries lists the recurring jobs. Dispatch runs every quarter
// hour during office hours on weekdays; failed items are re-placed each
// morning before the first dispatch.
func PeriodicEntries() ([]Entry, error) {
	entries := []Entry{
		{Spec: "@every 1m", Task: NewPipelineSweepTask()},
		{Spec: "@every 15m", Task: NewInboxCheckTask()},
	}
	for _, channel := range outbound.QueueChannels() {
		dispatch, err := NewDispatchTask(channel)
		if err != nil {
			return nil, err
		}
		retry, err := NewRetryTask(channel)
		if err != nil {
			return nil, err
		}
		entries = append(entries,
			Entry{Spec: "*/15 9-17 * * 1-5", Task: dispatch, Opts: []asynq.Option{
				asynq.TaskID(DispatchTaskID(channel)),
				asynq.Timeout(dispatchTimeout),
			}},
			Entry{Spec: "45 8 * * 1-5", Task: retry},
		)
	}
	return entries, nil
}

// Periodic enqueues the recurring jobs. Run a single instance of it.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	opt, queue, err := connection(cfg)
	if err != nil {
		return nil, err
	}

	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{})
	entries, err := PeriodicEntries()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		opts := append([]asynq.Option{asynq.Queue(queue), asynq.MaxRetry(0)}, e.Opts...)
		if _, err := s.Register(e.Spec, e.Task, opts...); err != nil {
			return nil, fmt.Errorf("register %s (%s): %w", e.Task.Type(), e.Spec, err)
		}
	}
	return &Periodic{scheduler: s, log: log.WithComponent("periodic")}, nil
}

// Run blocks until ctx is done.
func (p *Periodic) Run(ctx context.Context) error {
	if err := p.scheduler.Start(); err != nil {
		return err
	}
	p.log.Info("periodic scheduler started")
	<-ctx.Done()
	p.scheduler.Shutdown()
	return nil
}
