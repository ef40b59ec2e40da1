package scheduler

import (
	"context"
	"fmt"

	"crescoflow/internal/instantly"
	"crescoflow/internal/leads/domain"
	"crescoflow/internal/outbound"
	"crescoflow/platform/apperr"
	"crescoflow/platform/config"
	"crescoflow/platform/logger"

	"github.com/hibiken/asynq"
)

// Sweeper applies one stage engine pass and returns how many leads moved.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type Dispatcher interface {
	Process(ctx context.Context, channel domain.Channel) (outbound.DispatchResult, error)
	RetryFailed(ctx context.Context, channel domain.Channel) (int, error)
}

type InboxChecker interface {
	Check(ctx context.Context) (instantly.InboxCheckResult, error)
}

// LeadSyncer pushes one lead to the CRM and records the result.
type LeadSyncer interface {
	SyncLead(ctx context.Context, leadID string) error
}

// Jobs are the handlers' collaborators. Nil members disable their task.
type Jobs struct {
	Sweeper    Sweeper
	Dispatcher Dispatcher
	Inbox      InboxChecker
	Syncer     LeadSyncer
}

// Worker processes queued tasks. It must run in the process that owns the
// pipeline state.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	jobs   Jobs
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, jobs Jobs, log *logger.Logger) (*Worker, error) {
	opt, queue, err := connection(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 4
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := &Worker{
		server: server,
		jobs:   jobs,
		log:    log.WithComponent("scheduler"),
	}
	w.mux = w.routes()
	return w, nil
}

func (w *Worker) routes() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskPipelineSweep, w.handleSweep)
	mux.HandleFunc(TaskOutboundDispatch, w.handleDispatch)
	mux.HandleFunc(TaskOutboundRetry, w.handleRetry)
	mux.HandleFunc(TaskInstantlyInboxCheck, w.handleInboxCheck)
	mux.HandleFunc(TaskGHLSyncLead, w.handleGHLSync)
	return mux
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleSweep(ctx context.Context, _ *asynq.Task) error {
	if w.jobs.Sweeper == nil {
		return nil
	}
	_, err := w.jobs.Sweeper.Sweep(ctx)
	return err
}

func (w *Worker) handleDispatch(ctx context.Context, task *asynq.Task) error {
	if w.jobs.Dispatcher == nil {
		return nil
	}
	payload, err := ParseChannelPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	res, err := w.jobs.Dispatcher.Process(ctx, payload.Channel)
	if apperr.Is(err, apperr.KindUnavailable) {
		w.log.Debug("dispatch skipped, channel has no sender", "channel", payload.Channel)
		return nil
	}
	if err != nil {
		return err
	}
	w.log.Info("dispatch finished", "channel", payload.Channel, "sent", res.Sent, "failed", res.Failed, "skipped", res.Skipped)
	return nil
}

func (w *Worker) handleRetry(ctx context.Context, task *asynq.Task) error {
	if w.jobs.Dispatcher == nil {
		return nil
	}
	payload, err := ParseChannelPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	_, err = w.jobs.Dispatcher.RetryFailed(ctx, payload.Channel)
	return err
}

func (w *Worker) handleInboxCheck(ctx context.Context, _ *asynq.Task) error {
	if w.jobs.Inbox == nil {
		return nil
	}
	_, err := w.jobs.Inbox.Check(ctx)
	return err
}

func (w *Worker) handleGHLSync(ctx context.Context, task *asynq.Task) error {
	if w.jobs.Syncer == nil {
		return nil
	}
	payload, err := ParseLeadSyncPayload(task)
	if err != nil || payload.LeadID == "" {
		return fmt.Errorf("invalid ghl sync payload: %w", asynq.SkipRetry)
	}

	err = w.jobs.Syncer.SyncLead(ctx, payload.LeadID)
	if apperr.Is(err, apperr.KindNotFound) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}
