// Package leads provides the lead management bounded context module.
// This file wires the leads services and registers their routes.
package leads

import (
	"crescoflow/internal/events"
	apphttp "crescoflow/internal/http"
	"crescoflow/internal/leads/crmsync"
	"crescoflow/internal/leads/handler"
	"crescoflow/internal/leads/maintenance"
	"crescoflow/internal/leads/management"
	"crescoflow/internal/leads/scheduling"
	"crescoflow/internal/leads/transport"
	"crescoflow/internal/leadstore"
	"crescoflow/platform/logger"
	"crescoflow/platform/validator"
)

// Deps are the collaborators of the leads module. The optional ones are
// left nil when the integration behind them is not configured.
type Deps struct {
	Store     *leadstore.State
	Bus       events.Bus
	Validator *validator.Validator
	Log       *logger.Logger

	Enrichment management.EnrichmentQueue
	Contacts   management.ContactSource
	CRM        crmsync.Pusher
	SyncQueue  crmsync.Queue
	Publisher  handler.ExportPublisher
}

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler    *handler.Handler
	management *management.Service
	scheduling *scheduling.Service
	sync       *crmsync.Service
	sweeper    *maintenance.Sweeper
}

// NewModule creates the leads services and subscribes the CRM sync to stage changes.
func NewModule(d Deps) (*Module, error) {
	if err := transport.RegisterValidations(d.Validator); err != nil {
		return nil, err
	}

	opts := []management.Option{}
	if d.Enrichment != nil {
		opts = append(opts, management.WithEnrichment(d.Enrichment))
	}
	if d.Contacts != nil {
		opts = append(opts, management.WithContactSource(d.Contacts))
	}

	mgmtSvc := management.New(d.Store, d.Bus, d.Log, opts...)
	schedulingSvc := scheduling.New(d.Store, d.Bus, d.Log)
	syncSvc := crmsync.New(d.CRM, d.Store, d.SyncQueue, d.Log)
	sweeper := maintenance.NewSweeper(d.Store, d.Bus, d.Log)

	if syncSvc.Enabled() {
		d.Bus.Subscribe(events.NameLeadStageChanged, events.HandlerFunc(syncSvc.HandleStageChanged))
	}

	return &Module{
		handler:    handler.New(mgmtSvc, schedulingSvc, syncSvc, d.Publisher, d.Validator),
		management: mgmtSvc,
		scheduling: schedulingSvc,
		sync:       syncSvc,
		sweeper:    sweeper,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// RegisterRoutes mounts lead routes on the protected group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
}

// Sweeper is the stage engine pass used by the pipeline module and the scheduler.
func (m *Module) Sweeper() *maintenance.Sweeper {
	return m.sweeper
}

// Sync is the CRM sync service; the scheduler worker runs its queued tasks.
func (m *Module) Sync() *crmsync.Service {
	return m.sync
}
