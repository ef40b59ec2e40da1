// Package management handles lead listing, manual edits and bulk imports.
// It is a vertically sliced feature package of the leads context.
package management

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"crescoflow/internal/events"
	"crescoflow/internal/exports"
	"crescoflow/internal/leads/domain"
	"crescoflow/internal/leads/transport"
	"crescoflow/platform/apperr"
	"crescoflow/platform/logger"
	"crescoflow/platform/metrics"
	"crescoflow/platform/sanitize"

	"github.com/google/uuid"
)

// Store is the slice of pipeline state management works on.
type Store interface {
	Leads() []domain.Lead
	Lead(id string) (domain.Lead, bool)
	Insert(ctx context.Context, lead domain.Lead) (domain.Lead, error)
	UpsertByCompany(ctx context.Context, lead domain.Lead) (domain.Lead, bool, error)
	UpdateLead(ctx context.Context, id string, fn func(*domain.Lead) error) (domain.Lead, error)
	ArchiveLead(ctx context.Context, id string) (domain.Lead, error)
}

// EnrichmentQueue accepts partial leads for research.
type EnrichmentQueue interface {
	PushEnrichment(leads ...domain.Lead) int
}

// ContactSource lists CRM contacts as leads.
type ContactSource interface {
	FetchContacts(ctx context.Context) ([]domain.Lead, error)
}

type Service struct {
	store      Store
	bus        events.Bus
	log        *logger.Logger
	enrichment EnrichmentQueue
	contacts   ContactSource
	now        func() time.Time
}

type Option func(*Service)

// WithEnrichment routes imported rows through the research queue instead of
// storing them as they are.
func WithEnrichment(q EnrichmentQueue) Option {
	return func(s *Service) { s.enrichment = q }
}

func WithContactSource(src ContactSource) Option {
	return func(s *Service) { s.contacts = src }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store Store, bus events.Bus, log *logger.Logger, opts ...Option) *Service {
	s := &Service{store: store, bus: bus, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the leads matching req, highest confidence first.
func (s *Service) List(req transport.ListLeadsRequest) transport.ListLeadsResponse {
	search := domain.CompanyKey(req.Search)
	sector := domain.CompanyKey(req.Sector)
	city := domain.CompanyKey(req.City)

	items := make([]domain.Lead, 0)
	for _, l := range s.store.Leads() {
		switch {
		case l.Archived && !req.IncludeArchived:
			continue
		case req.Stage != "" && string(l.PipelineTag) != req.Stage:
			continue
		case req.Channel != "" && string(l.OutboundChannel) != req.Channel:
			continue
		case sector != "" && domain.CompanyKey(l.Sector) != sector:
			continue
		case city != "" && domain.CompanyKey(l.City) != city:
			continue
		case l.ConfidenceScore < req.MinConfidence:
			continue
		case search != "" && !matches(l, search):
			continue
		}
		items = append(items, l)
	}
	slices.SortStableFunc(items, func(a, b domain.Lead) int {
		return cmp.Compare(b.ConfidenceScore, a.ConfidenceScore)
	})
	return transport.ListLeadsResponse{Items: items, Total: len(items)}
}

func matches(l domain.Lead, folded string) bool {
	for _, field := range []string{l.CompanyName, l.DecisionMakerName(), l.City, l.Sector, l.Website} {
		if strings.Contains(domain.CompanyKey(field), folded) {
			return true
		}
	}
	return false
}

func (s *Service) Get(id string) (domain.Lead, error) {
	l, ok := s.store.Lead(id)
	if !ok {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	return l, nil
}

// Create stores a manually entered lead. A lead of a known company is a conflict.
func (s *Service) Create(ctx context.Context, req transport.CreateLeadRequest) (domain.Lead, error) {
	lead := req.ToLead()
	lead.ScrapedAt = s.now()
	created, err := s.store.Insert(ctx, lead)
	if err != nil {
		return domain.Lead{}, err
	}
	s.log.Info("lead created", "lead", created.ID, "company", created.CompanyName)
	return created, nil
}

// UpdateStage is the manual override of a lead's pipeline stage. It stamps
// LastInteractionDate and publishes LeadStageChanged when the stage moved.
func (s *Service) UpdateStage(ctx context.Context, id string, req transport.UpdateStageRequest) (domain.Lead, error) {
	next := domain.Stage(req.Stage)
	if !domain.IsKnownStage(req.Stage) {
		return domain.Lead{}, apperr.Validation("unknown stage: " + req.Stage)
	}

	now := s.now()
	var previous domain.Stage
	updated, err := s.store.UpdateLead(ctx, id, func(l *domain.Lead) error {
		previous = l.PipelineTag
		l.PipelineTag = next
		l.LastInteractionDate = &now
		return nil
	})
	if err != nil {
		return domain.Lead{}, err
	}
	if previous != next {
		s.stageChanged(ctx, id, previous, next, reasonOr(req.Reason, "manual"))
	}
	return updated, nil
}

func (s *Service) stageChanged(ctx context.Context, id string, from, to domain.Stage, reason string) {
	s.log.StageChanged(id, string(from), string(to), reason)
	metrics.RecordStageTransition(string(to))
	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadStageChanged{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    id,
			OldStage:  string(from),
			NewStage:  string(to),
			Reason:    reason,
		})
	}
}

func reasonOr(reason, fallback string) string {
	if r := sanitize.Text(reason); r != "" {
		return r
	}
	return fallback
}

// AddInteraction appends a touchpoint to the lead's history.
func (s *Service) AddInteraction(ctx context.Context, id string, req transport.AddInteractionRequest) (domain.Lead, error) {
	if !domain.IsKnownInteractionType(req.Type) {
		return domain.Lead{}, apperr.Validation("unknown interaction type: " + req.Type)
	}
	at := s.now()
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		at = *req.Timestamp
	}
	return s.store.UpdateLead(ctx, id, func(l *domain.Lead) error {
		l.Interactions = append(l.Interactions, domain.Interaction{
			ID:        uuid.NewString(),
			Type:      domain.InteractionType(req.Type),
			Timestamp: at,
			Outcome:   sanitize.Text(req.Outcome),
		})
		return nil
	})
}

func (s *Service) Archive(ctx context.Context, id string) (domain.Lead, error) {
	l, err := s.store.ArchiveLead(ctx, id)
	if err != nil {
		return domain.Lead{}, err
	}
	s.log.Info("lead archived", "lead", id)
	return l, nil
}

// Stats counts active leads per stage and channel.
func (s *Service) Stats() transport.StatsResponse {
	res := transport.StatsResponse{
		ByStage:   make(map[string]int, len(domain.Stages)),
		ByChannel: make(map[string]int),
	}
	for _, st := range domain.Stages {
		res.ByStage[string(st)] = 0
	}

	confidence := 0
	for _, l := range s.store.Leads() {
		if l.Archived {
			res.Archived++
			continue
		}
		res.Total++
		res.ByStage[string(l.PipelineTag)]++
		res.ByChannel[string(l.OutboundChannel)]++
		confidence += l.ConfidenceScore
		if l.GHLSynced {
			res.Synced++
		}
	}
	if res.Total > 0 {
		res.AverageConfidence = float64(confidence) / float64(res.Total)
	}
	return res
}

// Export returns the active leads in export order.
func (s *Service) Export() []domain.Lead {
	return s.List(transport.ListLeadsRequest{}).Items
}

// ImportCSV reads an import file. With an enrichment queue every row is
// queued for research; without one the rows are stored as partial leads and
// rows of known companies are skipped.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (transport.ImportResponse, error) {
	parsed, err := exports.ParseImport(r)
	if err != nil {
		return transport.ImportResponse{}, apperr.BadRequest(err.Error())
	}
	res := transport.ImportResponse{Skipped: parsed.Skipped}

	if s.enrichment != nil {
		res.Queued = s.enrichment.PushEnrichment(parsed.Leads...)
		s.log.Info("csv import queued", "queued", res.Queued, "skipped", res.Skipped)
		return res, nil
	}

	now := s.now()
	for _, l := range parsed.Leads {
		l.ScrapedAt = now
		l.ConfidenceScore = domain.CompletenessScore(l)
		if _, err := s.store.Insert(ctx, l); err != nil {
			s.log.Warn("csv row rejected", "company", l.CompanyName, "error", err)
			res.Skipped++
			continue
		}
		res.Inserted++
	}
	s.log.Info("csv import stored", "inserted", res.Inserted, "skipped", res.Skipped)
	return res, nil
}

// ImportFromCRM pulls every CRM contact and upserts it by company.
func (s *Service) ImportFromCRM(ctx context.Context) (transport.GHLImportResponse, error) {
	if s.contacts == nil {
		return transport.GHLImportResponse{}, apperr.Unavailable("ghl is not configured")
	}
	fetched, err := s.contacts.FetchContacts(ctx)
	if err != nil {
		return transport.GHLImportResponse{}, fmt.Errorf("fetch ghl contacts: %w", err)
	}

	res := transport.GHLImportResponse{Fetched: len(fetched)}
	for _, l := range fetched {
		_, created, err := s.store.UpsertByCompany(ctx, l)
		switch {
		case err != nil:
			res.Skipped++
		case created:
			res.Created++
		default:
			res.Updated++
		}
	}
	s.log.Info("ghl contacts imported", "fetched", res.Fetched, "created", res.Created, "updated", res.Updated)
	return res, nil
}
