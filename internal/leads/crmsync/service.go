// Package crmsync mirrors leads to the GHL CRM, either inline or through
// the background task queue.
package crmsync

import (
	"context"
	"errors"

	"crescoflow/internal/events"
	"crescoflow/internal/leads/domain"
	"crescoflow/internal/leads/transport"
	"crescoflow/platform/apperr"
	"crescoflow/platform/logger"
)

var errPushFailed = errors.New("ghl push failed")

// Pusher creates or updates the CRM contact of a lead.
type Pusher interface {
	Push(ctx context.Context, lead domain.Lead, tags []string) (string, bool)
}

type Store interface {
	Lead(id string) (domain.Lead, bool)
	UpdateLead(ctx context.Context, id string, fn func(*domain.Lead) error) (domain.Lead, error)
}

// Queue defers a sync to the task queue, which retries failed pushes.
type Queue interface {
	EnqueueGHLSync(ctx context.Context, leadID string) error
}

type Service struct {
	pusher Pusher
	store  Store
	queue  Queue
	log    *logger.Logger
}

// New builds the sync service. pusher and queue may be nil; pass untyped nil.
func New(pusher Pusher, store Store, queue Queue, log *logger.Logger) *Service {
	return &Service{pusher: pusher, store: store, queue: queue, log: log}
}

// Enabled reports whether a CRM is configured.
func (s *Service) Enabled() bool {
	return s.pusher != nil
}

// SyncLead pushes the current version of a lead and records the contact id.
// A failed push is returned as an error so the caller can retry.
func (s *Service) SyncLead(ctx context.Context, id string) error {
	_, err := s.sync(ctx, id)
	return err
}

func (s *Service) sync(ctx context.Context, id string) (string, error) {
	if s.pusher == nil {
		return "", apperr.Unavailable("ghl is not configured")
	}
	lead, ok := s.store.Lead(id)
	if !ok {
		return "", apperr.NotFound("lead not found")
	}

	contactID, ok := s.pusher.Push(ctx, lead, nil)
	if !ok {
		return "", errPushFailed
	}
	if _, err := s.store.UpdateLead(ctx, id, func(l *domain.Lead) error {
		l.GHLSynced = true
		if l.GHLContactID == "" {
			l.GHLContactID = contactID
		}
		return nil
	}); err != nil {
		return "", err
	}
	return contactID, nil
}

// Request syncs a lead through the queue when one is configured, inline otherwise.
func (s *Service) Request(ctx context.Context, id string) (transport.SyncResponse, error) {
	if s.pusher == nil {
		return transport.SyncResponse{}, apperr.Unavailable("ghl is not configured")
	}
	if _, ok := s.store.Lead(id); !ok {
		return transport.SyncResponse{}, apperr.NotFound("lead not found")
	}

	if s.queue != nil {
		if err := s.queue.EnqueueGHLSync(ctx, id); err != nil {
			return transport.SyncResponse{}, err
		}
		return transport.SyncResponse{LeadID: id, Queued: true}, nil
	}

	contactID, err := s.sync(ctx, id)
	if errors.Is(err, errPushFailed) {
		return transport.SyncResponse{}, apperr.Wrap(apperr.KindUnavailable, "ghl push failed", err)
	}
	if err != nil {
		return transport.SyncResponse{}, err
	}
	return transport.SyncResponse{LeadID: id, ContactID: contactID}, nil
}

// HandleStageChanged mirrors every stage change to the CRM.
func (s *Service) HandleStageChanged(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadStageChanged)
	if !ok || s.pusher == nil {
		return nil
	}
	if _, err := s.Request(ctx, e.LeadID); err != nil && !apperr.Is(err, apperr.KindNotFound) {
		s.log.Warn("ghl sync after stage change failed", "lead", e.LeadID, "error", err)
	}
	return nil
}
