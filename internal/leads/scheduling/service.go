// Package scheduling books sales appointments for leads.
package scheduling

import (
	"context"
	"strings"
	"time"

	"crescoflow/internal/events"
	"crescoflow/internal/leads/domain"
	"crescoflow/internal/leads/transport"
	"crescoflow/platform/apperr"
	"crescoflow/platform/logger"
	"crescoflow/platform/metrics"

	"github.com/google/uuid"
)

// Store is the data access scheduling needs.
type Store interface {
	UpdateLead(ctx context.Context, id string, fn func(*domain.Lead) error) (domain.Lead, error)
}

type Service struct {
	store Store
	bus   events.Bus
	log   *logger.Logger
	now   func() time.Time
}

func New(store Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, bus: bus, log: log, now: time.Now}
}

// BookAppointment moves a lead to appointment_booked and records the
// meeting time. The stage engine later flags it as a no-show when nothing is
// logged at or after that time. Closed and not interested leads cannot be booked.
func (s *Service) BookAppointment(ctx context.Context, id string, req transport.BookAppointmentRequest) (domain.Lead, error) {
	if req.ScheduledDate.IsZero() {
		return domain.Lead{}, apperr.Validation("scheduledDate is required")
	}

	now := s.now()
	at := req.ScheduledDate
	var previous domain.Stage
	updated, err := s.store.UpdateLead(ctx, id, func(l *domain.Lead) error {
		if l.PipelineTag.IsTerminal() {
			return apperr.Conflict("lead is " + string(l.PipelineTag))
		}
		previous = l.PipelineTag
		l.PipelineTag = domain.StageAppointmentBooked
		l.ScheduledDate = &at
		l.LastInteractionDate = &now

		outcome := "Afspraak gepland op " + at.Format("2006-01-02 15:04")
		if note := strings.TrimSpace(req.Note); note != "" {
			outcome += ": " + note
		}
		l.Interactions = append(l.Interactions, domain.Interaction{
			ID:        uuid.NewString(),
			Type:      domain.InteractionSystem,
			Timestamp: now,
			Outcome:   outcome,
		})
		return nil
	})
	if err != nil {
		return domain.Lead{}, err
	}

	if previous != domain.StageAppointmentBooked {
		s.log.StageChanged(id, string(previous), string(domain.StageAppointmentBooked), "appointment booked")
		metrics.RecordStageTransition(string(domain.StageAppointmentBooked))
		if s.bus != nil {
			s.bus.Publish(ctx, events.LeadStageChanged{
				BaseEvent: events.NewBaseEvent(),
				LeadID:    id,
				OldStage:  string(previous),
				NewStage:  string(domain.StageAppointmentBooked),
				Reason:    "appointment booked",
			})
		}
	}
	return updated, nil
}
