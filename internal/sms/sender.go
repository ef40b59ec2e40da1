package sms

import (
	"context"
	"errors"
	"fmt"

	"crescoflow/internal/leads/domain"
	"crescoflow/internal/outbound"
	"crescoflow/platform/phone"
)

// Gateway sends a text to a phone number.
type Gateway interface {
	SendMessage(ctx context.Context, phoneNumber, message string) (string, error)
}

// Conversations sends a text to an existing CRM contact.
type Conversations interface {
	Push(ctx context.Context, lead domain.Lead, tags []string) (string, bool)
	SendSMS(ctx context.Context, contactID, message string) error
}

// Sender is the outbound.Sender of the coldsms channel. The gateway wins
// when both routes are configured.
type Sender struct {
	gateway Gateway
	crm     Conversations
}

// NewSender returns nil when neither route is available. Pass untyped nil
// for a missing route.
func NewSender(gateway Gateway, crm Conversations) *Sender {
	if gateway == nil && crm == nil {
		return nil
	}
	return &Sender{gateway: gateway, crm: crm}
}

func (s *Sender) Send(ctx context.Context, item outbound.QueueItem, lead domain.Lead) error {
	to := item.Recipient
	if to == "" {
		to = lead.PrimaryPhone()
	}
	if !phone.IsMobile(to) {
		return fmt.Errorf("%q: %w", to, outbound.ErrNotContactable)
	}

	if s.gateway != nil {
		_, err := s.gateway.SendMessage(ctx, to, item.Message)
		return err
	}

	contactID := lead.GHLContactID
	if contactID == "" {
		id, ok := s.crm.Push(ctx, lead, nil)
		if !ok {
			return errors.New("create crm contact for sms failed")
		}
		contactID = id
	}
	return s.crm.SendSMS(ctx, contactID, item.Message)
}
