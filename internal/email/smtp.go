// Package email delivers the cold email channel over SMTP.
package email

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"crescoflow/internal/leads/domain"
	"crescoflow/internal/outbound"
	"crescoflow/platform/config"
	"crescoflow/platform/logger"
	"crescoflow/platform/metrics"

	gomail "github.com/wneessen/go-mail"
)

// DefaultSubject is used when neither the queue item nor the template sets one.
const DefaultSubject = "Even kennismaken"

// SMTPSender is the outbound.Sender of the coldemail channel.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	log       *logger.Logger
}

// NewSMTPSender returns nil when SMTP is not configured.
func NewSMTPSender(cfg config.SMTPConfig, log *logger.Logger) *SMTPSender {
	if !cfg.IsSMTPEnabled() {
		return nil
	}
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		log:       log.WithComponent("email"),
	}
}

// Send delivers one queue item to the lead's decision maker, or to the
// company address when no personal address is known.
func (s *SMTPSender) Send(ctx context.Context, item outbound.QueueItem, lead domain.Lead) error {
	to := strings.TrimSpace(item.Recipient)
	if to == "" {
		to = lead.PrimaryEmail()
	}
	if to == "" {
		return fmt.Errorf("lead %s has no email address: %w", lead.ID, outbound.ErrNotContactable)
	}

	msg, err := s.buildMessage(to, item)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		metrics.RecordIntegrationError("smtp")
		s.log.ExternalCallFailed("smtp", "send", err)
		return fmt.Errorf("smtp send: %w", err)
	}

	s.log.Info("cold email sent", "lead", lead.ID, "to", to)
	return nil
}

func (s *SMTPSender) buildMessage(to string, item outbound.QueueItem) (*gomail.Msg, error) {
	subject := strings.TrimSpace(item.Subject)
	if subject == "" {
		subject = DefaultSubject
	}

	html, err := renderHTML(subject, item.Message, s.fromName)
	if err != nil {
		return nil, err
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, item.Message)
	msg.AddAlternativeString(gomail.TypeTextHTML, html)
	return msg, nil
}
