// Package alerts emails operators when the outreach pipeline hits
// conditions that need human attention: suppressed contacts and routing
// configuration holes.
package alerts

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"outreach_backend/internal/events"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

type Service struct {
	cfg config.AlertsConfig
	log *logger.Logger
}

func New(cfg config.AlertsConfig, log *logger.Logger) *Service {
	return &Service{cfg: cfg, log: log}
}

// Register subscribes the alert handlers on the event bus. A no-op when
// SMTP is not configured.
func (s *Service) Register(bus events.Bus) {
	if !s.cfg.IsAlertsEnabled() {
		s.log.Info("operator alerts disabled: smtp not configured")
		return
	}

	bus.Subscribe("compliance.contact.blocked", events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		evt, ok := e.(events.ContactBlocked)
		if !ok {
			return nil
		}
		subject := "Outbound attempt suppressed by do-not-contact record"
		body := fmt.Sprintf(
			"An outbound %s attempt to contact %s (organization %s) was blocked by a do-not-contact record with scope %q.\n\nNo further automated attempts will be made for this contact.",
			evt.Channel, evt.ContactID, evt.OrganizationID, evt.MatchedScope,
		)
		return s.send(ctx, subject, body)
	}))

	bus.Subscribe("routing.rules.no_match", events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		evt, ok := e.(events.RoutingMisconfigured)
		if !ok {
			return nil
		}
		subject := "Routing query matched no rule"
		body := fmt.Sprintf(
			"A routing query for organization %s matched none of its %d active rules (department %q).\n\nAdd a catch-all rule so every call has somewhere to go.",
			evt.OrganizationID, evt.ActiveRules, evt.Department,
		)
		return s.send(ctx, subject, body)
	}))
}

func (s *Service) send(ctx context.Context, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.GetAlertFromAddress()); err != nil {
		return fmt.Errorf("set alert sender: %w", err)
	}
	if err := msg.To(s.cfg.GetAlertToAddresses()...); err != nil {
		return fmt.Errorf("set alert recipients: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(s.cfg.GetSMTPPort()),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.GetSMTPUsername()),
		mail.WithPassword(s.cfg.GetSMTPPassword()),
	}
	client, err := mail.NewClient(s.cfg.GetSMTPHost(), opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}
	s.log.Info("operator alert sent", "subject", subject)
	return nil
}
