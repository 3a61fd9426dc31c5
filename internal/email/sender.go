// Package email delivers operator alerts about governance failures.
package email

import (
	"context"
	"fmt"
	"time"

	"crm_automation_backend/internal/events"
	"crm_automation_backend/platform/config"
	"crm_automation_backend/platform/logger"
)

// StopFailureAlert describes a stop the dispatch service never confirmed.
type StopFailureAlert struct {
	LeadID     string
	Reason     string
	Error      string
	OccurredAt time.Time
}

type Sender interface {
	SendStopFailureAlert(ctx context.Context, alert StopFailureAlert) error
}

type NoopSender struct{}

func (NoopSender) SendStopFailureAlert(ctx context.Context, alert StopFailureAlert) error {
	return nil
}

// NewSender returns an SMTP sender when alerting is configured.
func NewSender(cfg config.AlertConfig) Sender {
	if !cfg.IsAlertingEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(
		cfg.GetAlertSMTPHost(),
		cfg.GetAlertSMTPPort(),
		cfg.GetAlertSMTPUsername(),
		cfg.GetAlertSMTPPassword(),
		cfg.GetAlertFromAddress(),
		"CRM Automation",
		cfg.GetAlertRecipients(),
	)
}

func renderStopFailure(alert StopFailureAlert) (subject, body string, err error) {
	body, err = renderEmailTemplate("stop_failure.html", stopFailureEmailData{
		baseEmailData: baseEmailData{
			Title:   "Automation stop not confirmed",
			Heading: "Automation stop not confirmed",
		},
		LeadID:     alert.LeadID,
		Reason:     alert.Reason,
		Error:      alert.Error,
		OccurredAt: alert.OccurredAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", "", err
	}
	return fmt.Sprintf(subjectStopFailureFmt, alert.LeadID), body, nil
}

// SubscribeAlerts mails operators whenever a stop request fails.
func SubscribeAlerts(bus events.Bus, sender Sender, log *logger.Logger) {
	bus.Subscribe(events.StopRequestFailed{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.StopRequestFailed)
		if !ok {
			return nil
		}

		err := sender.SendStopFailureAlert(ctx, StopFailureAlert{
			LeadID:     e.LeadID.String(),
			Reason:     e.Reason,
			Error:      e.Error,
			OccurredAt: e.OccurredAt(),
		})
		if err != nil {
			log.Error("stop failure alert not sent", "lead_id", e.LeadID, "error", err)
		}
		return err
	}))
}
