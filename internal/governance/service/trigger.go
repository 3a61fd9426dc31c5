package service

import (
	"context"
	"fmt"

	"crm_automation_backend/internal/governance/domain"
	"crm_automation_backend/platform/apperr"
	"crm_automation_backend/platform/logger"

	"github.com/google/uuid"
)

// TriggerType names the event that started governance work for a lead.
type TriggerType string

const (
	TriggerNewLead       TriggerType = "new_lead"
	TriggerStatusChanged TriggerType = "status_changed"
	TriggerManualStop    TriggerType = "manual_stop"
	TriggerManualVerify  TriggerType = "manual_verify"
)

const defaultManualStopReason = "Automation stopped manually"

// Trigger is one inbound governance trigger.
type Trigger struct {
	Type   TriggerType
	LeadID uuid.UUID
	Reason string
	Input  ClassifyInput
}

// TriggerResult collects whatever each step produced.
type TriggerResult struct {
	Type                TriggerType                `json:"type"`
	LeadID              uuid.UUID                  `json:"leadId"`
	Derived             *Derived                   `json:"derived,omitempty"`
	ClassificationError string                     `json:"classificationError,omitempty"`
	Stop                *StopOutcome               `json:"stop,omitempty"`
	Decision            *domain.AutomationDecision `json:"decision,omitempty"`
}

// HandleTrigger is the single entry point for lead lifecycle triggers. Every
// path ends with a fresh evaluation so callers see the resulting permissions.
func (o *Orchestrator) HandleTrigger(ctx context.Context, t Trigger) (TriggerResult, error) {
	ctx = context.WithValue(ctx, logger.TriggerKey, string(t.Type))
	result := TriggerResult{Type: t.Type, LeadID: t.LeadID}

	switch t.Type {
	case TriggerNewLead:
		derived, err := o.DetectAndClassify(ctx, t.LeadID, t.Input)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return result, err
			}
			// Evaluation recomputes the classification in memory.
			result.ClassificationError = err.Error()
			o.log.WithContext(ctx).Warn("classification not persisted", "lead_id", t.LeadID, "error", err)
		} else {
			result.Derived = &derived
		}

	case TriggerStatusChanged:
		outcome, err := o.EnforceStopConditions(ctx, t.LeadID)
		if err != nil {
			return result, err
		}
		result.Stop = &outcome

	case TriggerManualStop:
		reason := t.Reason
		if reason == "" {
			reason = defaultManualStopReason
		}
		ack, err := o.RequestStop(ctx, t.LeadID, reason)
		if err != nil {
			return result, err
		}
		result.Stop = &StopOutcome{
			Decision: domain.StopDecision{ShouldStop: true, Reason: reason},
			Ack:      &ack,
		}

	case TriggerManualVerify:
		if _, err := o.VerifyContact(ctx, t.LeadID); err != nil {
			return result, err
		}

	default:
		return result, apperr.Validation(fmt.Sprintf("unknown trigger type %q", t.Type))
	}

	decision, err := o.Evaluate(ctx, t.LeadID)
	if err != nil {
		return result, err
	}
	result.Decision = &decision
	return result, nil
}

// ParseTriggerType rejects unknown trigger names.
func ParseTriggerType(raw string) (TriggerType, error) {
	switch t := TriggerType(raw); t {
	case TriggerNewLead, TriggerStatusChanged, TriggerManualStop, TriggerManualVerify:
		return t, nil
	default:
		return "", apperr.Validation(fmt.Sprintf("unknown trigger type %q", raw))
	}
}

