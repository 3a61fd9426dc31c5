// Package transport holds the request DTOs of the governance API.
package transport

import (
	"crm_automation_backend/internal/governance/domain"

	"github.com/google/uuid"
)

// TriggerRequest is posted by the CRM when something happens to a lead.
type TriggerRequest struct {
	Type              string  `json:"type" validate:"required,oneof=new_lead status_changed manual_stop manual_verify"`
	LeadID            string  `json:"leadId" validate:"required,uuid"`
	Reason            string  `json:"reason" validate:"max=500"`
	RawSource         *string `json:"rawSource" validate:"omitempty,max=64"`
	WhatsAppInitiated *bool   `json:"whatsappInitiated"`
	Country           *string `json:"country" validate:"omitempty,max=64"`
	Phone             *string `json:"phone" validate:"omitempty,max=32"`
	Email             *string `json:"email" validate:"omitempty,email,max=254"`
}

// ClassifyRequest optionally overrides stored fields for one classification.
type ClassifyRequest struct {
	RawSource         *string `json:"rawSource" validate:"omitempty,max=64"`
	WhatsAppInitiated *bool   `json:"whatsappInitiated"`
	Country           *string `json:"country" validate:"omitempty,max=64"`
	Phone             *string `json:"phone" validate:"omitempty,max=32"`
	Email             *string `json:"email" validate:"omitempty,email,max=254"`
}

type StopRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// EvaluateRequest is a lead snapshot evaluated without touching storage.
type EvaluateRequest struct {
	LeadID            string  `json:"leadId" validate:"omitempty,uuid"`
	Status            string  `json:"status" validate:"required,oneof=new contacted viewing viewed negotiation closed lost"`
	RawSource         string  `json:"rawSource" validate:"max=64"`
	Classification    *string `json:"classification" validate:"omitempty,oneof=linkedin_inbound linkedin_outreach_response whatsapp_inbound dubai_owner_database referral cold_imported"`
	ContactVerified   bool    `json:"contactVerified"`
	AutomationStopped bool    `json:"automationStopped"`
	EmailBounce       bool    `json:"emailBounce"`
	WhatsAppInitiated bool    `json:"whatsappInitiated"`
	WhatsAppOptIn     bool    `json:"whatsappOptIn"`
}

// Snapshot converts a validated request into a domain snapshot.
func (r EvaluateRequest) Snapshot() (domain.LeadSnapshot, error) {
	status, err := domain.ParseStatus(r.Status)
	if err != nil {
		return domain.LeadSnapshot{}, err
	}

	lead := domain.LeadSnapshot{
		Status:            status,
		RawSource:         r.RawSource,
		ContactVerified:   r.ContactVerified,
		AutomationStopped: r.AutomationStopped,
		EmailBounce:       r.EmailBounce,
		WhatsAppInitiated: r.WhatsAppInitiated,
		WhatsAppOptIn:     r.WhatsAppOptIn,
	}
	if r.LeadID != "" {
		if lead.ID, err = uuid.Parse(r.LeadID); err != nil {
			return domain.LeadSnapshot{}, err
		}
	}
	if r.Classification != nil {
		c := domain.ParseStoredClassification(*r.Classification)
		lead.Classification = &c
	}
	return lead, nil
}

type EvaluateBatchRequest struct {
	LeadIDs []string `json:"leadIds" validate:"required,min=1,max=200,dive,uuid"`
}

// ParseIDs returns the lead ids; call after validation.
func (r EvaluateBatchRequest) ParseIDs() ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(r.LeadIDs))
	for _, raw := range r.LeadIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

type VerifyResponse struct {
	LeadID          uuid.UUID `json:"leadId"`
	ContactVerified bool      `json:"contactVerified"`
}
