package domain

import "github.com/google/uuid"

// LeadSnapshot is the read-only view of a lead the evaluators work on.
type LeadSnapshot struct {
	ID                uuid.UUID
	Status            LeadStatus
	RawSource         string
	Classification    *SourceClassification
	ContactVerified   bool
	AutomationStopped bool
	EmailBounce       bool
	WhatsAppInitiated bool
	WhatsAppOptIn     bool
	DetectedCountry   *string
	DetectedTimezone  *string

	// Geo inputs, only read by the geo resolver.
	Country *string
	Phone   string
	Email   string

	// Version guards read-modify-write cycles in the repository.
	Version int64
}

// EffectiveClassification returns the stored classification, or the one
// derived from the raw source when none has been persisted yet.
func (l LeadSnapshot) EffectiveClassification() SourceClassification {
	if l.Classification != nil && l.Classification.Valid() {
		return *l.Classification
	}
	return Classify(l.RawSource, ClassifyContext{WhatsAppInitiated: l.WhatsAppInitiated})
}
