package domain

import "strings"

// SourceClassification is the canonical category of a lead's acquisition channel.
type SourceClassification string

const (
	ClassLinkedInInbound          SourceClassification = "linkedin_inbound"
	ClassLinkedInOutreachResponse SourceClassification = "linkedin_outreach_response"
	ClassWhatsAppInbound          SourceClassification = "whatsapp_inbound"
	ClassDubaiOwnerDatabase       SourceClassification = "dubai_owner_database"
	ClassReferral                 SourceClassification = "referral"
	ClassColdImported             SourceClassification = "cold_imported"
)

// AllClassifications lists the closed set of classifications.
var AllClassifications = []SourceClassification{
	ClassLinkedInInbound,
	ClassLinkedInOutreachResponse,
	ClassWhatsAppInbound,
	ClassDubaiOwnerDatabase,
	ClassReferral,
	ClassColdImported,
}

var knownClassifications = map[SourceClassification]struct{}{
	ClassLinkedInInbound:          {},
	ClassLinkedInOutreachResponse: {},
	ClassWhatsAppInbound:          {},
	ClassDubaiOwnerDatabase:       {},
	ClassReferral:                 {},
	ClassColdImported:             {},
}

// Rule tables. Initialised once, never mutated.
var (
	// restrictedSources may never receive automation.
	restrictedSources = map[SourceClassification]struct{}{
		ClassColdImported: {},
	}

	// whatsAppRestrictedSources may not be contacted over WhatsApp.
	whatsAppRestrictedSources = map[SourceClassification]struct{}{
		ClassColdImported:       {},
		ClassDubaiOwnerDatabase: {},
	}

	// emailLimitedSources receive a single automated email.
	emailLimitedSources = map[SourceClassification]struct{}{
		ClassDubaiOwnerDatabase: {},
	}

	// rawSourceClasses maps raw acquisition sources that do not depend on context.
	rawSourceClasses = map[string]SourceClassification{
		"referral":        ClassReferral,
		"walk_in":         ClassReferral,
		"cold_call":       ClassColdImported,
		"website":         ClassLinkedInInbound,
		"property_portal": ClassLinkedInInbound,
	}
)

const rawSourceSocialMedia = "social_media"

// Valid reports whether c is one of the known classifications.
func (c SourceClassification) Valid() bool {
	_, ok := knownClassifications[c]
	return ok
}

// Restricted reports whether leads of this class are excluded from automation.
func (c SourceClassification) Restricted() bool {
	_, ok := restrictedSources[c]
	return ok
}

// ParseStoredClassification reads a persisted value. Anything unrecognised
// maps to cold_imported, the most restrictive class.
func ParseStoredClassification(raw string) SourceClassification {
	c := SourceClassification(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return ClassColdImported
	}
	return c
}

// ClassifyContext carries the signals besides the raw source.
type ClassifyContext struct {
	WhatsAppInitiated bool
}

// Classify maps a raw acquisition source to its classification. It is total:
// unknown sources are cold_imported.
func Classify(rawSource string, ctx ClassifyContext) SourceClassification {
	source := strings.ToLower(strings.TrimSpace(rawSource))

	if source == rawSourceSocialMedia {
		if ctx.WhatsAppInitiated {
			return ClassWhatsAppInbound
		}
		return ClassLinkedInInbound
	}

	if c, ok := rawSourceClasses[source]; ok {
		return c
	}
	return ClassColdImported
}
