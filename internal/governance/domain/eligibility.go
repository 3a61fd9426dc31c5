package domain

import "fmt"

// EligibilityDecision says whether automation may be triggered for a lead.
// Reason is set only when Eligible is false.
type EligibilityDecision struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

const (
	ReasonPreviouslyStopped = "Automation previously stopped for this lead"
	ReasonEmailBounced      = "Email bounced — automation permanently disabled"
	ReasonNotQualified      = "Lead must be Qualified or have initiated contact"
	ReasonNotVerified       = "Contact details not verified"
)

func restrictedSourceReason(c SourceClassification) string {
	return fmt.Sprintf("Source %s is restricted from automation", c)
}

// EvaluateEligibility runs the checks in order; the first failure decides.
// The order is part of the contract because the reason is shown to users.
func EvaluateEligibility(lead LeadSnapshot) EligibilityDecision {
	if lead.AutomationStopped {
		return ineligible(ReasonPreviouslyStopped)
	}

	if lead.EmailBounce {
		return ineligible(ReasonEmailBounced)
	}

	if class := lead.EffectiveClassification(); class.Restricted() {
		return ineligible(restrictedSourceReason(class))
	}

	if lead.Status != StatusContacted && !lead.WhatsAppInitiated {
		return ineligible(ReasonNotQualified)
	}

	if !lead.ContactVerified {
		return ineligible(ReasonNotVerified)
	}

	return EligibilityDecision{Eligible: true}
}

func ineligible(reason string) EligibilityDecision {
	return EligibilityDecision{Eligible: false, Reason: reason}
}
