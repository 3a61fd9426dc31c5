package domain

// Channel is an outbound automation channel.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
)

// Unlimited marks a permission with no ceiling imposed by the rule set.
const Unlimited = -1

const (
	defaultMaxEmails = 2
	limitedMaxEmails = 1
)

// ChannelPermission is the allow/deny and ceiling for one channel.
// MaxMessages is a limit, not a counter: the sender tracks what it has sent.
type ChannelPermission struct {
	Allowed     bool `json:"allowed"`
	MaxMessages int  `json:"maxMessages"`
}

var denied = ChannelPermission{Allowed: false, MaxMessages: 0}

// WhatsAppAllowed requires the lead to have initiated contact or opted in,
// and a classification that is not barred from WhatsApp.
func WhatsAppAllowed(lead LeadSnapshot) bool {
	if !lead.WhatsAppInitiated && !lead.WhatsAppOptIn {
		return false
	}
	_, barred := whatsAppRestrictedSources[lead.EffectiveClassification()]
	return !barred
}

// MaxEmails is the automated email ceiling for a classification.
func MaxEmails(c SourceClassification) int {
	if _, limited := emailLimitedSources[c]; limited {
		return limitedMaxEmails
	}
	return defaultMaxEmails
}

// AutomationDecision is the full permission set for one lead.
type AutomationDecision struct {
	LeadID         string                        `json:"leadId"`
	Classification SourceClassification          `json:"classification"`
	Eligibility    EligibilityDecision           `json:"eligibility"`
	Stop           StopDecision                  `json:"stop"`
	Channels       map[Channel]ChannelPermission `json:"channels"`
}

// Permission returns the decision for ch; unknown channels are denied.
func (d AutomationDecision) Permission(ch Channel) ChannelPermission {
	if p, ok := d.Channels[ch]; ok {
		return p
	}
	return denied
}

// Authorize composes eligibility with the per-channel rules. A lead that is
// ineligible or due to be stopped is denied on every channel.
func Authorize(lead LeadSnapshot) AutomationDecision {
	class := lead.EffectiveClassification()
	decision := AutomationDecision{
		LeadID:         lead.ID.String(),
		Classification: class,
		Eligibility:    EvaluateEligibility(lead),
		Stop:           EvaluateStop(lead),
		Channels: map[Channel]ChannelPermission{
			ChannelWhatsApp: denied,
			ChannelEmail:    denied,
		},
	}

	if !decision.Eligibility.Eligible || decision.Stop.ShouldStop {
		return decision
	}

	if WhatsAppAllowed(lead) {
		decision.Channels[ChannelWhatsApp] = ChannelPermission{Allowed: true, MaxMessages: Unlimited}
	}
	if !lead.EmailBounce {
		decision.Channels[ChannelEmail] = ChannelPermission{Allowed: true, MaxMessages: MaxEmails(class)}
	}

	return decision
}
