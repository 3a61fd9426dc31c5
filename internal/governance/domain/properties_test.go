package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var rawSources = []string{
	"referral", "walk_in", "cold_call", "website", "property_portal",
	"social_media", "", "  Social_Media ", "billboard",
}

const (
	flagVerified uint8 = 1 << iota
	flagStopped
	flagBounced
	flagInitiated
	flagOptIn
)

// buildLead turns generator output into a snapshot. A negative class index
// leaves the stored classification empty.
func buildLead(statusIdx, sourceIdx, classIdx int, flags uint8) LeadSnapshot {
	lead := LeadSnapshot{
		ID:                uuid.New(),
		Status:            AllStatuses[statusIdx],
		RawSource:         rawSources[sourceIdx],
		ContactVerified:   flags&flagVerified != 0,
		AutomationStopped: flags&flagStopped != 0,
		EmailBounce:       flags&flagBounced != 0,
		WhatsAppInitiated: flags&flagInitiated != 0,
		WhatsAppOptIn:     flags&flagOptIn != 0,
	}
	if classIdx >= 0 {
		c := AllClassifications[classIdx]
		lead.Classification = &c
	}
	return lead
}

func leadProperty(name string, check func(LeadSnapshot) bool) (string, gopter.Prop) {
	return name, prop.ForAll(
		func(statusIdx, sourceIdx, classIdx int, flags uint8) bool {
			return check(buildLead(statusIdx, sourceIdx, classIdx, flags))
		},
		gen.IntRange(0, len(AllStatuses)-1),
		gen.IntRange(0, len(rawSources)-1),
		gen.IntRange(-1, len(AllClassifications)-1),
		gen.UInt8(),
	)
}

func TestGovernanceProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property(leadProperty("stopped leads are never eligible", func(l LeadSnapshot) bool {
		if !l.AutomationStopped {
			return true
		}
		d := EvaluateEligibility(l)
		return !d.Eligible && d.Reason == ReasonPreviouslyStopped
	}))

	properties.Property(leadProperty("bounced leads are never eligible", func(l LeadSnapshot) bool {
		if !l.EmailBounce {
			return true
		}
		return !EvaluateEligibility(l).Eligible
	}))

	properties.Property(leadProperty("cold imported leads are never eligible", func(l LeadSnapshot) bool {
		if l.EffectiveClassification() != ClassColdImported {
			return true
		}
		return !EvaluateEligibility(l).Eligible
	}))

	properties.Property(leadProperty("eligible leads are verified and qualified", func(l LeadSnapshot) bool {
		if !EvaluateEligibility(l).Eligible {
			return true
		}
		return l.ContactVerified && (l.Status == StatusContacted || l.WhatsAppInitiated)
	}))

	properties.Property(leadProperty("stop statuses always halt automation", func(l LeadSnapshot) bool {
		if !l.Status.TriggersStop() && !l.AutomationStopped {
			return !EvaluateStop(l).ShouldStop
		}
		return EvaluateStop(l).ShouldStop
	}))

	properties.Property(leadProperty("ineligible leads get no channel", func(l LeadSnapshot) bool {
		d := Authorize(l)
		if d.Eligibility.Eligible {
			return d.Eligibility.Reason == ""
		}
		return d.Eligibility.Reason != "" &&
			d.Permission(ChannelWhatsApp) == denied &&
			d.Permission(ChannelEmail) == denied
	}))

	properties.Property(leadProperty("stop decisions get no channel", func(l LeadSnapshot) bool {
		d := Authorize(l)
		if !d.Stop.ShouldStop {
			return true
		}
		return d.Permission(ChannelWhatsApp) == denied && d.Permission(ChannelEmail) == denied
	}))

	properties.Property(leadProperty("whatsapp needs initiation or opt-in", func(l LeadSnapshot) bool {
		if l.WhatsAppInitiated || l.WhatsAppOptIn {
			return true
		}
		return !WhatsAppAllowed(l) && !Authorize(l).Permission(ChannelWhatsApp).Allowed
	}))

	properties.Property(leadProperty("email ceiling follows classification", func(l LeadSnapshot) bool {
		class := l.EffectiveClassification()
		want := 2
		if class == ClassDubaiOwnerDatabase {
			want = 1
		}
		if MaxEmails(class) != want {
			return false
		}
		email := Authorize(l).Permission(ChannelEmail)
		return !email.Allowed || email.MaxMessages == want
	}))

	properties.Property(leadProperty("classification is total", func(l LeadSnapshot) bool {
		return Classify(l.RawSource, ClassifyContext{WhatsAppInitiated: l.WhatsAppInitiated}).Valid()
	}))

	properties.TestingRun(t)
}
