package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestWhatsAppAllowed(t *testing.T) {
	tests := []struct {
		name string
		lead LeadSnapshot
		want bool
	}{
		{"initiated inbound", LeadSnapshot{Classification: classPtr(ClassWhatsAppInbound), WhatsAppInitiated: true}, true},
		{"opted in referral", LeadSnapshot{Classification: classPtr(ClassReferral), WhatsAppOptIn: true}, true},
		{"no initiation or opt in", LeadSnapshot{Classification: classPtr(ClassReferral)}, false},
		{"owner database barred", LeadSnapshot{Classification: classPtr(ClassDubaiOwnerDatabase), WhatsAppOptIn: true}, false},
		{"cold imported barred", LeadSnapshot{Classification: classPtr(ClassColdImported), WhatsAppInitiated: true}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, WhatsAppAllowed(tc.lead))
		})
	}
}

func TestWhatsAppNeedsInitiationOrOptIn(t *testing.T) {
	for _, c := range AllClassifications {
		lead := LeadSnapshot{Classification: classPtr(c), Status: StatusContacted, ContactVerified: true}
		assert.False(t, WhatsAppAllowed(lead), c)
	}
}

func TestMaxEmails(t *testing.T) {
	for _, c := range AllClassifications {
		want := 2
		if c == ClassDubaiOwnerDatabase {
			want = 1
		}
		assert.Equal(t, want, MaxEmails(c), c)
	}
}

func TestAuthorizeEligibleOwnerDatabaseLead(t *testing.T) {
	lead := LeadSnapshot{
		ID:              uuid.New(),
		Status:          StatusContacted,
		Classification:  classPtr(ClassDubaiOwnerDatabase),
		ContactVerified: true,
		WhatsAppOptIn:   true,
	}

	d := Authorize(lead)

	assert.True(t, d.Eligibility.Eligible)
	assert.Equal(t, ChannelPermission{Allowed: false, MaxMessages: 0}, d.Permission(ChannelWhatsApp))
	assert.Equal(t, ChannelPermission{Allowed: true, MaxMessages: 1}, d.Permission(ChannelEmail))
	assert.Equal(t, lead.ID.String(), d.LeadID)
}

func TestAuthorizeWhatsAppInboundIsUnlimited(t *testing.T) {
	lead := LeadSnapshot{
		ID:                uuid.New(),
		Status:            StatusNew,
		RawSource:         "social_media",
		WhatsAppInitiated: true,
		ContactVerified:   true,
	}

	d := Authorize(lead)

	assert.Equal(t, ClassWhatsAppInbound, d.Classification)
	assert.Equal(t, ChannelPermission{Allowed: true, MaxMessages: Unlimited}, d.Permission(ChannelWhatsApp))
	assert.Equal(t, ChannelPermission{Allowed: true, MaxMessages: 2}, d.Permission(ChannelEmail))
}

func TestAuthorizeIneligibleDeniesEverything(t *testing.T) {
	lead := LeadSnapshot{
		ID:                uuid.New(),
		Status:            StatusClosed,
		Classification:    classPtr(ClassReferral),
		ContactVerified:   true,
		WhatsAppInitiated: true,
		AutomationStopped: true,
	}

	d := Authorize(lead)

	assert.False(t, d.Eligibility.Eligible)
	assert.True(t, d.Stop.ShouldStop)
	assert.False(t, d.Permission(ChannelWhatsApp).Allowed)
	assert.False(t, d.Permission(ChannelEmail).Allowed)
	assert.Zero(t, d.Permission(Channel("sms")).MaxMessages)
}

func TestAuthorizeStopStatusDeniesEverything(t *testing.T) {
	for _, status := range []LeadStatus{StatusViewing, StatusClosed, StatusLost} {
		t.Run(string(status), func(t *testing.T) {
			lead := LeadSnapshot{
				ID:                uuid.New(),
				Status:            status,
				Classification:    classPtr(ClassReferral),
				ContactVerified:   true,
				WhatsAppInitiated: true,
			}

			d := Authorize(lead)

			assert.True(t, d.Eligibility.Eligible)
			assert.True(t, d.Stop.ShouldStop)
			assert.Equal(t, denied, d.Permission(ChannelWhatsApp))
			assert.Equal(t, denied, d.Permission(ChannelEmail))
		})
	}
}
