// Package events defines the lead lifecycle and governance events. The bus
// itself lives in platform/events.
package events

import (
	"crm_automation_backend/platform/events"
	"crm_automation_backend/platform/logger"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var NewBaseEvent = events.NewBaseEvent

func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Governance Events
// =============================================================================

// LeadClassified is published after derived fields were written.
type LeadClassified struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	Classification string    `json:"classification"`
	Country        *string   `json:"country,omitempty"`
	Timezone       *string   `json:"timezone,omitempty"`
}

func (e LeadClassified) EventName() string { return "governance.lead.classified" }

// AutomationStopped is published once the dispatch service confirmed a stop
// and the local flag was set.
type AutomationStopped struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	Reason         string    `json:"reason"`
	AlreadyStopped bool      `json:"alreadyStopped"`
}

func (e AutomationStopped) EventName() string { return "governance.automation.stopped" }

// StopRequestFailed is published when the dispatch service could not confirm
// a stop. Automation may still be running for the lead.
type StopRequestFailed struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Reason string    `json:"reason"`
	Error  string    `json:"error"`
}

func (e StopRequestFailed) EventName() string { return "governance.automation.stop_failed" }

// ClassificationFailed is published when derived fields could not be
// persisted. Eligibility still works because classification is recomputed.
type ClassificationFailed struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Error  string    `json:"error"`
}

func (e ClassificationFailed) EventName() string { return "governance.lead.classification_failed" }
