// Package domain holds the automation governance rules for leads. Everything
// here is pure: no I/O, no shared mutable state, safe for concurrent use.
package domain

import (
	"fmt"
	"strings"
)

// LeadStatus is a lead's position in the sales pipeline.
type LeadStatus string

const (
	StatusNew         LeadStatus = "new"
	StatusContacted   LeadStatus = "contacted"
	StatusViewing     LeadStatus = "viewing"
	StatusViewed      LeadStatus = "viewed"
	StatusNegotiation LeadStatus = "negotiation"
	StatusClosed      LeadStatus = "closed"
	StatusLost        LeadStatus = "lost"
)

// AllStatuses lists the closed set of pipeline statuses.
var AllStatuses = []LeadStatus{
	StatusNew,
	StatusContacted,
	StatusViewing,
	StatusViewed,
	StatusNegotiation,
	StatusClosed,
	StatusLost,
}

var knownStatuses = map[LeadStatus]struct{}{
	StatusNew:         {},
	StatusContacted:   {},
	StatusViewing:     {},
	StatusViewed:      {},
	StatusNegotiation: {},
	StatusClosed:      {},
	StatusLost:        {},
}

// stopStatuses are the statuses that permanently end automation for a lead.
var stopStatuses = map[LeadStatus]struct{}{
	StatusViewing: {},
	StatusClosed:  {},
	StatusLost:    {},
}

// Valid reports whether s is one of the pipeline statuses.
func (s LeadStatus) Valid() bool {
	_, ok := knownStatuses[s]
	return ok
}

// TriggersStop reports whether entering s must halt automation.
func (s LeadStatus) TriggersStop() bool {
	_, ok := stopStatuses[s]
	return ok
}

// ParseStatus rejects anything outside the closed status set.
func ParseStatus(raw string) (LeadStatus, error) {
	s := LeadStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown lead status %q", raw)
	}
	return s, nil
}
