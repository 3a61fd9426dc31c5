package domain

import "fmt"

// StopDecision says whether in-flight automation must be halted for good.
type StopDecision struct {
	ShouldStop bool   `json:"shouldStop"`
	Reason     string `json:"reason,omitempty"`
}

const ReasonAlreadyStopped = "Automation already stopped"

// EvaluateStop reports a stop for leads that are already stopped (an
// idempotent signal) or whose status is one of the stop statuses.
func EvaluateStop(lead LeadSnapshot) StopDecision {
	if lead.AutomationStopped {
		return StopDecision{ShouldStop: true, Reason: ReasonAlreadyStopped}
	}

	if lead.Status.TriggersStop() {
		return StopDecision{ShouldStop: true, Reason: fmt.Sprintf("Lead status changed to %s", lead.Status)}
	}

	return StopDecision{}
}
