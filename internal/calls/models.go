package calls

import (
	id "dunning/pkg/domain"
)

// State is the lifecycle position of one outbound call attempt.
//
//	Initiating -> Pending -> Completed
//	Initiating -> Failed
type State string

const (
	StateInitiating State = "initiating"
	StatePending    State = "pending"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// ReasonNotCompliant is recorded when the contact window rejects the call.
const ReasonNotCompliant = "not compliant"

// Attempt is the orchestrator's view of one call.
type Attempt struct {
	CallID     id.CallID     `json:"call_id,omitempty"`
	ResidentID id.ResidentID `json:"resident_id"`
	Provider   string        `json:"provider"`
	State      State         `json:"state"`
	// Reason explains a Failed state. For provider failures it carries the
	// provider's error payload.
	Reason string `json:"reason,omitempty"`
	// Recorded is false when the call_logs row already existed.
	Recorded bool `json:"recorded"`
}

// IsTerminal reports whether no further transition can happen.
func (a *Attempt) IsTerminal() bool {
	return a.State == StateCompleted || a.State == StateFailed
}
