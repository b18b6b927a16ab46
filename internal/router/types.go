// Package router implements the per-turn decision state machine. A
// classified intent plus the session's conversational memory produce a
// Decision: dispatch to a handler, ask for missing slots, ask for
// confirmation, or reject. The router never mutates memory itself; it
// returns directives the orchestrator applies at the end of the turn.
package router

import (
	"github.com/veract/salesmind/internal/intent"
	"github.com/veract/salesmind/internal/session"
)

// State is the per-turn routing outcome.
type State string

const (
	// StateDirect dispatches a complete, confident, non-mutating intent.
	StateDirect State = "direct"
	// StateNeedsSlots prompts for missing required slots.
	StateNeedsSlots State = "needs_slots"
	// StateNeedsConfirmation prompts for confirmation of a complete
	// mutating intent. Nothing is dispatched.
	StateNeedsConfirmation State = "needs_confirmation"
	// StateConfirmed dispatches a previously pending mutating intent.
	StateConfirmed State = "confirmed"
	// StateCancelled acknowledges a cancel, or a confirm/cancel that has
	// no matching pending operation.
	StateCancelled State = "cancelled"
	// StateLowConfidence asks the user to rephrase.
	StateLowConfidence State = "low_confidence"
	// StateAmbiguous asks the user to restate a mid-confidence intent.
	StateAmbiguous State = "ambiguous"
	// StateRejected reports rule violations on an otherwise complete intent.
	StateRejected State = "rejected"
)

// String returns the state name.
func (s State) String() string { return string(s) }

// PendingDirective instructs the orchestrator to install or replace the
// session's pending operation at the end of the turn.
type PendingDirective struct {
	Intent intent.Intent
	Slots  intent.Slots
	Status session.PendingStatus
}

// Decision is the result of routing one turn.
type Decision struct {
	State      State
	Intent     intent.Intent
	Confidence float64

	// Missing and Violations carry validation output for prompt building.
	Missing    []string
	Violations []string

	// Reprompt is set when the utterance did not address an outstanding
	// pending operation and the same prompt should be repeated.
	Reprompt bool

	// Execute is the intent to dispatch to a domain handler. Set only in
	// StateDirect and StateConfirmed.
	Execute *intent.ClassifiedIntent

	// SetPending and ClearPending are memory directives for the
	// orchestrator. At most one pending operation ever results.
	SetPending   *PendingDirective
	ClearPending bool
}

// Stats tracks routing outcomes for monitoring and threshold tuning.
type Stats struct {
	TotalTurns        int64           `json:"total_turns"`
	ByState           map[State]int64 `json:"by_state"`
	AverageConfidence float64         `json:"average_confidence"`
}
