package state

import "fmt"

// Phase represents the lifecycle phase of a conversation.
//
// Phase machine:
//
//	active -> paused     (user suspends the session)
//	active -> completed  (session finished normally)
//	active -> errored    (unrecoverable failure)
//	paused -> active     (session resumed)
//	paused -> completed
//	paused -> errored
//
// Terminal phases (completed, errored) cannot transition further.
type Phase string

const (
	// PhaseActive indicates the conversation is accepting new actions.
	PhaseActive Phase = "active"

	// PhasePaused indicates the conversation is suspended but resumable.
	PhasePaused Phase = "paused"

	// PhaseCompleted indicates the conversation finished normally.
	PhaseCompleted Phase = "completed"

	// PhaseErrored indicates the conversation ended with an unrecoverable failure.
	PhaseErrored Phase = "errored"
)

// IsValid returns true if the phase is a known value.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseActive, PhasePaused, PhaseCompleted, PhaseErrored:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the phase cannot transition further.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseErrored
}

// CanTransitionTo returns true if moving from this phase to target is valid.
func (p Phase) CanTransitionTo(target Phase) bool {
	if p.IsTerminal() || p == target || !target.IsValid() {
		return false
	}
	switch p {
	case PhaseActive:
		return target == PhasePaused || target == PhaseCompleted || target == PhaseErrored
	case PhasePaused:
		return target == PhaseActive || target == PhaseCompleted || target == PhaseErrored
	}
	return false
}

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// ValidateTransition returns an error if moving from -> to is not allowed.
func ValidateTransition(from, to Phase) error {
	if !from.IsValid() {
		return fmt.Errorf("state: invalid source phase %q", from)
	}
	if !to.IsValid() {
		return fmt.Errorf("state: invalid target phase %q", to)
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("state: invalid phase transition from %q to %q", from, to)
	}
	return nil
}
