package capture

import (
	"encoding/json"
	"errors"
)

var (
	// errors
	ErrTransitionDisabled = errors.New("capture control is disabled in the current state")
	ErrClosed             = errors.New("capture controller closed")
)

// Phase is the tag of a State.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseStarting Phase = "starting"
	PhaseActive   Phase = "active"
	PhaseStopping Phase = "stopping"
	PhaseError    Phase = "error"
)

// State is the capture lifecycle: Idle -> Starting -> Active -> Stopping -> Idle, or Error(message) from any transition.
// The zero value is Idle.
type State struct {
	phase   Phase
	message string
}

func Idle(label string) State     { return State{phase: PhaseIdle, message: label} }
func Starting() State             { return State{phase: PhaseStarting} }
func Active(label string) State   { return State{phase: PhaseActive, message: label} }
func Stopping() State             { return State{phase: PhaseStopping} }
func Failed(message string) State { return State{phase: PhaseError, message: message} }

func (s State) Phase() Phase {
	if s.phase == "" {
		return PhaseIdle
	}
	return s.phase
}

// Label is the human readable status.
func (s State) Label() string {
	switch s.Phase() {
	case PhaseStarting:
		return "Starting..."
	case PhaseStopping:
		return "Stopping..."
	case PhaseError:
		return "Error"
	case PhaseActive:
		if s.message == "" {
			return "Active"
		}
	case PhaseIdle:
		if s.message == "" {
			return "Idle"
		}
	}
	return s.message
}

// Err is the error message of an Error state, "" otherwise.
func (s State) Err() string {
	if s.Phase() == PhaseError {
		return s.message
	}
	return ""
}

// CanStart is true from Idle and Error; an error is recovered by starting again.
func (s State) CanStart() bool {
	p := s.Phase()
	return p == PhaseIdle || p == PhaseError
}

// CanStop is true from Active only.
func (s State) CanStop() bool {
	return s.Phase() == PhaseActive
}

func (s State) String() string {
	if err := s.Err(); err != "" {
		return string(s.Phase()) + ": " + err
	}
	return string(s.Phase()) + ": " + s.Label()
}

type stateJSON struct {
	Phase    Phase  `json:"phase"`
	Label    string `json:"label"`
	Error    string `json:"error,omitempty"`
	CanStart bool   `json:"can_start"`
	CanStop  bool   `json:"can_stop"`
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{
		Phase:    s.Phase(),
		Label:    s.Label(),
		Error:    s.Err(),
		CanStart: s.CanStart(),
		CanStop:  s.CanStop(),
	})
}
