// Package statemachine owns the controller's top-level state and the
// legality gates that decide which commands each state accepts.
package statemachine

// State is one of the controller's lifecycle states.
type State int

const (
	Boot State = iota
	Idle
	Homing
	Ready
	Printing
	Paused
	Cleaning
	Error
)

func (s State) String() string {
	switch s {
	case Boot:
		return "Boot"
	case Idle:
		return "Idle"
	case Homing:
		return "Homing"
	case Ready:
		return "Ready"
	case Printing:
		return "Printing"
	case Paused:
		return "Paused"
	case Cleaning:
		return "Cleaning"
	case Error:
		return "Error"
	}
	return "Unknown"
}

// Machine tracks the controller's current state and enforces the
// legal-transition graph from Boot through Error.
type Machine struct {
	state State
}

// New returns a Machine starting in Boot.
func New() *Machine {
	return &Machine{state: Boot}
}

func (m *Machine) State() State {
	return m.state
}

// transitions maps each state to the set of states it may move to
// directly. Error is reachable from any state and is not listed per-row.
var transitions = map[State][]State{
	Boot:     {Idle},
	Idle:     {Homing},
	Homing:   {Ready, Error},
	Ready:    {Printing, Homing, Cleaning},
	Printing: {Paused, Ready, Cleaning},
	Paused:   {Printing, Homing, Cleaning},
	Cleaning: {Ready, Idle},
	Error:    {Homing},
}

// CanTransition reports whether moving from the current state to next
// is legal. Error is always reachable.
func (m *Machine) CanTransition(next State) bool {
	if next == Error {
		return true
	}
	for _, s := range transitions[m.state] {
		if s == next {
			return true
		}
	}
	return false
}

// Transition moves the machine to next, returning false if the move
// is not legal from the current state.
func (m *Machine) Transition(next State) bool {
	if !m.CanTransition(next) {
		return false
	}
	m.state = next
	return true
}

// AllowsMotion reports whether motion commands other than Home are
// accepted in the current state.
func (m *Machine) AllowsMotion() bool {
	return m.state == Ready || m.state == Printing
}

// AllowsFlow reports whether FlowOn/FlowOff are accepted in the
// current state.
func (m *Machine) AllowsFlow() bool {
	return m.state == Ready || m.state == Printing
}

// AllowsHome reports whether G28 is accepted in the current state.
func (m *Machine) AllowsHome() bool {
	return m.state == Idle || m.state == Ready || m.state == Paused || m.state == Error
}
