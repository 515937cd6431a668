package statemachine

import "testing"

func TestBootToIdleToHoming(t *testing.T) {
	m := New()
	if m.State() != Boot {
		t.Fatalf("initial state = %s, want Boot", m.State())
	}
	if !m.Transition(Idle) {
		t.Fatalf("Boot->Idle should be legal")
	}
	if !m.Transition(Homing) {
		t.Fatalf("Idle->Homing should be legal")
	}
	if !m.Transition(Ready) {
		t.Fatalf("Homing->Ready should be legal")
	}
}

func TestIllegalTransitionRejected(t *testing.T) {
	m := New()
	if m.Transition(Printing) {
		t.Fatalf("Boot->Printing should be illegal")
	}
	if m.State() != Boot {
		t.Fatalf("state changed after rejected transition: %s", m.State())
	}
}

func TestErrorReachableFromAnyState(t *testing.T) {
	for _, s := range []State{Boot, Idle, Homing, Ready, Printing, Paused, Cleaning} {
		m := &Machine{state: s}
		if !m.CanTransition(Error) {
			t.Fatalf("%s should be able to transition to Error", s)
		}
	}
}

func TestErrorRequiresHomeToRecover(t *testing.T) {
	m := &Machine{state: Error}
	if !m.AllowsHome() {
		t.Fatalf("Error state should allow Home")
	}
	if m.AllowsMotion() {
		t.Fatalf("Error state should not allow motion")
	}
	if !m.Transition(Homing) {
		t.Fatalf("Error->Homing should be legal")
	}
}

func TestFlowGating(t *testing.T) {
	cases := []struct {
		state State
		want  bool
	}{
		{Ready, true},
		{Printing, true},
		{Paused, false},
		{Error, false},
		{Homing, false},
		{Idle, false},
	}
	for _, c := range cases {
		m := &Machine{state: c.state}
		if got := m.AllowsFlow(); got != c.want {
			t.Fatalf("AllowsFlow() in %s = %v, want %v", c.state, got, c.want)
		}
	}
}

func TestMotionGating(t *testing.T) {
	cases := []struct {
		state State
		want  bool
	}{
		{Ready, true},
		{Printing, true},
		{Paused, false},
		{Idle, false},
		{Homing, false},
		{Error, false},
	}
	for _, c := range cases {
		m := &Machine{state: c.state}
		if got := m.AllowsMotion(); got != c.want {
			t.Fatalf("AllowsMotion() in %s = %v, want %v", c.state, got, c.want)
		}
	}
}

func TestStateString(t *testing.T) {
	if Printing.String() != "Printing" {
		t.Fatalf("Printing.String() = %q", Printing.String())
	}
	if State(99).String() != "Unknown" {
		t.Fatalf("unknown state String() = %q", State(99).String())
	}
}
