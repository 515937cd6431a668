// Package safety centralizes the triggers that force the sauce pump
// off within one protocol tick, and the soft-limit/endstop fault
// classification used to drive the controller into Error.
package safety

import (
	"saucecnc/controller/io"
	"saucecnc/controller/kinematics"
	"saucecnc/controller/statemachine"
	"saucecnc/protocol"
)

// Monitor watches for the four pump-off triggers: client disconnect,
// heartbeat timeout in Printing, entering Paused/Error, and a
// soft-limit violation.
type Monitor struct {
	pump io.PumpDriver
	kin  *kinematics.Cartesian
}

// New returns a Monitor bound to the pump driver and kinematics used
// for soft-limit checks.
func New(pump io.PumpDriver, kin *kinematics.Cartesian) *Monitor {
	return &Monitor{pump: pump, kin: kin}
}

// ForcePumpOff immediately sets pump duty to 0. Called on every
// trigger in this package; safe to call repeatedly.
func (m *Monitor) ForcePumpOff() {
	m.pump.SetDuty(0)
}

// OnDisconnect handles a transport-level client drop.
func (m *Monitor) OnDisconnect() {
	m.ForcePumpOff()
}

// OnHeartbeatTimeout handles a heartbeat timeout while Printing. The
// caller is responsible for the Printing->Paused transition; this
// only enforces the pump-off side effect.
func (m *Monitor) OnHeartbeatTimeout() {
	m.ForcePumpOff()
}

// OnStateEntered handles entry into Paused or Error, forcing the
// pump off regardless of its current duty.
func (m *Monitor) OnStateEntered(s statemachine.State) {
	if s == statemachine.Paused || s == statemachine.Error {
		m.ForcePumpOff()
	}
}

// CheckTarget validates a motion command's target against the
// configured soft limits. Returns a LIMIT protocol.Error if the
// target is out of bounds; the caller must then force the controller
// into Error and stop motion (deceleration only).
func (m *Monitor) CheckTarget(x, y float64) error {
	if err := m.kin.CheckLimits(x, y); err != nil {
		m.ForcePumpOff()
		return protocol.NewAsyncError(protocol.ErrLimit)
	}
	return nil
}

// OnEndstopDuringPrint handles an endstop asserting mid-move, which
// the spec treats as a limit fault with its own code.
func (m *Monitor) OnEndstopDuringPrint() error {
	m.ForcePumpOff()
	return protocol.NewAsyncError(protocol.ErrEndstop)
}
