// Package homing implements the two-phase endstop homing procedure:
// fast approach, zero, backoff, slow re-approach, zero — run for X
// then Y.
package homing

import (
	"saucecnc/controller/io"
	"saucecnc/protocol"
)

// maxTravelMM bounds how far a homing approach may travel before the
// endstop is declared unresponsive, matching the spec's "any endstop
// failure to assert within a timeout" HOMING_FAIL condition.
const maxTravelMM = 500.0

// stepMM is the simulated sampling increment per homing tick.
const stepMM = 0.1

// Homer drives one axis at a time toward its endstop using the
// configured stepper and endstop driver interfaces.
type Homer struct {
	stepper  io.StepperDriver
	endstops io.EndstopReader
}

// New returns a Homer bound to the given stepper and endstop drivers.
func New(stepper io.StepperDriver, endstops io.EndstopReader) *Homer {
	return &Homer{stepper: stepper, endstops: endstops}
}

// AxisParams carries the per-axis feeds and backoff for HomeAxis.
// HomeAxis uses only BackoffMM: both approaches step in fixed stepMM
// increments with no timing, so FastFeedMMMin and SlowFeedMMMin have
// no effect on the simulated procedure.
type AxisParams struct {
	FastFeedMMMin float64
	SlowFeedMMMin float64
	BackoffMM     float64
}

// HomeAxis runs the five-step procedure for one axis: fast approach
// toward the endstop, zero, back off, slow re-approach, zero.
func (h *Homer) HomeAxis(axis string, p AxisParams) error {
	if err := h.approach(axis); err != nil {
		return err
	}
	h.stepper.Zero(axis)

	h.stepper.SetPosition(axis, p.BackoffMM)

	if err := h.approach(axis); err != nil {
		return err
	}
	h.stepper.Zero(axis)
	return nil
}

// approach moves the axis toward decreasing position (toward the min
// endstop) until it reads asserted, or fails with HOMING_FAIL if it
// never does within maxTravelMM.
func (h *Homer) approach(axis string) error {
	if h.endstops.Triggered(axis) {
		return nil
	}
	pos := h.stepper.Position(axis)
	for traveled := 0.0; traveled < maxTravelMM; traveled += stepMM {
		pos -= stepMM
		h.stepper.SetPosition(axis, pos)
		if h.endstops.Triggered(axis) {
			return nil
		}
	}
	return protocol.NewAsyncError(protocol.ErrHomingFail)
}

// HomeAll runs HomeAxis for X then Y, in that order, per the spec's
// mandated axis ordering.
func HomeAll(h *Homer, x, y AxisParams) error {
	if err := h.HomeAxis("x", x); err != nil {
		return err
	}
	if err := h.HomeAxis("y", y); err != nil {
		return err
	}
	return nil
}
