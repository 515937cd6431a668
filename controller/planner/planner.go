// Package planner computes trapezoidal velocity profiles for two-axis
// segments, synchronizing X and Y so both axes finish within one step
// period of each other.
package planner

import (
	"math"

	"saucecnc/controller/kinematics"
)

// Profile is a trapezoidal velocity profile for one G0/G1 segment.
// Axis position at time t (0 <= t <= Duration) is
// start + delta*Fraction(t), so X and Y — sharing the same Duration —
// finish together by construction; only step-count rounding can drift
// them by a fraction of a step.
type Profile struct {
	StartX, StartY float64
	EndX, EndY     float64

	CruiseVel float64 // vector mm/s
	Accel     float64 // vector mm/s^2

	AccelTime  float64 // s
	CruiseTime float64 // s
	DecelTime  float64 // s
	Duration   float64 // s
}

// Planner turns a move's endpoints and feed rate into a synchronized
// trapezoidal profile, honoring each axis's configured velocity and
// acceleration caps.
type Planner struct {
	kin *kinematics.Cartesian
}

// New returns a Planner bound to the given kinematics.
func New(kin *kinematics.Cartesian) *Planner {
	return &Planner{kin: kin}
}

// Plan computes a synchronized trapezoidal profile for the move from
// (startX, startY) to (endX, endY) at the given feed rate (mm/min).
// If feedMMMin is 0, the move uses the slower of the two axes' max
// velocities.
func (p *Planner) Plan(startX, startY, endX, endY, feedMMMin float64) Profile {
	dx := endX - startX
	dy := endY - startY
	dist := math.Hypot(dx, dy)

	prof := Profile{StartX: startX, StartY: startY, EndX: endX, EndY: endY}
	if dist == 0 {
		return prof
	}

	maxVelX := p.kin.MaxVelocity("x")
	maxVelY := p.kin.MaxVelocity("y")
	maxAccelX := p.kin.MaxAccel("x")
	maxAccelY := p.kin.MaxAccel("y")

	// Clamp the vector velocity so that each axis's component stays
	// within its own max velocity, preserving the move's direction.
	vectorVelCap := math.Min(maxVelX, maxVelY)
	if dx != 0 {
		vectorVelCap = math.Min(vectorVelCap, maxVelX*dist/math.Abs(dx))
	}
	if dy != 0 {
		vectorVelCap = math.Min(vectorVelCap, maxVelY*dist/math.Abs(dy))
	}

	cruiseVel := vectorVelCap
	if feedMMMin > 0 {
		cruiseVel = math.Min(cruiseVel, feedMMMin/60.0)
	}

	vectorAccelCap := math.Min(maxAccelX, maxAccelY)
	if dx != 0 {
		vectorAccelCap = math.Min(vectorAccelCap, maxAccelX*dist/math.Abs(dx))
	}
	if dy != 0 {
		vectorAccelCap = math.Min(vectorAccelCap, maxAccelY*dist/math.Abs(dy))
	}
	accel := vectorAccelCap

	prof.Accel = accel
	accelDist := (cruiseVel * cruiseVel) / (2.0 * accel)

	if accelDist*2.0 >= dist {
		// Triangle profile: distance too short to reach cruise speed.
		accelDist = dist / 2.0
		peakVel := math.Sqrt(2.0 * accel * accelDist)
		prof.CruiseVel = peakVel
		prof.AccelTime = peakVel / accel
		prof.CruiseTime = 0
		prof.DecelTime = prof.AccelTime
	} else {
		cruiseDist := dist - 2.0*accelDist
		prof.CruiseVel = cruiseVel
		prof.AccelTime = cruiseVel / accel
		prof.CruiseTime = cruiseDist / cruiseVel
		prof.DecelTime = prof.AccelTime
	}
	prof.Duration = prof.AccelTime + prof.CruiseTime + prof.DecelTime
	return prof
}

// Fraction returns the fraction of the segment's distance traveled
// at elapsed time t (seconds since the move began), 0 at t=0 and 1
// at t>=Duration.
func (p Profile) Fraction(t float64) float64 {
	if p.Duration == 0 {
		return 1
	}
	if t >= p.Duration {
		return 1
	}
	if t <= 0 {
		return 0
	}

	distAccel := 0.5 * p.Accel * p.AccelTime * p.AccelTime
	distCruise := p.CruiseVel * p.CruiseTime
	total := distAccel + distCruise + distAccel

	var traveled float64
	switch {
	case t < p.AccelTime:
		traveled = 0.5 * p.Accel * t * t
	case t < p.AccelTime+p.CruiseTime:
		traveled = distAccel + p.CruiseVel*(t-p.AccelTime)
	default:
		td := t - p.AccelTime - p.CruiseTime
		traveled = distAccel + distCruise + (p.CruiseVel*td - 0.5*p.Accel*td*td)
	}
	if total == 0 {
		return 1
	}
	return traveled / total
}

// PositionAt returns the (x, y) position at elapsed time t.
func (p Profile) PositionAt(t float64) (float64, float64) {
	f := p.Fraction(t)
	return p.StartX + (p.EndX-p.StartX)*f, p.StartY + (p.EndY-p.StartY)*f
}
