// Package kinematics implements the Cartesian XY mapping used to
// validate and translate planner targets into per-axis positions.
package kinematics

import (
	"fmt"

	"saucecnc/controller/config"
)

// Cartesian is a 1:1 XY mapping: no curved or multi-tool kinematics
// are in scope.
type Cartesian struct {
	axes map[string]config.AxisConfig
}

// New returns a Cartesian kinematics instance, validating that both
// X and Y axes are configured.
func New(cfg *config.MachineConfig) (*Cartesian, error) {
	if _, ok := cfg.Axes["x"]; !ok {
		return nil, fmt.Errorf("kinematics: X axis not configured")
	}
	if _, ok := cfg.Axes["y"]; !ok {
		return nil, fmt.Errorf("kinematics: Y axis not configured")
	}
	return &Cartesian{axes: cfg.Axes}, nil
}

// CheckLimits validates that target x, y fall within the configured
// soft limits for each axis.
func (k *Cartesian) CheckLimits(x, y float64) error {
	xa := k.axes["x"]
	if x < xa.MinPosition || x > xa.MaxPosition {
		return fmt.Errorf("kinematics: X %.2f out of limits [%.2f, %.2f]", x, xa.MinPosition, xa.MaxPosition)
	}
	ya := k.axes["y"]
	if y < ya.MinPosition || y > ya.MaxPosition {
		return fmt.Errorf("kinematics: Y %.2f out of limits [%.2f, %.2f]", y, ya.MinPosition, ya.MaxPosition)
	}
	return nil
}

// StepsPerMM returns the steps/mm conversion factor for the named axis.
func (k *Cartesian) StepsPerMM(axis string) float64 {
	return k.axes[axis].StepsPerMM
}

// MaxVelocity returns the configured max velocity (mm/s) for the
// named axis.
func (k *Cartesian) MaxVelocity(axis string) float64 {
	return k.axes[axis].MaxVelocity
}

// MaxAccel returns the configured max acceleration (mm/s^2) for the
// named axis.
func (k *Cartesian) MaxAccel(axis string) float64 {
	return k.axes[axis].MaxAccel
}
