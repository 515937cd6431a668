package planner

import (
	"math"
	"testing"

	"saucecnc/controller/config"
	"saucecnc/controller/kinematics"
)

func testPlanner(t *testing.T) *Planner {
	cfg := config.DefaultMachineConfig()
	kin, err := kinematics.New(cfg)
	if err != nil {
		t.Fatalf("kinematics.New error: %v", err)
	}
	return New(kin)
}

func TestPlanZeroDistance(t *testing.T) {
	p := testPlanner(t)
	prof := p.Plan(0, 0, 0, 0, 600)
	if prof.Duration != 0 {
		t.Fatalf("Duration = %v, want 0 for zero-length move", prof.Duration)
	}
}

func TestPlanSynchronizedFinish(t *testing.T) {
	p := testPlanner(t)
	prof := p.Plan(0, 0, 30, 40, 600)
	if prof.Duration <= 0 {
		t.Fatalf("Duration = %v, want > 0", prof.Duration)
	}
	x, y := prof.PositionAt(prof.Duration)
	if math.Abs(x-30) > 1e-9 || math.Abs(y-40) > 1e-9 {
		t.Fatalf("PositionAt(Duration) = (%v, %v), want (30, 40)", x, y)
	}
	// Both axes must reach their target at exactly the same instant,
	// since position is a shared fraction of a single profile.
	fracX := (x - 0) / 30
	fracY := (y - 0) / 40
	if math.Abs(fracX-fracY) > 1e-9 {
		t.Fatalf("axis fractions diverge: x=%v y=%v", fracX, fracY)
	}
}

func TestPlanTriangleProfileShortMove(t *testing.T) {
	p := testPlanner(t)
	prof := p.Plan(0, 0, 0.5, 0, 3000)
	if prof.CruiseTime != 0 {
		t.Fatalf("short move should be a triangle profile (no cruise), got CruiseTime=%v", prof.CruiseTime)
	}
	x, _ := prof.PositionAt(prof.Duration)
	if math.Abs(x-0.5) > 1e-9 {
		t.Fatalf("PositionAt(Duration).x = %v, want 0.5", x)
	}
}

func TestFractionMonotonic(t *testing.T) {
	p := testPlanner(t)
	prof := p.Plan(0, 0, 100, 0, 600)
	prev := -1.0
	for i := 0; i <= 10; i++ {
		elapsed := prof.Duration * float64(i) / 10
		f := prof.Fraction(elapsed)
		if f < prev-1e-12 {
			t.Fatalf("Fraction not monotonic: f(%v)=%v after prev=%v", elapsed, f, prev)
		}
		prev = f
	}
	if prof.Fraction(-1) != 0 {
		t.Fatalf("Fraction before start should be 0")
	}
	if prof.Fraction(prof.Duration+10) != 1 {
		t.Fatalf("Fraction past end should be 1")
	}
}
