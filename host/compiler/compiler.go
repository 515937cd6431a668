// Package compiler turns an ordered sequence of polylines into a
// deterministic sequence of SSG lines: homing, one rapid travel plus
// one flow-on/flow-off pair per polyline, and an optional parking
// move.
package compiler

import (
	"fmt"

	"saucecnc/protocol"
)

// Point is one vertex of a polyline, in millimeters.
type Point struct {
	X, Y float64
}

// Polyline is an ordered sequence of points drawn at a single flow
// duty and feed rate. It is "closed" if its last point equals its
// first.
type Polyline struct {
	Points   []Point
	FlowDuty int
	FeedRate float64
}

func (p Polyline) closed() bool {
	if len(p.Points) < 2 {
		return false
	}
	first, last := p.Points[0], p.Points[len(p.Points)-1]
	return first.X == last.X && first.Y == last.Y
}

// Limits is the soft-limit rectangle validated against.
type Limits struct {
	XMin, XMax, YMin, YMax float64
}

// Drawing is the compiler's input: a plate radius (informational),
// soft limits, the rapid travel feed, and the ordered polylines.
type Drawing struct {
	PlateRadiusMM float64
	SoftLimits    Limits
	RapidFeedMM   float64
	Polylines     []Polyline
}

// Options configures validation thresholds and the optional RDP
// simplification pass.
type Options struct {
	Simplify        bool
	SimplifyEpsilon float64 // mm
	MaxPathLengthMM float64
	MaxVertices     int
	Park            bool // emit a final G0 X0 Y0 park move
}

// DefaultOptions returns the defaults recovered from the original
// prototype's motor_movement/config.py.
func DefaultOptions() Options {
	return Options{
		Simplify:        true,
		SimplifyEpsilon: 0.15,
		MaxPathLengthMM: 3000,
		MaxVertices:     10000,
		Park:            true,
	}
}

// Compile validates, orders, optionally simplifies, and emits d as a
// sequence of SSG lines. Given identical input and options, Compile
// is deterministic.
func Compile(d Drawing, opts Options) ([]string, error) {
	if err := Validate(d, opts); err != nil {
		return nil, err
	}

	polylines := d.Polylines
	if opts.Simplify {
		polylines = simplifyAll(polylines, opts.SimplifyEpsilon)
	}
	ordered := OrderPolylines(polylines)

	var lines []string
	seq := uint64(1)
	emit := func(cmd protocol.Command) {
		cmd.Seq = seq
		lines = append(lines, protocol.FormatLine(cmd))
		seq++
	}

	emit(protocol.Command{Op: protocol.OpHome})

	for _, p := range ordered {
		if len(p.Points) == 0 {
			continue
		}
		first := p.Points[0]
		emit(protocol.Command{
			Op: protocol.OpRapid,
			HasX: true, X: first.X,
			HasY: true, Y: first.Y,
			HasF: true, F: d.RapidFeedMM,
		})
		emit(protocol.Command{Op: protocol.OpFlowOn, HasS: true, S: p.FlowDuty})
		for _, pt := range p.Points[1:] {
			emit(protocol.Command{
				Op: protocol.OpDraw,
				HasX: true, X: pt.X,
				HasY: true, Y: pt.Y,
				HasF: true, F: p.FeedRate,
			})
		}
		emit(protocol.Command{Op: protocol.OpFlowOff})
	}

	if opts.Park {
		emit(protocol.Command{
			Op: protocol.OpRapid,
			HasX: true, X: 0,
			HasY: true, Y: 0,
			HasF: true, F: d.RapidFeedMM,
		})
	}

	return lines, nil
}

// ValidationError names the polyline and vertex that failed a
// compiler precondition.
type ValidationError struct {
	PolylineIndex int
	VertexIndex   int
	Reason        string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("compiler: polyline %d vertex %d: %s", e.PolylineIndex, e.VertexIndex, e.Reason)
}

// Validate checks every polyline against the soft limits, minimum
// point count, coincident-point rule, total path length, and vertex
// count budget.
func Validate(d Drawing, opts Options) error {
	totalLen := 0.0
	totalVerts := 0

	for pi, p := range d.Polylines {
		if len(p.Points) < 2 {
			return &ValidationError{pi, 0, "polyline must have at least 2 points"}
		}
		totalVerts += len(p.Points)

		for vi, pt := range p.Points {
			if pt.X < d.SoftLimits.XMin || pt.X > d.SoftLimits.XMax ||
				pt.Y < d.SoftLimits.YMin || pt.Y > d.SoftLimits.YMax {
				return &ValidationError{pi, vi, "point outside soft limits"}
			}
			if vi > 0 {
				prev := p.Points[vi-1]
				if pt.X == prev.X && pt.Y == prev.Y {
					return &ValidationError{pi, vi, "coincident consecutive points"}
				}
				totalLen += dist(prev, pt)
			}
		}
	}

	if totalLen > opts.MaxPathLengthMM {
		return &ValidationError{-1, -1, fmt.Sprintf("total path length %.1fmm exceeds maximum %.1fmm", totalLen, opts.MaxPathLengthMM)}
	}
	if totalVerts > opts.MaxVertices {
		return &ValidationError{-1, -1, fmt.Sprintf("total vertex count %d exceeds maximum %d", totalVerts, opts.MaxVertices)}
	}
	return nil
}
