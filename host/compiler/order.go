package compiler

import "math"

// OrderPolylines reorders polylines to minimize rapid travel between
// them: a nearest-neighbor pass from the origin (the home position),
// choosing each open polyline's entry/exit endpoint and each closed
// polyline's starting vertex to minimize the jump from the current
// pen position, followed by a local-search improvement pass.
//
// The improvement pass is a simplified 2-opt: it considers swapping
// adjacent polylines in the tour, not full segment reversal, which
// is sufficient for the polyline counts this system draws and avoids
// the bookkeeping of re-deriving entry/exit on a reversed run.
func OrderPolylines(polys []Polyline) []Polyline {
	ordered := nearestNeighborOrder(polys)
	return adjacentSwapImprove(ordered)
}

func nearestNeighborOrder(polys []Polyline) []Polyline {
	remaining := make([]Polyline, len(polys))
	copy(remaining, polys)

	result := make([]Polyline, 0, len(polys))
	current := Point{0, 0}

	for len(remaining) > 0 {
		bestIdx := -1
		var bestPoly Polyline
		bestDist := math.Inf(1)

		for i, p := range remaining {
			cand, d := bestOrientation(p, current)
			if d < bestDist {
				bestDist = d
				bestIdx = i
				bestPoly = cand
			}
		}

		result = append(result, bestPoly)
		current = bestPoly.Points[len(bestPoly.Points)-1]
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return result
}

// bestOrientation returns the orientation of p (and the entry
// distance from current) that starts closest to current. Open
// polylines may be traversed forward or reversed; closed polylines
// may additionally start at any vertex.
func bestOrientation(p Polyline, current Point) (Polyline, float64) {
	if p.closed() {
		return bestRotation(p, current)
	}

	fwdDist := distance(current, p.Points[0])
	revDist := distance(current, p.Points[len(p.Points)-1])
	if revDist < fwdDist {
		return reversed(p), revDist
	}
	return p, fwdDist
}

func bestRotation(p Polyline, current Point) (Polyline, float64) {
	// Closed polylines repeat their first point as their last; rotate
	// among the distinct vertices (len-1 of them).
	n := len(p.Points) - 1
	if n <= 0 {
		return p, distance(current, p.Points[0])
	}

	bestDist := math.Inf(1)
	bestStart := 0
	for i := 0; i < n; i++ {
		d := distance(current, p.Points[i])
		if d < bestDist {
			bestDist = d
			bestStart = i
		}
	}
	if bestStart == 0 {
		return p, bestDist
	}

	rotated := make([]Point, 0, len(p.Points))
	for i := 0; i < n; i++ {
		rotated = append(rotated, p.Points[(bestStart+i)%n])
	}
	rotated = append(rotated, rotated[0])

	out := p
	out.Points = rotated
	return out, bestDist
}

func reversed(p Polyline) Polyline {
	out := p
	out.Points = make([]Point, len(p.Points))
	for i, pt := range p.Points {
		out.Points[len(p.Points)-1-i] = pt
	}
	return out
}

// adjacentSwapImprove repeatedly swaps adjacent tour positions when
// doing so reduces total rapid travel, until no swap improves further.
func adjacentSwapImprove(tour []Polyline) []Polyline {
	if len(tour) < 2 {
		return tour
	}

	improved := true
	for improved {
		improved = false
		for i := 0; i+1 < len(tour); i++ {
			before := segmentCost(tour, i)
			tour[i], tour[i+1] = tour[i+1], tour[i]
			after := segmentCost(tour, i)
			if after < before-1e-9 {
				improved = true
			} else {
				tour[i], tour[i+1] = tour[i+1], tour[i]
			}
		}
	}
	return tour
}

// segmentCost sums the rapid-travel edges touching position i: the
// entry from i-1 (or the origin) and the exit to i+2 (or nothing).
func segmentCost(tour []Polyline, i int) float64 {
	cost := 0.0
	prev := Point{0, 0}
	if i > 0 {
		prev = tour[i-1].Points[len(tour[i-1].Points)-1]
	}
	cost += distance(prev, tour[i].Points[0])
	cost += distance(tour[i].Points[len(tour[i].Points)-1], tour[i+1].Points[0])
	if i+2 < len(tour) {
		cost += distance(tour[i+1].Points[len(tour[i+1].Points)-1], tour[i+2].Points[0])
	}
	return cost
}

func distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

func dist(a, b Point) float64 {
	return distance(a, b)
}
