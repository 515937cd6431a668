package compiler

// simplifyAll runs Ramer-Douglas-Peucker simplification on every
// polyline's points, leaving FlowDuty/FeedRate untouched. Polylines
// with 2 or fewer points are returned unchanged; endpoints are never
// removed.
func simplifyAll(polys []Polyline, epsilon float64) []Polyline {
	if epsilon <= 0 {
		return polys
	}
	out := make([]Polyline, len(polys))
	for i, p := range polys {
		out[i] = p
		if len(p.Points) > 2 {
			out[i].Points = douglasPeucker(p.Points, epsilon)
		}
	}
	return out
}

func douglasPeucker(points []Point, epsilon float64) []Point {
	if len(points) < 3 {
		return points
	}

	maxDist := 0.0
	maxIdx := 0
	first, last := points[0], points[len(points)-1]
	for i := 1; i < len(points)-1; i++ {
		d := perpendicularDistance(points[i], first, last)
		if d > maxDist {
			maxDist = d
			maxIdx = i
		}
	}

	if maxDist <= epsilon {
		return []Point{first, last}
	}

	left := douglasPeucker(points[:maxIdx+1], epsilon)
	right := douglasPeucker(points[maxIdx:], epsilon)
	return append(left[:len(left)-1], right...)
}

// perpendicularDistance is the distance from p to the segment a-b,
// clamping the projection parameter to [0,1] so points beyond either
// endpoint measure to the endpoint rather than the infinite line.
func perpendicularDistance(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	if dx == 0 && dy == 0 {
		return distance(p, a)
	}

	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	proj := Point{a.X + t*dx, a.Y + t*dy}
	return distance(p, proj)
}
