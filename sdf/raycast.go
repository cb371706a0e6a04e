package sdf

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Raycast3 sphere-traces s from a point along dir. It returns the collision
// point and the distance travelled, or t=-1 if nothing was hit within maxDist
// or maxSteps. A start point inside the solid counts as an immediate hit.
func Raycast3(s SDF3, from, dir r3.Vec, epsilon, maxDist float64, maxSteps int) (collision r3.Vec, t float64, steps int) {
	dirN := r3.Unit(dir)
	pos := from
	for {
		val := s.Evaluate(pos)
		if val < epsilon {
			return pos, t, steps
		}
		steps++
		if steps == maxSteps {
			return pos, -1, steps
		}
		t += val
		pos = r3.Add(from, r3.Scale(t, dirN))
		if t > maxDist {
			return pos, -1, steps
		}
	}
}

// Inside reports whether p lies inside s by more than tol.
func Inside(s SDF3, p r3.Vec, tol float64) bool {
	return s.Evaluate(p) < -math.Abs(tol)
}
