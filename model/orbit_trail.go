package model

import "gonum.org/v1/gonum/spatial/r2"

// OrbitTrail is the chronological position history of a body.
type OrbitTrail struct {
	points []r2.Vec
	max    int
}

// NewOrbitTrail returns a trail holding at most max points. A max of zero or
// less keeps the whole history.
func NewOrbitTrail(max int) *OrbitTrail {
	if max < 0 {
		max = 0
	}
	return &OrbitTrail{max: max}
}

// Record appends p and evicts the oldest points past the limit.
func (t *OrbitTrail) Record(p r2.Vec) {
	t.points = append(t.points, p)
	t.Trim()
}

// Trim drops oldest points first until the trail fits its limit.
func (t *OrbitTrail) Trim() {
	if t.max <= 0 || len(t.points) <= t.max {
		return
	}
	t.points = t.points[len(t.points)-t.max:]
}

// Points returns a copy of the trail, oldest first.
func (t *OrbitTrail) Points() []r2.Vec {
	out := make([]r2.Vec, len(t.points))
	copy(out, t.points)
	return out
}

// Last returns the most recent point and whether one exists.
func (t *OrbitTrail) Last() (r2.Vec, bool) {
	if len(t.points) == 0 {
		return r2.Vec{}, false
	}
	return t.points[len(t.points)-1], true
}

func (t *OrbitTrail) Len() int { return len(t.points) }

// Max returns the configured limit; zero means unbounded.
func (t *OrbitTrail) Max() int { return t.max }
