package core

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r2"
)

// StateSource supplies the initial position and velocity of a body at the
// scenario epoch.
type StateSource interface {
	InitialState(epoch time.Time) (pos, vel r2.Vec, err error)
}

// StaticState is an explicit initial state.
type StaticState struct {
	Position r2.Vec
	Velocity r2.Vec
}

// InitialState returns the stored state unchanged.
func (s StaticState) InitialState(time.Time) (r2.Vec, r2.Vec, error) {
	return s.Position, s.Velocity, nil
}

// TLEState seeds a satellite from a two-line element set. SGP4 output is
// geocentric ECI in kilometres; the equatorial X/Y components become the
// satellite's offset and velocity relative to its parent, in metres.
type TLEState struct {
	sat satellite.Satellite
}

// NewTLEState parses a TLE. Lines are checked for shape before being handed
// to go-satellite, which exits the process on malformed numeric fields.
func NewTLEState(line1, line2 string) (*TLEState, error) {
	line1 = strings.TrimRight(line1, " \r\n")
	line2 = strings.TrimRight(line2, " \r\n")
	if len(line1) < 69 || !strings.HasPrefix(line1, "1 ") {
		return nil, fmt.Errorf("TLE line 1 malformed: %q", line1)
	}
	if len(line2) < 69 || !strings.HasPrefix(line2, "2 ") {
		return nil, fmt.Errorf("TLE line 2 malformed: %q", line2)
	}
	if line1[2:7] != line2[2:7] {
		return nil, fmt.Errorf("TLE catalogue numbers differ: %q vs %q", line1[2:7], line2[2:7])
	}
	return &TLEState{sat: satellite.TLEToSat(line1, line2, satellite.GravityWGS72)}, nil
}

// InitialState propagates the element set to epoch.
func (s *TLEState) InitialState(epoch time.Time) (r2.Vec, r2.Vec, error) {
	epoch = epoch.UTC()
	year, month, day := epoch.Date()
	hour, min, sec := epoch.Clock()

	posECI, velECI := satellite.Propagate(s.sat, year, int(month), day, hour, min, sec)

	const kmToM = 1000.0
	pos := r2.Vec{X: posECI.X * kmToM, Y: posECI.Y * kmToM}
	vel := r2.Vec{X: velECI.X * kmToM, Y: velECI.Y * kmToM}
	if !finiteVec(pos) || !finiteVec(vel) {
		return r2.Vec{}, r2.Vec{}, fmt.Errorf("SGP4 propagation to %s did not converge", epoch.Format(time.RFC3339))
	}
	return pos, vel, nil
}

// CircularVelocity returns the velocity giving a circular orbit of radius
// |pos - center| around a stationary mass, perpendicular to the radius
// vector and counter-clockwise.
func CircularVelocity(g, centralMass float64, center, pos r2.Vec) (r2.Vec, error) {
	dx := pos.X - center.X
	dy := pos.Y - center.Y
	r := math.Hypot(dx, dy)
	if r == 0 {
		return r2.Vec{}, fmt.Errorf("%w: circular orbit with zero radius", ErrDegenerateConfiguration)
	}
	v := math.Sqrt(g * centralMass / r)
	return r2.Vec{X: -dy / r * v, Y: dx / r * v}, nil
}

func finiteVec(v r2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}
