package core

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/signalsfoundry/gravity-simulator/model"
)

const (
	// DefaultG is the gravitational constant in m³·kg⁻¹·s⁻².
	DefaultG = 6.67408e-11
	// AU is one astronomical unit in metres.
	AU = 149.6e6 * 1000
)

// ErrDegenerateConfiguration reports two bodies sharing exact coordinates,
// for which the force law is undefined.
var ErrDegenerateConfiguration = errors.New("degenerate configuration: coincident bodies")

// ForceModel evaluates pairwise Newtonian gravitation.
type ForceModel struct {
	G float64
}

// NewForceModel returns a ForceModel using g, or DefaultG when g is zero.
func NewForceModel(g float64) ForceModel {
	if g == 0 {
		g = DefaultG
	}
	return ForceModel{G: g}
}

// Attraction returns the force other exerts on self, in newtons.
//
// The force is resolved through atan2 of the separation so every quadrant
// is handled. It does not touch either body.
func (f ForceModel) Attraction(self, other *model.Body) (r2.Vec, error) {
	if self == other {
		return r2.Vec{}, fmt.Errorf("%w: %q attracting itself", ErrDegenerateConfiguration, self.ID)
	}
	dx := other.Position.X - self.Position.X
	dy := other.Position.Y - self.Position.Y
	d := math.Sqrt(dx*dx + dy*dy)
	if d == 0 {
		return r2.Vec{}, fmt.Errorf("%w: %q and %q at (%g, %g)",
			ErrDegenerateConfiguration, self.ID, other.ID, self.Position.X, self.Position.Y)
	}

	force := f.G * self.Mass() * other.Mass() / (d * d)
	theta := math.Atan2(dy, dx)
	return r2.Vec{
		X: math.Cos(theta) * force,
		Y: math.Sin(theta) * force,
	}, nil
}

// NetForce sums the attraction of every body on self. self and any body in
// skip are excluded by identity, not by value.
func (f ForceModel) NetForce(self *model.Body, bodies []*model.Body, skip ...*model.Body) (r2.Vec, error) {
	var total r2.Vec
outer:
	for _, other := range bodies {
		if other == self {
			continue
		}
		for _, s := range skip {
			if other == s {
				continue outer
			}
		}
		fv, err := f.Attraction(self, other)
		if err != nil {
			return r2.Vec{}, err
		}
		total.X += fv.X
		total.Y += fv.Y
	}
	return total, nil
}

// Distance returns the Euclidean distance between a and b in metres.
func Distance(a, b *model.Body) float64 {
	dx := b.Position.X - a.Position.X
	dy := b.Position.Y - a.Position.Y
	return math.Sqrt(dx*dx + dy*dy)
}
