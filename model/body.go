package model

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

var (
	// ErrInvalidMass indicates a body was defined with a non-positive mass.
	ErrInvalidMass = errors.New("mass must be positive")
	// ErrInvalidRadius indicates a body was defined with a non-positive display radius.
	ErrInvalidRadius = errors.New("radius must be positive")
	// ErrInvalidState indicates a non-finite initial position or velocity.
	ErrInvalidState = errors.New("position and velocity must be finite")
	// ErrSatelliteRelation indicates an invalid parent/satellite pairing.
	ErrSatelliteRelation = errors.New("invalid satellite relation")
)

// BodyDefinition carries the setup-time attributes of a body.
type BodyDefinition struct {
	ID          string
	Name        string
	Position    r2.Vec // metres
	Velocity    r2.Vec // metres per second
	Mass        float64
	Radius      float64 // display units
	Color       color.RGBA
	IsReference bool

	// MaxOrbitPoints bounds the orbit trail; zero or negative keeps every point.
	MaxOrbitPoints int
}

// Body is a point mass taking part in the simulation.
//
// Position, velocity and the orbit trail are mutated once per tick by the
// simulation engine. Mass is fixed at construction.
type Body struct {
	ID          string
	Name        string
	Position    r2.Vec
	Velocity    r2.Vec
	Radius      float64
	Color       color.RGBA
	IsReference bool

	// DistanceToReference is the last recorded distance in metres to the
	// reference body, measured from tick-start positions.
	DistanceToReference float64

	Orbit *OrbitTrail

	mass       float64
	parent     *Body
	satellites []*Body
}

// NewBody validates def and returns a body ready to be registered.
func NewBody(def BodyDefinition) (*Body, error) {
	if !(def.Mass > 0) || math.IsInf(def.Mass, 0) {
		return nil, fmt.Errorf("body %q: %w (got %g)", def.ID, ErrInvalidMass, def.Mass)
	}
	if !(def.Radius > 0) {
		return nil, fmt.Errorf("body %q: %w (got %g)", def.ID, ErrInvalidRadius, def.Radius)
	}
	if !finite(def.Position) || !finite(def.Velocity) {
		return nil, fmt.Errorf("body %q: %w", def.ID, ErrInvalidState)
	}
	name := def.Name
	if name == "" {
		name = def.ID
	}
	return &Body{
		ID:          def.ID,
		Name:        name,
		Position:    def.Position,
		Velocity:    def.Velocity,
		Radius:      def.Radius,
		Color:       def.Color,
		IsReference: def.IsReference,
		Orbit:       NewOrbitTrail(def.MaxOrbitPoints),
		mass:        def.Mass,
	}, nil
}

// Mass returns the body's mass in kilograms.
func (b *Body) Mass() float64 { return b.mass }

// Parent returns the owning body for a satellite, or nil.
func (b *Body) Parent() *Body { return b.parent }

// IsSatellite reports whether b is owned by a parent body.
func (b *Body) IsSatellite() bool { return b.parent != nil }

// Satellites returns a copy of the ordered satellite list.
func (b *Body) Satellites() []*Body {
	out := make([]*Body, len(b.satellites))
	copy(out, b.satellites)
	return out
}

// AddSatellite appends s to b's satellites and records b as its parent.
// Only one level of nesting is supported.
func (b *Body) AddSatellite(s *Body) error {
	switch {
	case s == nil:
		return fmt.Errorf("%w: nil satellite for %q", ErrSatelliteRelation, b.ID)
	case s == b:
		return fmt.Errorf("%w: %q cannot orbit itself", ErrSatelliteRelation, b.ID)
	case b.parent != nil:
		return fmt.Errorf("%w: satellite %q cannot own satellites", ErrSatelliteRelation, b.ID)
	case s.parent != nil:
		return fmt.Errorf("%w: %q already orbits %q", ErrSatelliteRelation, s.ID, s.parent.ID)
	case len(s.satellites) > 0:
		return fmt.Errorf("%w: %q owns satellites and cannot become one", ErrSatelliteRelation, s.ID)
	}
	s.parent = b
	b.satellites = append(b.satellites, s)
	return nil
}

func (b *Body) String() string {
	return fmt.Sprintf("%s (%.4g kg)", b.Name, b.mass)
}

func finite(v r2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}
