package core

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/signalsfoundry/gravity-simulator/model"
)

// DefaultTimestep is one simulated day per tick, in seconds.
const DefaultTimestep = 3600 * 24

// Integrator advances bodies with semi-implicit (symplectic) Euler.
type Integrator struct {
	Force    ForceModel
	Timestep float64 // seconds per tick
}

// NewIntegrator returns an Integrator; a zero timestep selects DefaultTimestep.
func NewIntegrator(force ForceModel, timestep float64) *Integrator {
	if timestep == 0 {
		timestep = DefaultTimestep
	}
	return &Integrator{Force: force, Timestep: timestep}
}

// UpdatePosition accumulates the force of every other body in all on self and
// integrates one step. self is mutated in place.
func (in *Integrator) UpdatePosition(self *model.Body, all []*model.Body) error {
	force, err := in.Force.NetForce(self, all)
	if err != nil {
		return fmt.Errorf("update %q: %w", self.ID, err)
	}
	in.Apply(self, force)
	return nil
}

// Apply integrates one step under a precomputed net force: velocity first,
// then position from the updated velocity, then the trail point.
func (in *Integrator) Apply(b *model.Body, force r2.Vec) {
	dt := in.Timestep
	m := b.Mass()

	b.Velocity.X += force.X / m * dt
	b.Velocity.Y += force.Y / m * dt

	b.Position.X += b.Velocity.X * dt
	b.Position.Y += b.Velocity.Y * dt

	b.Orbit.Record(b.Position)
}
