package core

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"

	"github.com/signalsfoundry/gravity-simulator/model"
)

// TotalMomentum returns Σ m·v over bodies, in kg·m/s.
func TotalMomentum(bodies []*model.Body) r2.Vec {
	var p r2.Vec
	for _, b := range bodies {
		p = r2.Add(p, r2.Scale(b.Mass(), b.Velocity))
	}
	return p
}

// CenterOfMass returns the mass-weighted mean position of bodies.
func CenterOfMass(bodies []*model.Body) r2.Vec {
	var weighted r2.Vec
	var total float64
	for _, b := range bodies {
		weighted = r2.Add(weighted, r2.Scale(b.Mass(), b.Position))
		total += b.Mass()
	}
	if total == 0 {
		return r2.Vec{}
	}
	return r2.Scale(1/total, weighted)
}

// KineticEnergy returns Σ ½·m·|v|², in joules.
func KineticEnergy(bodies []*model.Body) float64 {
	terms := make([]float64, len(bodies))
	for i, b := range bodies {
		terms[i] = 0.5 * b.Mass() * r2.Norm2(b.Velocity)
	}
	return floats.SumCompensated(terms)
}

// PotentialEnergy returns the pairwise gravitational potential energy in
// joules. Coincident pairs are skipped.
func PotentialEnergy(bodies []*model.Body, g float64) float64 {
	var terms []float64
	for i := 0; i < len(bodies); i++ {
		for j := i + 1; j < len(bodies); j++ {
			d := Distance(bodies[i], bodies[j])
			if d == 0 {
				continue
			}
			terms = append(terms, -g*bodies[i].Mass()*bodies[j].Mass()/d)
		}
	}
	return floats.SumCompensated(terms)
}

// TotalEnergy returns kinetic plus potential energy.
func TotalEnergy(bodies []*model.Body, g float64) float64 {
	return KineticEnergy(bodies) + PotentialEnergy(bodies, g)
}

// EnergyDrift summarises a series of total-energy samples relative to the
// first one: the mean and the maximum absolute relative deviation.
func EnergyDrift(samples []float64) (mean, maxAbs float64) {
	if len(samples) < 2 || samples[0] == 0 {
		return 0, 0
	}
	rel := make([]float64, len(samples)-1)
	for i, e := range samples[1:] {
		rel[i] = (e - samples[0]) / math.Abs(samples[0])
	}
	for _, r := range rel {
		maxAbs = math.Max(maxAbs, math.Abs(r))
	}
	return stat.Mean(rel, nil), maxAbs
}
