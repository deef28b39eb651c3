package core

import (
	"fmt"
	"strings"

	"github.com/signalsfoundry/gravity-simulator/model"
)

// SatelliteMode selects how satellites are advanced.
type SatelliteMode int

const (
	// SatelliteModeAnchored integrates the satellite and then re-anchors it on
	// its parent's current position. This is an approximation, not a
	// restricted two-body solution.
	SatelliteModeAnchored SatelliteMode = iota
	// SatelliteModeInertial integrates the satellite as a plain body in the
	// inertial frame with no re-anchoring.
	SatelliteModeInertial
)

func (m SatelliteMode) String() string {
	switch m {
	case SatelliteModeAnchored:
		return "anchored"
	case SatelliteModeInertial:
		return "inertial"
	default:
		return fmt.Sprintf("SatelliteMode(%d)", int(m))
	}
}

// ParseSatelliteMode maps a config string to a SatelliteMode.
func ParseSatelliteMode(s string) (SatelliteMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "anchored":
		return SatelliteModeAnchored, nil
	case "inertial":
		return SatelliteModeInertial, nil
	default:
		return 0, fmt.Errorf("unknown satellite mode %q", s)
	}
}

// SatelliteComposer advances satellites relative to their parent body.
// Satellites only receive force; they never act on other bodies.
type SatelliteComposer struct {
	Integrator *Integrator
	Mode       SatelliteMode
}

// UpdatePosition advances sat one tick. The parent's contribution is applied
// first, then that of every other body in all.
func (sc *SatelliteComposer) UpdatePosition(sat *model.Body, all []*model.Body, parent *model.Body) error {
	if parent == nil {
		return fmt.Errorf("update satellite %q: parent is nil", sat.ID)
	}
	in := sc.Integrator
	dt := in.Timestep
	m := sat.Mass()

	pf, err := in.Force.Attraction(sat, parent)
	if err != nil {
		return fmt.Errorf("update satellite %q: %w", sat.ID, err)
	}
	sat.Velocity.X += pf.X / m * dt
	sat.Velocity.Y += pf.Y / m * dt

	of, err := in.Force.NetForce(sat, all, parent)
	if err != nil {
		return fmt.Errorf("update satellite %q: %w", sat.ID, err)
	}
	sat.Velocity.X += of.X / m * dt
	sat.Velocity.Y += of.Y / m * dt

	if sc.Mode == SatelliteModeAnchored {
		sat.Position.X += sat.Velocity.X*dt + (parent.Position.X - sat.Position.X)
		sat.Position.Y += sat.Velocity.Y*dt + (parent.Position.Y - sat.Position.Y)
	} else {
		sat.Position.X += sat.Velocity.X * dt
		sat.Position.Y += sat.Velocity.Y * dt
	}

	sat.Orbit.Record(sat.Position)
	return nil
}
