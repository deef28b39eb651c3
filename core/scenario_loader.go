package core

import (
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/signalsfoundry/gravity-simulator/kb"
	"github.com/signalsfoundry/gravity-simulator/model"
)

// DefaultEpoch is used when a scenario does not name one (J2000).
var DefaultEpoch = time.Date(2000, time.January, 1, 12, 0, 0, 0, time.UTC)

// Palette used by the built-in scenarios.
var (
	ColorWhite    = color.RGBA{200, 200, 200, 255}
	ColorYellow   = color.RGBA{255, 174, 66, 255}
	ColorBlue     = color.RGBA{100, 149, 237, 255}
	ColorRed      = color.RGBA{188, 39, 50, 255}
	ColorDarkGray = color.RGBA{80, 78, 81, 255}
)

// Scenario is a set of initial body definitions, not yet registered.
type Scenario struct {
	Name   string
	Epoch  time.Time
	Bodies []BodySpec
}

// BodySpec describes one body. For satellites, State is relative to the
// parent: the offset from its position and the velocity on top of its
// velocity.
type BodySpec struct {
	ID          string
	Name        string
	State       StateSource
	Mass        float64
	Radius      float64
	Color       color.RGBA
	IsReference bool

	// Circular replaces the velocity with the circular orbital velocity around
	// the reference body, or the parent for satellites.
	Circular bool

	Satellites []BodySpec
}

// BuildOptions controls how a Scenario is turned into bodies.
type BuildOptions struct {
	G              float64
	MaxOrbitPoints int
}

// JSON file shapes. Scenario and BodySpec are the public form.
type scenarioJSON struct {
	Name   string     `json:"name"`
	Epoch  string     `json:"epoch"`
	Units  unitsJSON  `json:"units"`
	Bodies []bodyJSON `json:"bodies"`
}

type unitsJSON struct {
	Distance string `json:"distance"` // "m" | "km" | "au"
	Velocity string `json:"velocity"` // "m/s" | "km/s"
}

type bodyJSON struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Position   [2]float64 `json:"position"`
	Velocity   [2]float64 `json:"velocity"`
	Mass       float64    `json:"mass"`
	Radius     float64    `json:"radius"`
	Color      string     `json:"color"`
	Reference  bool       `json:"reference"`
	Circular   bool       `json:"circular"`
	TLE        []string   `json:"tle"` // satellites only; overrides position/velocity
	Satellites []bodyJSON `json:"satellites"`
}

// LoadScenario reads a JSON scenario from r. Distances and velocities are
// converted to SI units; colors are parsed from hex strings.
func LoadScenario(r io.Reader) (*Scenario, error) {
	var payload scenarioJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}

	distScale, err := distanceScale(payload.Units.Distance)
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}
	velScale, err := velocityScale(payload.Units.Velocity)
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}

	epoch := DefaultEpoch
	if payload.Epoch != "" {
		epoch, err = time.Parse(time.RFC3339, payload.Epoch)
		if err != nil {
			return nil, fmt.Errorf("LoadScenario: epoch: %w", err)
		}
	}

	sc := &Scenario{Name: payload.Name, Epoch: epoch}
	for _, js := range payload.Bodies {
		spec, err := js.toSpec(distScale, velScale, false)
		if err != nil {
			return nil, fmt.Errorf("LoadScenario: %w", err)
		}
		sc.Bodies = append(sc.Bodies, spec)
	}
	if len(sc.Bodies) == 0 {
		return nil, fmt.Errorf("LoadScenario: scenario %q has no bodies", payload.Name)
	}
	return sc, nil
}

func (js bodyJSON) toSpec(distScale, velScale float64, isSatellite bool) (BodySpec, error) {
	if js.ID == "" {
		return BodySpec{}, fmt.Errorf("body with empty id")
	}
	clr, err := parseColor(js.Color)
	if err != nil {
		return BodySpec{}, fmt.Errorf("body %q: %w", js.ID, err)
	}

	spec := BodySpec{
		ID:          js.ID,
		Name:        js.Name,
		Mass:        js.Mass,
		Radius:      js.Radius,
		Color:       clr,
		IsReference: js.Reference,
		Circular:    js.Circular,
		State: StaticState{
			Position: r2.Vec{X: js.Position[0] * distScale, Y: js.Position[1] * distScale},
			Velocity: r2.Vec{X: js.Velocity[0] * velScale, Y: js.Velocity[1] * velScale},
		},
	}

	if len(js.TLE) > 0 {
		if !isSatellite {
			return BodySpec{}, fmt.Errorf("body %q: tle is only supported for satellites", js.ID)
		}
		if len(js.TLE) != 2 {
			return BodySpec{}, fmt.Errorf("body %q: tle needs exactly 2 lines, got %d", js.ID, len(js.TLE))
		}
		tle, err := NewTLEState(js.TLE[0], js.TLE[1])
		if err != nil {
			return BodySpec{}, fmt.Errorf("body %q: %w", js.ID, err)
		}
		spec.State = tle
	}

	if isSatellite && len(js.Satellites) > 0 {
		return BodySpec{}, fmt.Errorf("satellite %q: nested satellites are not supported", js.ID)
	}
	for _, child := range js.Satellites {
		sat, err := child.toSpec(distScale, velScale, true)
		if err != nil {
			return BodySpec{}, err
		}
		spec.Satellites = append(spec.Satellites, sat)
	}
	return spec, nil
}

// Build resolves initial states and registers every body in store, in
// scenario order.
func (s *Scenario) Build(store *kb.KnowledgeBase, opts BuildOptions) error {
	if store == nil {
		return fmt.Errorf("Build: kb is nil")
	}
	g := NewForceModel(opts.G).G

	var ref *model.Body
	var circular []*model.Body
	for _, spec := range s.Bodies {
		body, err := spec.newBody(s.Epoch, opts.MaxOrbitPoints, r2.Vec{}, r2.Vec{})
		if err != nil {
			return err
		}
		if err := store.AddBody(body); err != nil {
			return err
		}
		if body.IsReference {
			ref = body
		}
		if spec.Circular {
			circular = append(circular, body)
		}
	}

	for _, body := range circular {
		if ref == nil {
			return fmt.Errorf("body %q: circular orbit requested but scenario has no reference body", body.ID)
		}
		if body == ref {
			return fmt.Errorf("body %q: reference body cannot request a circular orbit", body.ID)
		}
		v, err := CircularVelocity(g, ref.Mass(), ref.Position, body.Position)
		if err != nil {
			return fmt.Errorf("body %q: %w", body.ID, err)
		}
		body.Velocity = r2.Add(ref.Velocity, v)
	}

	// Satellites are placed after their parents' final velocities are known.
	for _, spec := range s.Bodies {
		parent := store.GetBody(spec.ID)
		for _, satSpec := range spec.Satellites {
			sat, err := satSpec.newBody(s.Epoch, opts.MaxOrbitPoints, parent.Position, parent.Velocity)
			if err != nil {
				return err
			}
			if satSpec.Circular {
				v, err := CircularVelocity(g, parent.Mass(), parent.Position, sat.Position)
				if err != nil {
					return fmt.Errorf("satellite %q: %w", sat.ID, err)
				}
				sat.Velocity = r2.Add(parent.Velocity, v)
			}
			if err := store.AddSatellite(parent.ID, sat); err != nil {
				return err
			}
		}
	}
	return nil
}

func (spec BodySpec) newBody(epoch time.Time, maxOrbit int, originPos, originVel r2.Vec) (*model.Body, error) {
	if spec.State == nil {
		return nil, fmt.Errorf("body %q: no initial state", spec.ID)
	}
	pos, vel, err := spec.State.InitialState(epoch)
	if err != nil {
		return nil, fmt.Errorf("body %q: %w", spec.ID, err)
	}
	return model.NewBody(model.BodyDefinition{
		ID:             spec.ID,
		Name:           spec.Name,
		Position:       r2.Add(originPos, pos),
		Velocity:       r2.Add(originVel, vel),
		Mass:           spec.Mass,
		Radius:         spec.Radius,
		Color:          spec.Color,
		IsReference:    spec.IsReference,
		MaxOrbitPoints: maxOrbit,
	})
}

// DefaultScenario returns the inner solar system: the Sun as reference body
// with Earth, Mars, Mercury and Venus on near-circular orbits.
func DefaultScenario() *Scenario {
	static := func(x, vy float64) StaticState {
		return StaticState{Position: r2.Vec{X: x * AU}, Velocity: r2.Vec{Y: vy * 1000}}
	}
	return &Scenario{
		Name:  "inner-solar-system",
		Epoch: DefaultEpoch,
		Bodies: []BodySpec{
			{ID: "sun", Name: "Sun", State: static(0, 0), Mass: 1.989e30, Radius: 30, Color: ColorYellow, IsReference: true},
			{ID: "earth", Name: "Earth", State: static(-1, 29.783), Mass: 5.972e24, Radius: 16, Color: ColorBlue},
			{ID: "mars", Name: "Mars", State: static(-1.524, 24.077), Mass: 6.39e23, Radius: 12, Color: ColorRed},
			{ID: "mercury", Name: "Mercury", State: static(0.387, -47.362), Mass: 3.285e23, Radius: 8, Color: ColorDarkGray},
			{ID: "venus", Name: "Venus", State: static(0.723, -35.02), Mass: 4.867e24, Radius: 14, Color: ColorWhite},
		},
	}
}

// EarthMoonScenario extends DefaultScenario with the Moon as a satellite of
// Earth.
func EarthMoonScenario() *Scenario {
	sc := DefaultScenario()
	sc.Name = "inner-solar-system-with-moon"
	for i := range sc.Bodies {
		if sc.Bodies[i].ID != "earth" {
			continue
		}
		sc.Bodies[i].Satellites = []BodySpec{{
			ID:   "moon",
			Name: "Moon",
			State: StaticState{
				Position: r2.Vec{X: -3.844e8},
				Velocity: r2.Vec{Y: 1022},
			},
			Mass:   7.342e22,
			Radius: 4,
			Color:  ColorWhite,
		}}
	}
	return sc
}

func parseColor(hex string) (color.RGBA, error) {
	hex = strings.TrimSpace(hex)
	if hex == "" {
		return ColorWhite, nil
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

func distanceScale(unit string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "", "m":
		return 1, nil
	case "km":
		return 1000, nil
	case "au":
		return AU, nil
	default:
		return 0, fmt.Errorf("unknown distance unit %q", unit)
	}
}

func velocityScale(unit string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "", "m/s":
		return 1, nil
	case "km/s":
		return 1000, nil
	default:
		return 0, fmt.Errorf("unknown velocity unit %q", unit)
	}
}
