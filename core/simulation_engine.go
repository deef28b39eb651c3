package core

import (
	"context"
	"fmt"
	"image/color"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/signalsfoundry/gravity-simulator/internal/logging"
	"github.com/signalsfoundry/gravity-simulator/kb"
	"github.com/signalsfoundry/gravity-simulator/model"
)

const tracerName = "github.com/signalsfoundry/gravity-simulator/core"

// Params configures the physics of a SimulationEngine.
type Params struct {
	G        float64 // gravitational constant; zero selects DefaultG
	Timestep float64 // simulated seconds per tick; zero selects DefaultTimestep

	// Batched computes every top-level force from tick-start positions before
	// applying any of them. The default sequential mode updates bodies one at
	// a time, so later bodies see earlier bodies' new positions. The two modes
	// produce different trajectories.
	Batched bool

	SatelliteMode SatelliteMode
}

// MetricsRecorder receives per-tick measurements from the engine.
type MetricsRecorder interface {
	ObserveTick(d time.Duration)
	SetSystemState(bodies int, energy, momentum float64)
	SetReferenceDistance(bodyID string, metres float64)
}

// EngineOption customises SimulationEngine construction.
type EngineOption func(*SimulationEngine)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) EngineOption {
	return func(se *SimulationEngine) {
		if l != nil {
			se.log = l
		}
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) EngineOption {
	return func(se *SimulationEngine) {
		se.metrics = m
	}
}

// WithTracer overrides the tracer used for per-tick spans.
func WithTracer(t trace.Tracer) EngineOption {
	return func(se *SimulationEngine) {
		if t != nil {
			se.tracer = t
		}
	}
}

// BodyState is a read-only copy of one body's drawable state.
type BodyState struct {
	ID       string
	Name     string
	ParentID string

	Position r2.Vec
	Velocity r2.Vec
	Mass     float64
	Radius   float64
	Color    color.RGBA

	IsReference         bool
	DistanceToReference float64
	Orbit               []r2.Vec
}

// Snapshot is the state handed to renderers after a tick.
type Snapshot struct {
	Tick    int
	Elapsed float64 // simulated seconds
	Bodies  []BodyState
}

// SimulationEngine advances every body in a KnowledgeBase by one fixed
// timestep per tick. It is single-threaded: Step must not be called
// concurrently.
type SimulationEngine struct {
	KB         *kb.KnowledgeBase
	Integrator *Integrator
	Satellites *SatelliteComposer

	params        Params
	tick          int
	failed        error
	forces        []r2.Vec
	log           logging.Logger
	metrics       MetricsRecorder
	tracer        trace.Tracer
	tickListeners []func(int)
}

// NewSimulationEngine wires the force model, integrator and satellite
// composer for the bodies in store.
func NewSimulationEngine(store *kb.KnowledgeBase, params Params, opts ...EngineOption) *SimulationEngine {
	force := NewForceModel(params.G)
	params.G = force.G
	integrator := NewIntegrator(force, params.Timestep)
	params.Timestep = integrator.Timestep

	se := &SimulationEngine{
		KB:         store,
		Integrator: integrator,
		Satellites: &SatelliteComposer{Integrator: integrator, Mode: params.SatelliteMode},
		params:     params,
		log:        logging.Noop(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(se)
	}
	return se
}

// RegisterTickListener registers fn to be called with the tick number after
// every successful tick.
func (se *SimulationEngine) RegisterTickListener(fn func(int)) {
	se.tickListeners = append(se.tickListeners, fn)
}

// Params returns the effective physics parameters.
func (se *SimulationEngine) Params() Params { return se.params }

// Tick returns the number of completed ticks.
func (se *SimulationEngine) Tick() int { return se.tick }

// Elapsed returns the simulated seconds covered by the completed ticks. It is
// a float rather than a time.Duration, which would overflow after about 292
// simulated years.
func (se *SimulationEngine) Elapsed() float64 {
	return float64(se.tick) * se.params.Timestep
}

// Step advances the simulation by one tick. The first call seals the body
// set. A degenerate configuration aborts the tick and leaves the engine
// failed: every later Step returns the same error.
func (se *SimulationEngine) Step(ctx context.Context) (err error) {
	if se.failed != nil {
		return se.failed
	}
	start := time.Now()
	ctx, span := se.tracer.Start(ctx, "SimulationEngine.Step",
		trace.WithAttributes(attribute.Int("tick", se.tick+1)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	se.KB.Seal()
	top := se.KB.TopLevel()

	se.recordReferenceDistances(top)

	if se.params.Batched {
		err = se.stepBatched(top)
	} else {
		err = se.stepSequential(top)
	}
	if err == nil {
		err = se.stepSatellites(top)
	}
	if err != nil {
		se.failed = fmt.Errorf("tick %d: %w", se.tick+1, err)
		se.log.Error(ctx, "simulation tick failed",
			logging.Int("tick", se.tick+1),
			logging.String("error", err.Error()),
		)
		return se.failed
	}

	se.tick++
	se.observe(time.Since(start), top)
	span.SetAttributes(attribute.Int("bodies", se.KB.Len()))
	se.log.Debug(ctx, "tick complete",
		logging.Int("tick", se.tick),
		logging.Int("bodies", se.KB.Len()),
	)

	for _, fn := range se.tickListeners {
		fn(se.tick)
	}
	return nil
}

// Run steps the simulation until ticks have completed, or until ctx is
// cancelled when ticks <= 0. Cancellation is only observed between ticks and
// is a normal stop, not an error.
func (se *SimulationEngine) Run(ctx context.Context, ticks int) error {
	for n := 0; ticks <= 0 || n < ticks; n++ {
		if ctx.Err() != nil {
			return nil
		}
		if err := se.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot copies the drawable state of every body, top-level bodies first
// in update order, each followed by its satellites.
func (se *SimulationEngine) Snapshot() Snapshot {
	all := se.KB.All()
	snap := Snapshot{
		Tick:    se.tick,
		Elapsed: se.Elapsed(),
		Bodies:  make([]BodyState, 0, len(all)),
	}
	for _, b := range all {
		st := BodyState{
			ID:                  b.ID,
			Name:                b.Name,
			Position:            b.Position,
			Velocity:            b.Velocity,
			Mass:                b.Mass(),
			Radius:              b.Radius,
			Color:               b.Color,
			IsReference:         b.IsReference,
			DistanceToReference: b.DistanceToReference,
			Orbit:               b.Orbit.Points(),
		}
		if p := b.Parent(); p != nil {
			st.ParentID = p.ID
		}
		snap.Bodies = append(snap.Bodies, st)
	}
	return snap
}

func (se *SimulationEngine) stepSequential(top []*model.Body) error {
	for _, b := range top {
		if err := se.Integrator.UpdatePosition(b, top); err != nil {
			return err
		}
	}
	return nil
}

func (se *SimulationEngine) stepBatched(top []*model.Body) error {
	if cap(se.forces) < len(top) {
		se.forces = make([]r2.Vec, len(top))
	}
	forces := se.forces[:len(top)]
	for i, b := range top {
		f, err := se.Integrator.Force.NetForce(b, top)
		if err != nil {
			return fmt.Errorf("update %q: %w", b.ID, err)
		}
		forces[i] = f
	}
	for i, b := range top {
		se.Integrator.Apply(b, forces[i])
	}
	return nil
}

func (se *SimulationEngine) stepSatellites(top []*model.Body) error {
	for _, parent := range top {
		for _, sat := range parent.Satellites() {
			if err := se.Satellites.UpdatePosition(sat, top, parent); err != nil {
				return err
			}
		}
	}
	return nil
}

// recordReferenceDistances stores every body's distance to the reference
// body from tick-start positions, once per tick. A reference body measures
// against the last other reference, if any.
func (se *SimulationEngine) recordReferenceDistances(top []*model.Body) {
	ref := se.KB.Reference()
	if ref == nil {
		return
	}
	var other *model.Body
	for _, b := range top {
		if b.IsReference && b != ref {
			other = b
		}
	}
	for _, b := range se.KB.All() {
		switch {
		case b != ref:
			b.DistanceToReference = Distance(b, ref)
		case other != nil:
			b.DistanceToReference = Distance(b, other)
		}
	}
}

func (se *SimulationEngine) observe(d time.Duration, top []*model.Body) {
	if se.metrics == nil {
		return
	}
	se.metrics.ObserveTick(d)
	se.metrics.SetSystemState(
		se.KB.Len(),
		TotalEnergy(top, se.params.G),
		r2.Norm(TotalMomentum(top)),
	)
	for _, b := range se.KB.All() {
		if !b.IsReference {
			se.metrics.SetReferenceDistance(b.ID, b.DistanceToReference)
		}
	}
}
