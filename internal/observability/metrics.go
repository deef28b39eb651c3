package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles Prometheus metrics for the simulation loop. It
// satisfies core.MetricsRecorder so the engine drives it once per tick.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram

	Bodies            prometheus.Gauge
	TotalEnergy       prometheus.Gauge
	TotalMomentum     prometheus.Gauge
	ReferenceDistance *prometheus.GaugeVec
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
// Registering twice against the same registry returns the existing
// collectors.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gravsim_ticks_total",
		Help: "Total number of completed simulation ticks.",
	}), "gravsim_ticks_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gravsim_tick_duration_seconds",
		Help:    "Wall-clock time spent computing one simulation tick.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}), "gravsim_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	bodies, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gravsim_bodies",
		Help: "Number of bodies in the simulation, satellites included.",
	}), "gravsim_bodies")
	if err != nil {
		return nil, err
	}
	energy, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gravsim_total_energy_joules",
		Help: "Kinetic plus potential energy of the top-level bodies.",
	}), "gravsim_total_energy_joules")
	if err != nil {
		return nil, err
	}
	momentum, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gravsim_total_momentum",
		Help: "Magnitude of the total linear momentum of the top-level bodies, in kg·m/s.",
	}), "gravsim_total_momentum")
	if err != nil {
		return nil, err
	}

	distance, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gravsim_reference_distance_meters",
		Help: "Distance from each body to the reference body at the start of the last tick.",
	}, []string{"body"}), "gravsim_reference_distance_meters")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:          gatherer,
		Ticks:             ticks,
		TickDuration:      duration,
		Bodies:            bodies,
		TotalEnergy:       energy,
		TotalMomentum:     momentum,
		ReferenceDistance: distance,
	}, nil
}

// ObserveTick counts a completed tick and its compute time.
func (c *SimCollector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.TickDuration.Observe(d.Seconds())
}

// SetSystemState updates the whole-system gauges.
func (c *SimCollector) SetSystemState(bodies int, energy, momentum float64) {
	if c == nil {
		return
	}
	c.Bodies.Set(float64(bodies))
	c.TotalEnergy.Set(energy)
	c.TotalMomentum.Set(momentum)
}

// SetReferenceDistance records one body's distance to the reference body.
func (c *SimCollector) SetReferenceDistance(bodyID string, metres float64) {
	if c == nil {
		return
	}
	c.ReferenceDistance.WithLabelValues(bodyID).Set(metres)
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
