// Package sim wires a configured simulation: scenario, knowledge base,
// engine, metrics and tracing. Both commands start from a Session.
package sim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/signalsfoundry/gravity-simulator/core"
	"github.com/signalsfoundry/gravity-simulator/internal/config"
	"github.com/signalsfoundry/gravity-simulator/internal/logging"
	"github.com/signalsfoundry/gravity-simulator/internal/observability"
	"github.com/signalsfoundry/gravity-simulator/internal/stream"
	"github.com/signalsfoundry/gravity-simulator/kb"
	"github.com/signalsfoundry/gravity-simulator/timectrl"
)

// Session owns one simulation run.
type Session struct {
	Config   *config.Config
	Scenario *core.Scenario
	KB       *kb.KnowledgeBase
	Engine   *core.SimulationEngine
	Metrics  *observability.SimCollector
	Stream   *stream.Hub // nil unless stream.enabled

	log        logging.Logger
	tracing    *observability.Tracing
	metricsSrv *http.Server
}

type options struct {
	registerer prometheus.Registerer
	scenario   *core.Scenario
}

// Option customises Open.
type Option func(*options)

// WithRegisterer registers metrics somewhere other than the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithScenario overrides the configured scenario.
func WithScenario(sc *core.Scenario) Option {
	return func(o *options) { o.scenario = sc }
}

// Open builds the scenario into a fresh knowledge base and wires the engine
// with metrics, tracing and the logger carried by ctx.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("sim: config is nil")
	}
	log := logging.LoggerFromContext(ctx)
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sc := o.scenario
	if sc == nil {
		var err error
		if sc, err = cfg.LoadScenario(); err != nil {
			return nil, err
		}
	}

	store := kb.NewKnowledgeBase()
	if err := sc.Build(store, cfg.BuildOptions()); err != nil {
		return nil, fmt.Errorf("build scenario %q: %w", sc.Name, err)
	}

	params, err := cfg.EngineParams()
	if err != nil {
		return nil, err
	}

	collector, err := observability.NewSimCollector(o.registerer)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	tcfg := cfg.TracingSettings()
	tcfg.Scenario = sc.Name
	tcfg.RunID = logging.RunIDFromContext(ctx)
	tracing, err := observability.NewTracing(ctx, tcfg, log)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	engine := core.NewSimulationEngine(store, params,
		core.WithLogger(log),
		core.WithMetricsRecorder(collector),
		core.WithTracer(tracing.Tracer()),
	)

	var hub *stream.Hub
	if cfg.Stream.Enabled {
		hub = stream.NewHub(cfg.Stream.MaxFPS, log)
		hub.RunID = logging.RunIDFromContext(ctx)
		engine.RegisterTickListener(func(int) { hub.Publish(engine) })
	}

	log.Info(ctx, "scenario loaded",
		logging.String("scenario", sc.Name),
		logging.Int("bodies", store.Len()),
		logging.Float("timestep_s", params.Timestep),
		logging.Any("batched", params.Batched),
		logging.String("satellite_mode", params.SatelliteMode.String()),
	)

	return &Session{
		Config:   cfg,
		Scenario: sc,
		KB:       store,
		Engine:   engine,
		Metrics:  collector,
		Stream:   hub,
		log:      log,
		tracing:  tracing,
	}, nil
}

// ServeMetrics starts the /metrics listener when an address is configured.
// The snapshot stream, when enabled, is served on the same listener at /ws.
func (s *Session) ServeMetrics() {
	addr := s.Config.Metrics.Addr
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Metrics.Handler())
	if s.Stream != nil {
		mux.Handle("/ws", s.Stream)
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	s.log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	s.metricsSrv = srv
}

// Clock returns a time controller starting at the scenario epoch.
func (s *Session) Clock() (*timectrl.TimeController, error) {
	return s.Config.TimeController(s.Scenario.Epoch)
}

// RunHeadless drives the engine from tc until maxTicks ticks have run or ctx
// is cancelled, logging a summary every summaryEvery ticks.
func (s *Session) RunHeadless(ctx context.Context, tc *timectrl.TimeController, maxTicks, summaryEvery int) error {
	tc.AddListener(func(time.Time) error {
		if err := s.Engine.Step(ctx); err != nil {
			return err
		}
		if summaryEvery > 0 && s.Engine.Tick()%summaryEvery == 0 {
			s.LogSummary(ctx, tc.JulianDay())
		}
		return nil
	})
	s.log.Info(ctx, "simulation started",
		logging.String("mode", tc.Mode.String()),
		logging.Int("max_ticks", maxTicks),
	)
	start := time.Now()
	err := tc.Run(ctx, maxTicks)
	s.LogSummary(ctx, tc.JulianDay())
	s.log.Info(ctx, "simulation finished",
		logging.Int("tick", s.Engine.Tick()),
		logging.Duration("wall_time", time.Since(start)),
	)
	return err
}

// LogSummary logs the tick, the system energy and every body's distance to
// the reference body.
func (s *Session) LogSummary(ctx context.Context, jd float64) {
	top := s.KB.TopLevel()
	fields := []logging.Field{
		logging.Int("tick", s.Engine.Tick()),
		logging.Float("julian_day", jd),
		logging.Float("energy_j", core.TotalEnergy(top, s.Engine.Params().G)),
		logging.Float("momentum", r2.Norm(core.TotalMomentum(top))),
	}
	for _, b := range s.KB.All() {
		if !b.IsReference {
			fields = append(fields, logging.Float(b.ID+"_km", b.DistanceToReference/1000))
		}
	}
	s.log.Info(ctx, "simulation summary", fields...)
}

// Close stops the metrics listener and flushes spans.
func (s *Session) Close(ctx context.Context) {
	if s.Stream != nil {
		s.Stream.Close()
	}
	if s.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = s.metricsSrv.Shutdown(shutdownCtx)
	}
	s.tracing.Close(ctx)
}
