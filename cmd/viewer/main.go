package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/signalsfoundry/gravity-simulator/core"
	"github.com/signalsfoundry/gravity-simulator/internal/config"
	"github.com/signalsfoundry/gravity-simulator/internal/logging"
	"github.com/signalsfoundry/gravity-simulator/internal/sim"
	"github.com/signalsfoundry/gravity-simulator/internal/viewer"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML/TOML/JSON config file")
	scenarioPath := flag.String("scenario", "", "JSON scenario file (overrides scenario.path)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides metrics.addr)")
	flag.Parse()

	if err := run(*configPath, *scenarioPath, *metricsAddr); err != nil {
		fmt.Fprintf(os.Stderr, "viewer: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, scenarioPath, metricsAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if scenarioPath != "" {
		cfg.Scenario.Path = scenarioPath
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, log := logging.WithRunLogger(ctx, logging.New(cfg.Logging()))
	ctx = logging.ContextWithLogger(ctx, log)

	s, err := sim.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())
	s.ServeMetrics()

	view := core.NewViewport(cfg.Render.Width, cfg.Render.Height, cfg.Render.Scale)
	ebiten.SetWindowSize(view.Width, view.Height)
	ebiten.SetWindowTitle("Planet Simulation")
	ebiten.SetTPS(cfg.Render.TPS)

	err = ebiten.RunGame(viewer.NewGame(ctx, s.Engine, view))
	if err != nil {
		log.Error(ctx, "viewer stopped", logging.String("error", err.Error()), logging.Int("tick", s.Engine.Tick()))
		return err
	}
	log.Info(ctx, "viewer closed", logging.Int("tick", s.Engine.Tick()))
	return nil
}
