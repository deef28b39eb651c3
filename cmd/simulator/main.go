package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/signalsfoundry/gravity-simulator/internal/config"
	"github.com/signalsfoundry/gravity-simulator/internal/logging"
	"github.com/signalsfoundry/gravity-simulator/internal/sim"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML/TOML/JSON config file")
	mode := flag.String("mode", "headless", "front end: headless or tui")
	ticks := flag.Int("ticks", -1, "number of ticks to run; 0 runs until interrupted, -1 uses clock.max_ticks")
	summaryEvery := flag.Int("summary-every", 30, "log a summary every N ticks in headless mode")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides metrics.addr)")
	flag.Parse()

	if err := run(*configPath, *mode, *ticks, *summaryEvery, *metricsAddr); err != nil {
		fmt.Fprintf(os.Stderr, "simulator: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, mode string, ticks, summaryEvery int, metricsAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if ticks < 0 {
		ticks = cfg.Clock.MaxTicks
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

	tc, err := s.Clock()
	if err != nil {
		return err
	}

	switch mode {
	case "headless":
		err = s.RunHeadless(ctx, tc, ticks, summaryEvery)
	case "tui":
		err = runTUI(ctx, s.Engine, tc)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		log.Error(ctx, "simulation failed", logging.String("error", err.Error()))
		return err
	}
	log.Info(ctx, "simulation stopped", logging.Int("tick", s.Engine.Tick()))
	return nil
}
