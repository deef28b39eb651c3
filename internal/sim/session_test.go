package sim

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/signalsfoundry/gravity-simulator/core"
	"github.com/signalsfoundry/gravity-simulator/internal/config"
	"github.com/signalsfoundry/gravity-simulator/internal/logging"
	"github.com/signalsfoundry/gravity-simulator/internal/stream"
	"github.com/signalsfoundry/gravity-simulator/timectrl"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("GRAVSIM_CLOCK_MODE", "accelerated")
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

func TestOpenAndRunHeadless(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Physics.MaxOrbitPoints = 4
	var buf bytes.Buffer
	ctx, log := logging.WithRunLogger(context.Background(), logging.New(logging.Config{Output: &buf}))
	ctx = logging.ContextWithLogger(ctx, log)

	s, err := Open(ctx, cfg, WithRegisterer(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close(context.Background())

	tc, err := s.Clock()
	if err != nil {
		t.Fatalf("Clock: %v", err)
	}
	if tc.Mode != timectrl.Accelerated {
		t.Fatalf("clock mode = %v", tc.Mode)
	}

	if err := s.RunHeadless(context.Background(), tc, 10, 5); err != nil {
		t.Fatalf("RunHeadless: %v", err)
	}
	if s.Engine.Tick() != 10 {
		t.Fatalf("tick = %d, want 10", s.Engine.Tick())
	}
	for _, b := range s.Engine.Snapshot().Bodies {
		if len(b.Orbit) != 4 {
			t.Fatalf("%s trail has %d points, want the configured cap of 4", b.ID, len(b.Orbit))
		}
	}
	if want := core.DefaultEpoch.Add(10 * 24 * time.Hour); !tc.Now().Equal(want) {
		t.Fatalf("clock = %v, want %v", tc.Now(), want)
	}
	if got := testutil.ToFloat64(s.Metrics.Ticks); got != 10 {
		t.Fatalf("ticks metric = %v, want 10", got)
	}

	out := buf.String()
	if strings.Count(out, "simulation summary") != 3 {
		t.Fatalf("expected summaries at ticks 5 and 10 plus the final one:\n%s", out)
	}
	if !strings.Contains(out, "earth_km=") {
		t.Fatalf("summary should report distances:\n%s", out)
	}
	if !strings.Contains(out, "run_id="+logging.RunIDFromContext(ctx)) {
		t.Fatalf("logs should carry the run id from the context logger:\n%s", out)
	}
	if !strings.Contains(out, "simulation finished") || !strings.Contains(out, "wall_time=") {
		t.Fatalf("expected a final wall-time line:\n%s", out)
	}
}

func TestStreamReceivesEveryTick(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Stream.Enabled = true
	cfg.Stream.MaxFPS = 0
	ctx, _ := logging.WithRunLogger(context.Background(), nil)

	s, err := Open(ctx, cfg, WithRegisterer(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close(context.Background())
	if s.Stream == nil {
		t.Fatalf("stream hub not created")
	}

	srv := httptest.NewServer(s.Stream)
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	for deadline := time.Now().Add(2 * time.Second); s.Stream.Clients() == 0; {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := s.Engine.Run(context.Background(), 3); err != nil {
		t.Fatalf("Run: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for want := 1; want <= 3; want++ {
		var f stream.Frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		if f.Tick != want {
			t.Fatalf("frame tick = %d, want %d", f.Tick, want)
		}
		if f.RunID == "" || f.RunID != logging.RunIDFromContext(ctx) {
			t.Fatalf("frame run id = %q", f.RunID)
		}
	}
}

func TestRunHeadlessStopsOnDegenerateScenario(t *testing.T) {
	cfg := loadConfig(t)
	sc := &core.Scenario{
		Name: "collision",
		Bodies: []core.BodySpec{
			{ID: "a", State: core.StaticState{Position: r2.Vec{X: 1}}, Mass: 1, Radius: 1},
			{ID: "b", State: core.StaticState{Position: r2.Vec{X: 1}}, Mass: 1, Radius: 1},
		},
	}
	s, err := Open(context.Background(), cfg, WithRegisterer(prometheus.NewRegistry()), WithScenario(sc))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close(context.Background())

	tc, err := s.Clock()
	if err != nil {
		t.Fatalf("Clock: %v", err)
	}
	if err := s.RunHeadless(context.Background(), tc, 5, 0); !errors.Is(err, core.ErrDegenerateConfiguration) {
		t.Fatalf("RunHeadless error = %v, want ErrDegenerateConfiguration", err)
	}
}

func TestOpenRejectsBadScenario(t *testing.T) {
	cfg := loadConfig(t)
	sc := &core.Scenario{Bodies: []core.BodySpec{{ID: "a", State: core.StaticState{}, Mass: -1, Radius: 1}}}
	if _, err := Open(context.Background(), cfg, WithRegisterer(prometheus.NewRegistry()), WithScenario(sc)); err == nil {
		t.Fatalf("expected error for negative mass")
	}
	if _, err := Open(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
