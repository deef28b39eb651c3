package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/signalsfoundry/gravity-simulator/core"
	"github.com/signalsfoundry/gravity-simulator/kb"
	"github.com/signalsfoundry/gravity-simulator/timectrl"
)

func newTestModel(t *testing.T, ctx context.Context) Model {
	t.Helper()
	store := kb.NewKnowledgeBase()
	if err := core.EarthMoonScenario().Build(store, core.BuildOptions{}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	engine := core.NewSimulationEngine(store, core.Params{})
	clock := timectrl.NewTimeController(core.DefaultEpoch, 24*time.Hour, timectrl.Accelerated)
	return New(ctx, engine, clock, time.Millisecond)
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTickAdvancesEngineAndClock(t *testing.T) {
	m := newTestModel(t, context.Background())

	next, cmd := m.Update(tickMsg(time.Now()))
	m = next.(Model)
	if cmd == nil {
		t.Fatalf("tick should schedule the next tick")
	}
	if m.engine.Tick() != 1 {
		t.Fatalf("tick = %d, want 1", m.engine.Tick())
	}
	if want := core.DefaultEpoch.Add(24 * time.Hour); !m.clock.Now().Equal(want) {
		t.Fatalf("clock = %v, want %v", m.clock.Now(), want)
	}
	if m.clock.Ticks() != m.engine.Tick() {
		t.Fatalf("clock ticks = %d, engine ticks = %d", m.clock.Ticks(), m.engine.Tick())
	}
}

func TestPauseAndSingleStep(t *testing.T) {
	m := newTestModel(t, context.Background())

	next, _ := m.Update(key(" "))
	m = next.(Model)
	if !m.paused {
		t.Fatalf("space should pause")
	}
	next, _ = m.Update(tickMsg(time.Now()))
	m = next.(Model)
	if m.engine.Tick() != 0 {
		t.Fatalf("paused model advanced to tick %d", m.engine.Tick())
	}
	next, _ = m.Update(key("n"))
	m = next.(Model)
	if m.engine.Tick() != 1 {
		t.Fatalf("n should single-step while paused, tick = %d", m.engine.Tick())
	}
	if !strings.Contains(m.View(), "paused") {
		t.Fatalf("view should show the paused state")
	}
}

func TestQuitKeys(t *testing.T) {
	m := newTestModel(t, context.Background())
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatalf("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("q should quit")
	}
}

func TestCancelledContextQuits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := newTestModel(t, ctx)
	cancel()

	_, cmd := m.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("cancelled context should quit")
	}
}

func TestViewShowsBodiesAndDistances(t *testing.T) {
	m := newTestModel(t, context.Background())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	m = next.(Model)
	next, _ = m.Update(tickMsg(time.Now()))
	m = next.(Model)

	view := m.View()
	for _, want := range []string{"tick 1", "day 1", "JD 2451546.0", "Earth", "Moon", "149600000.0km"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
	if lines := strings.Count(view, "\n"); lines > 30 {
		t.Fatalf("view has %d lines, taller than the terminal", lines)
	}
}
