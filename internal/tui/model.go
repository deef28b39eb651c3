// Package tui renders the simulation in a terminal with bubbletea.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/signalsfoundry/gravity-simulator/core"
	"github.com/signalsfoundry/gravity-simulator/internal/logging"
	"github.com/signalsfoundry/gravity-simulator/internal/render"
	"github.com/signalsfoundry/gravity-simulator/timectrl"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	trailRune     = '·'
	// rows reserved for the header and footer
	chromeRows = 3
	// columns reserved for the body legend
	legendWidth = 32
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFAE42"))
	footerStyle = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#BC2732"))
)

type tickMsg time.Time

// Model is the bubbletea model. Each tick message advances the engine one
// step and moves the clock to the new simulated time.
type Model struct {
	ctx      context.Context
	engine   *core.SimulationEngine
	clock    timectrl.SimClock
	interval time.Duration
	log      logging.Logger

	width, height int
	extent        float64 // metres from the origin to the screen edge
	paused        bool
	err           error
}

// New returns a model ticking every interval, logging through the logger
// carried by ctx.
func New(ctx context.Context, engine *core.SimulationEngine, clock timectrl.SimClock, interval time.Duration) Model {
	if interval <= 0 {
		interval = timectrl.DefaultInterval
	}
	m := Model{
		ctx:      ctx,
		engine:   engine,
		clock:    clock,
		interval: interval,
		log:      logging.LoggerFromContext(ctx),
		width:    defaultWidth,
		height:   defaultHeight,
	}
	m.extent = fitExtent(engine.Snapshot())
	return m
}

// fitExtent returns a half-width in metres that keeps every body on screen
// with a margin.
func fitExtent(snap core.Snapshot) float64 {
	var max float64
	for _, b := range snap.Bodies {
		max = math.Max(max, r2.Norm(b.Position))
	}
	if max == 0 {
		return core.AU
	}
	return max * 1.2
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case " ", "p":
			m.paused = !m.paused
		case "n":
			if m.paused && m.err == nil {
				m.advance()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tickMsg:
		if m.ctx.Err() != nil {
			return m, tea.Quit
		}
		if !m.paused && m.err == nil {
			m.advance()
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) advance() {
	if err := m.engine.Step(m.ctx); err != nil {
		m.err = err
		m.log.Error(m.ctx, "simulation stopped", logging.String("error", err.Error()))
		return
	}
	m.clock.Advance()
}

// Err returns the error that stopped the simulation, if any.
func (m Model) Err() error { return m.err }

func (m Model) View() string {
	snap := m.engine.Snapshot()

	var b strings.Builder
	state := "running"
	if m.paused {
		state = "paused"
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("tick %d  %s  JD %.1f  %s",
		snap.Tick, render.SimulatedDays(snap.Elapsed), m.clock.JulianDay(), state)))
	b.WriteByte('\n')

	rows := m.height - chromeRows
	if rows < 1 {
		rows = 1
	}
	cols := m.width
	if cols > legendWidth*2 {
		cols -= legendWidth
	}
	b.WriteString(m.grid(snap, cols, rows))

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
	} else {
		b.WriteString(footerStyle.Render("space pause · n step · q quit"))
	}
	return b.String()
}

// grid draws trails and bodies onto a character grid. Terminal cells are
// about twice as tall as wide, so the horizontal scale is doubled.
func (m Model) grid(snap core.Snapshot, cols, rows int) string {
	half := float64(rows) / 2
	view := core.NewViewport(cols/2, rows, half/m.extent)
	sc := render.Build(snap, view)

	cells := make([][]rune, rows)
	for i := range cells {
		cells[i] = []rune(strings.Repeat(" ", cols))
	}
	plot := func(p r2.Vec, r rune) {
		x, y := int(math.Round(p.X*2)), int(math.Round(p.Y))
		if x >= 0 && x < cols && y >= 0 && y < rows {
			cells[y][x] = r
		}
	}
	for _, tr := range sc.Trails {
		for _, p := range tr.Points {
			plot(p, trailRune)
		}
	}
	legend := make([]string, 0, len(sc.Markers))
	for _, mk := range sc.Markers {
		r := '*'
		if name := []rune(mk.Name); len(name) > 0 {
			r = name[0]
		}
		plot(mk.Center, r)
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(hexColor(mk)))
		entry := style.Render(fmt.Sprintf("%c %s", r, mk.Name))
		if mk.Label != "" {
			entry += " " + mk.Label
		}
		legend = append(legend, entry)
	}

	var b strings.Builder
	for i, row := range cells {
		b.WriteString(string(row))
		if i < len(legend) {
			b.WriteString("  ")
			b.WriteString(legend[i])
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func hexColor(mk render.Marker) string {
	return fmt.Sprintf("#%02X%02X%02X", mk.Color.R, mk.Color.G, mk.Color.B)
}
