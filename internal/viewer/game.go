// Package viewer is the ebiten window front end: it steps the engine once
// per frame and draws trails, bodies and distance labels.
package viewer

import (
	"context"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/basicfont"

	"github.com/signalsfoundry/gravity-simulator/core"
	"github.com/signalsfoundry/gravity-simulator/internal/logging"
	"github.com/signalsfoundry/gravity-simulator/internal/render"
)

var (
	background = color.RGBA{0, 0, 0, 255}
	labelColor = color.RGBA{255, 255, 255, 255}
	hudColor   = color.RGBA{180, 180, 200, 200}
)

// Game implements ebiten.Game on top of a SimulationEngine.
type Game struct {
	ctx    context.Context
	engine *core.SimulationEngine
	view   core.Viewport
	log    logging.Logger

	paused bool
	step   bool
}

// NewGame returns a game drawing engine through view. ctx cancellation ends
// the run loop on the next frame.
func NewGame(ctx context.Context, engine *core.SimulationEngine, view core.Viewport) *Game {
	return &Game{ctx: ctx, engine: engine, view: view, log: logging.LoggerFromContext(ctx)}
}

// Update handles input and advances the simulation by one tick unless
// paused. P toggles pause, N single-steps while paused, Esc quits.
func (g *Game) Update() error {
	if g.ctx.Err() != nil || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		g.paused = !g.paused
		g.log.Info(g.ctx, "pause toggled", logging.Any("paused", g.paused), logging.Int("tick", g.engine.Tick()))
	}
	if g.paused && inpututil.IsKeyJustPressed(ebiten.KeyN) {
		g.step = true
	}
	return g.advance()
}

func (g *Game) advance() error {
	if g.paused && !g.step {
		return nil
	}
	g.step = false
	return g.engine.Step(g.ctx)
}

// Draw renders the latest snapshot.
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(background)
	sc := render.Build(g.engine.Snapshot(), g.view)

	for _, tr := range sc.Trails {
		for i := 1; i < len(tr.Points); i++ {
			a, b := tr.Points[i-1], tr.Points[i]
			vector.StrokeLine(screen, float32(a.X), float32(a.Y), float32(b.X), float32(b.Y), render.TrailWidth, tr.Color, true)
		}
	}

	face := basicfont.Face7x13
	for _, m := range sc.Markers {
		vector.DrawFilledCircle(screen, float32(m.Center.X), float32(m.Center.Y), float32(m.Radius), m.Color, true)
		if m.Label == "" {
			continue
		}
		bounds := text.BoundString(face, m.Label)
		x := int(m.Center.X) - bounds.Dx()/2
		y := int(m.Center.Y) + bounds.Dy()/2
		text.Draw(screen, m.Label, face, x, y, labelColor)
	}

	hud := render.SimulatedDays(sc.Elapsed)
	if g.paused {
		hud += "  [paused: N steps]"
	}
	text.Draw(screen, hud, face, 10, 20, hudColor)
}

// Layout keeps a fixed logical size matching the viewport.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.view.Width, g.view.Height
}

// Paused reports whether ticking is suspended.
func (g *Game) Paused() bool { return g.paused }
