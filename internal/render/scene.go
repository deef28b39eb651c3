// Package render turns engine snapshots into screen-space primitives that a
// window or terminal front end can draw without knowing any physics.
package render

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/signalsfoundry/gravity-simulator/core"
)

// TrailWidth is the stroke width of orbit trails in pixels.
const TrailWidth = 2

// minTrailPoints is the shortest trail worth drawing.
const minTrailPoints = 3

const secondsPerDay = 86400

// Marker is a body drawn as a filled disc, optionally labelled.
type Marker struct {
	ID     string
	Name   string
	Center r2.Vec
	Radius float64
	Color  color.RGBA
	Label  string // empty for the reference body
}

// Trail is an orbit polyline in screen coordinates, oldest point first.
type Trail struct {
	ID     string
	Color  color.RGBA
	Points []r2.Vec
}

// Scene is everything a front end draws for one frame. Trails are drawn
// before markers so bodies sit on top of their own history.
type Scene struct {
	Tick    int
	Elapsed float64 // simulated seconds
	Trails  []Trail
	Markers []Marker
}

// Build projects snap through view.
func Build(snap core.Snapshot, view core.Viewport) Scene {
	sc := Scene{
		Tick:    snap.Tick,
		Elapsed: snap.Elapsed,
		Markers: make([]Marker, 0, len(snap.Bodies)),
	}
	for _, b := range snap.Bodies {
		if len(b.Orbit) >= minTrailPoints {
			sc.Trails = append(sc.Trails, Trail{
				ID:     b.ID,
				Color:  b.Color,
				Points: view.TrailToScreen(b.Orbit),
			})
		}
		m := Marker{
			ID:     b.ID,
			Name:   b.Name,
			Center: view.ToScreen(b.Position),
			Radius: b.Radius,
			Color:  b.Color,
		}
		if !b.IsReference {
			m.Label = DistanceLabel(b.DistanceToReference)
		}
		sc.Markers = append(sc.Markers, m)
	}
	return sc
}

// DistanceLabel formats a distance in metres as kilometres with one decimal.
func DistanceLabel(metres float64) string {
	return fmt.Sprintf("%.1fkm", metres/1000)
}

// SimulatedDays renders elapsed simulated seconds in days.
func SimulatedDays(seconds float64) string {
	return fmt.Sprintf("day %.0f", seconds/secondsPerDay)
}
