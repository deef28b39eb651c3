package core

import (
	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultScale maps one AU to 250 pixels.
const DefaultScale = 250 / AU

// Viewport maps simulation metres onto window pixels: positions are scaled by
// Scale and translated so the origin sits at the window centre.
type Viewport struct {
	Scale  float64 // pixels per metre
	Width  int
	Height int
}

// NewViewport returns a viewport; a zero scale selects DefaultScale.
func NewViewport(width, height int, scale float64) Viewport {
	if scale == 0 {
		scale = DefaultScale
	}
	return Viewport{Scale: scale, Width: width, Height: height}
}

// ToScreen converts a position in metres to screen coordinates.
func (v Viewport) ToScreen(p r2.Vec) r2.Vec {
	return r2.Add(r2.Scale(v.Scale, p), r2.Vec{X: float64(v.Width) / 2, Y: float64(v.Height) / 2})
}

// TrailToScreen converts a whole trail, preserving order.
func (v Viewport) TrailToScreen(points []r2.Vec) []r2.Vec {
	out := make([]r2.Vec, len(points))
	for i, p := range points {
		out[i] = v.ToScreen(p)
	}
	return out
}

// Contains reports whether a screen point falls inside the window.
func (v Viewport) Contains(p r2.Vec) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < float64(v.Width) && p.Y < float64(v.Height)
}
