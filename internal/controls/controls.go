package controls

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"pulse/internal/frame"
)

const (
	DefaultCenterX       = -0.5
	DefaultCenterY       = 0.0
	DefaultZoom          = 1.0
	DefaultMaxIterations = 100

	MinCenterX       = -2.5
	MaxCenterX       = 1.5
	MinCenterY       = -1.5
	MaxCenterY       = 1.5
	MinZoom          = 0.1
	MaxZoom          = 1e5
	MinMaxIterations = 1
	MaxMaxIterations = 2000

	ZoomRate = 1.4 // e-folds per second while held
	PanRate  = 0.8 // view heights per second while held
)

// Params are the bounded inputs of the parametric visual.
type Params struct {
	CenterX       float64
	CenterY       float64
	Zoom          float64
	MaxIterations int
}

func Defaults() Params {
	return Params{
		CenterX:       DefaultCenterX,
		CenterY:       DefaultCenterY,
		Zoom:          DefaultZoom,
		MaxIterations: DefaultMaxIterations,
	}
}

// Reset restores the defaults regardless of prior state.
func (p *Params) Reset() {
	*p = Defaults()
}

// Pan moves the centre by (dx, dy) view heights over dt seconds; the step
// shrinks as zoom grows so panning feels constant on screen.
func (p *Params) Pan(dx, dy, dt float64) {
	step := PanRate * dt / p.Zoom
	p.CenterX += dx * step
	p.CenterY += dy * step
	p.Clamp()
}

// ZoomBy zooms in (dir > 0) or out (dir < 0) over dt seconds.
func (p *Params) ZoomBy(dir, dt float64) {
	p.Zoom *= math.Exp(dir * ZoomRate * dt)
	p.Clamp()
}

func (p *Params) AdjustIterations(delta int) {
	p.MaxIterations += delta
	p.Clamp()
}

// Set replaces all controls, clamped to their bounds.
func (p *Params) Set(cx, cy, zoom float64, maxIter int) {
	p.CenterX, p.CenterY, p.Zoom, p.MaxIterations = cx, cy, zoom, maxIter
	p.Clamp()
}

func (p *Params) Clamp() {
	if math.IsNaN(p.Zoom) || p.Zoom <= 0 {
		p.Zoom = DefaultZoom
	}
	p.Zoom = clampF(p.Zoom, MinZoom, MaxZoom)
	if math.IsNaN(p.CenterX) {
		p.CenterX = DefaultCenterX
	}
	if math.IsNaN(p.CenterY) {
		p.CenterY = DefaultCenterY
	}
	p.CenterX = clampF(p.CenterX, MinCenterX, MaxCenterX)
	p.CenterY = clampF(p.CenterY, MinCenterY, MaxCenterY)
	if p.MaxIterations < MinMaxIterations {
		p.MaxIterations = MinMaxIterations
	}
	if p.MaxIterations > MaxMaxIterations {
		p.MaxIterations = MaxMaxIterations
	}
}

func (p Params) Center() mgl32.Vec2 {
	return mgl32.Vec2{float32(p.CenterX), float32(p.CenterY)}
}

func (p Params) View() frame.View {
	return frame.View{
		Center:        p.Center(),
		Zoom:          float32(p.Zoom),
		MaxIterations: int32(p.MaxIterations),
	}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
