// Package frame holds the per-frame render inputs that do not touch the GPU:
// surface size tracking, the render clock and the uniform set.
package frame

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"pulse/internal/anim"
)

// QuadVertices is a clip-space quad covering the whole surface: two
// triangles, six vertices.
var QuadVertices = [12]float32{
	-1, -1, 1, -1, -1, 1,
	-1, 1, 1, -1, 1, 1,
}

const QuadVertexCount = 6

// Surface tracks the drawing surface size between frames.
type Surface struct {
	w, h int
}

func NewSurface(w, h int) *Surface {
	return &Surface{w: w, h: h}
}

// Observe records the current size and reports whether it differs from the
// previous observation.
func (s *Surface) Observe(w, h int) bool {
	if w == s.w && h == s.h {
		return false
	}
	s.w, s.h = w, h
	return true
}

func (s *Surface) Size() (int, int) { return s.w, s.h }

func (s *Surface) Resolution() mgl32.Vec2 {
	return mgl32.Vec2{float32(s.w), float32(s.h)}
}

// Clock measures elapsed time since pipeline init. It reads 0 until the
// audio has started so the idle visual stays still.
type Clock struct {
	start time.Time
}

func NewClock(start time.Time) Clock {
	return Clock{start: start}
}

func (c Clock) Elapsed(now time.Time, audioStarted bool) float32 {
	if !audioStarted {
		return 0
	}
	d := now.Sub(c.start)
	if d < 0 {
		return 0
	}
	return float32(d.Seconds())
}

// View is the parametric input of the fractal variant.
type View struct {
	Center        mgl32.Vec2
	Zoom          float32
	MaxIterations int32
}

// Uniforms is the full uniform set; each shader variant reads a subset.
type Uniforms struct {
	Resolution         mgl32.Vec2
	Time               float32
	BeatTime           float32
	BeatPhase          float32
	AudioStarted       bool
	TransitionProgress float32
	SpeechPhase        float32
	IsSpeaking         bool
	Center             mgl32.Vec2
	Zoom               float32
	MaxIterations      int32
}

func Build(res mgl32.Vec2, elapsed float32, s anim.Snapshot, v View) Uniforms {
	return Uniforms{
		Resolution:         res,
		Time:               elapsed,
		BeatTime:           float32(s.BeatTime),
		BeatPhase:          float32(s.BeatPhase),
		AudioStarted:       s.AudioStarted,
		TransitionProgress: float32(s.TransitionProgress),
		SpeechPhase:        float32(s.SpeechPhase),
		IsSpeaking:         s.IsSpeaking,
		Center:             v.Center,
		Zoom:               v.Zoom,
		MaxIterations:      v.MaxIterations,
	}
}
