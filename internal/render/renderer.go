package render

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"pulse/internal/frame"
)

// glOffset converts a byte offset to unsafe.Pointer for OpenGL VBO offset params.
func glOffset(n int) unsafe.Pointer { return unsafe.Pointer(uintptr(n)) }

// Renderer draws one variant over a full-screen quad. A location of -1
// means the variant does not read that uniform.
type Renderer struct {
	variant Variant
	prog    uint32
	vao     uint32
	vbo     uint32

	uResolution         int32
	uTime               int32
	uBeatTime           int32
	uBeatPhase          int32
	uAudioStarted       int32
	uTransitionProgress int32
	uSpeechPhase        int32
	uIsSpeaking         int32
	uCenter             int32
	uZoom               int32
	uMaxIterations      int32
}

// NewRenderer allocates the quad and links the variant's program. On a
// compile or link failure everything allocated so far is released.
func NewRenderer(v Variant) (*Renderer, error) {
	r := &Renderer{variant: v}

	gl.GenVertexArrays(1, &r.vao)
	gl.GenBuffers(1, &r.vbo)
	gl.BindVertexArray(r.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)
	quad := frame.QuadVertices
	gl.BufferData(gl.ARRAY_BUFFER, len(quad)*4, gl.Ptr(&quad[0]), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 2*4, glOffset(0))
	gl.BindVertexArray(0)

	prog, err := linkProgram(quadVertSrc, v.Fragment)
	if err != nil {
		r.release()
		return nil, fmt.Errorf("%s program: %w", v.Name, err)
	}
	r.prog = prog

	gl.UseProgram(prog)
	r.uResolution = r.uniform("u_resolution")
	r.uTime = r.uniform("u_time")
	r.uBeatTime = r.uniform("u_beatTime")
	r.uBeatPhase = r.uniform("u_beatPhase")
	r.uAudioStarted = r.uniform("u_audioStarted")
	r.uTransitionProgress = r.uniform("u_transitionProgress")
	r.uSpeechPhase = r.uniform("u_speechPhase")
	r.uIsSpeaking = r.uniform("u_isSpeaking")
	r.uCenter = r.uniform("u_center")
	r.uZoom = r.uniform("u_zoom")
	r.uMaxIterations = r.uniform("u_maxIterations")

	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE)
	gl.ClearColor(0, 0, 0, 1)
	return r, nil
}

func (r *Renderer) uniform(name string) int32 {
	return gl.GetUniformLocation(r.prog, gl.Str(name+"\x00"))
}

func (r *Renderer) Variant() Variant { return r.variant }

// Resize updates the viewport; call it only when the framebuffer size changed.
func (r *Renderer) Resize(w, h int) {
	gl.Viewport(0, 0, int32(w), int32(h))
}

// Draw uploads u and issues the single quad draw call.
func (r *Renderer) Draw(u frame.Uniforms) {
	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.UseProgram(r.prog)
	gl.BindVertexArray(r.vao)

	set2 := func(loc int32, v [2]float32) {
		if loc != -1 {
			gl.Uniform2f(loc, v[0], v[1])
		}
	}
	set1 := func(loc int32, v float32) {
		if loc != -1 {
			gl.Uniform1f(loc, v)
		}
	}
	setI := func(loc int32, v int32) {
		if loc != -1 {
			gl.Uniform1i(loc, v)
		}
	}

	set2(r.uResolution, u.Resolution)
	set1(r.uTime, u.Time)
	set1(r.uBeatTime, u.BeatTime)
	set1(r.uBeatPhase, u.BeatPhase)
	setI(r.uAudioStarted, boolToInt(u.AudioStarted))
	set1(r.uTransitionProgress, u.TransitionProgress)
	set1(r.uSpeechPhase, u.SpeechPhase)
	setI(r.uIsSpeaking, boolToInt(u.IsSpeaking))
	set2(r.uCenter, u.Center)
	set1(r.uZoom, u.Zoom)
	setI(r.uMaxIterations, u.MaxIterations)

	gl.DrawArrays(gl.TRIANGLES, 0, frame.QuadVertexCount)
	gl.BindVertexArray(0)
}

func (r *Renderer) Destroy() {
	r.release()
}

// release frees program, VAO and VBO together.
func (r *Renderer) release() {
	if r.vbo != 0 {
		gl.DeleteBuffers(1, &r.vbo)
		r.vbo = 0
	}
	if r.vao != 0 {
		gl.DeleteVertexArrays(1, &r.vao)
		r.vao = 0
	}
	if r.prog != 0 {
		gl.DeleteProgram(r.prog)
		r.prog = 0
	}
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
