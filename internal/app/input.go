package app

import (
	"github.com/go-gl/glfw/v3.3/glfw"
)

// IterationStep is the maxIterations change per bracket key press.
const IterationStep = 10

type Input struct {
	prevMouse map[glfw.MouseButton]bool
	prevKeys  map[glfw.Key]bool
}

func NewInput() *Input {
	return &Input{
		prevMouse: make(map[glfw.MouseButton]bool),
		prevKeys:  make(map[glfw.Key]bool),
	}
}

func (in *Input) JustPressed(window *glfw.Window, key glfw.Key) bool {
	down := window.GetKey(key) == glfw.Press
	jp := down && !in.prevKeys[key]
	in.prevKeys[key] = down
	return jp
}

func (in *Input) JustClicked(window *glfw.Window, btn glfw.MouseButton) bool {
	down := window.GetMouseButton(btn) == glfw.Press
	jp := down && !in.prevMouse[btn]
	in.prevMouse[btn] = down
	return jp
}

// Actions is one frame of routed input.
type Actions struct {
	Toggle bool // play/stop
	Reset  bool
	Quit   bool

	PanX, PanY float64 // -1, 0 or 1 while held
	Zoom       float64 // -1, 0 or 1 while held
	Iterations int     // maxIterations delta
}

// Poll reads the keys and buttons the visual reacts to.
// Space, Enter or a left click toggle playback; arrows pan; +/- zoom;
// [ and ] change maxIterations; R resets; Escape quits.
func (in *Input) Poll(window *glfw.Window) Actions {
	var a Actions
	// Evaluate every edge detector so none keeps a stale previous state.
	space := in.JustPressed(window, glfw.KeySpace)
	enter := in.JustPressed(window, glfw.KeyEnter)
	click := in.JustClicked(window, glfw.MouseButtonLeft)
	a.Toggle = space || enter || click
	a.Reset = in.JustPressed(window, glfw.KeyR)
	a.Quit = window.GetKey(glfw.KeyEscape) == glfw.Press

	held := func(k glfw.Key) float64 {
		if window.GetKey(k) == glfw.Press {
			return 1
		}
		return 0
	}
	a.PanX = held(glfw.KeyRight) - held(glfw.KeyLeft)
	a.PanY = held(glfw.KeyUp) - held(glfw.KeyDown)
	a.Zoom = held(glfw.KeyEqual) + held(glfw.KeyKPAdd) - held(glfw.KeyMinus) - held(glfw.KeyKPSubtract)
	if a.Zoom > 1 {
		a.Zoom = 1
	} else if a.Zoom < -1 {
		a.Zoom = -1
	}

	if in.JustPressed(window, glfw.KeyRightBracket) {
		a.Iterations += IterationStep
	}
	if in.JustPressed(window, glfw.KeyLeftBracket) {
		a.Iterations -= IterationStep
	}
	return a
}
