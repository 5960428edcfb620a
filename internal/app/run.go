package app

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"strings"
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/gopxl/beep"

	"pulse/internal/anim"
	"pulse/internal/audio"
	"pulse/internal/config"
	"pulse/internal/controls"
	"pulse/internal/frame"
	"pulse/internal/playback"
	"pulse/internal/render"
	"pulse/internal/sequencer"
	"pulse/internal/speech"
	"pulse/internal/synth"
)

// RunDesktop opens the window and runs the render loop until it is closed.
func RunDesktop(cfg config.Config) error {
	runtime.LockOSThread()

	variant, err := render.LookupVariant(cfg.Variant)
	if err != nil {
		return err
	}

	window, err := initWindow(cfg)
	if err != nil {
		return err
	}
	defer glfw.Terminate()
	defer window.Destroy()

	if err := gl.Init(); err != nil {
		panic(fmt.Errorf("gl init: %w", err))
	}

	// Producers publish on the bus; only this thread touches the state.
	bus := anim.NewEventBus(0)
	state := anim.NewState()
	state.Attach(bus)

	voices := synth.NewScheduler(beep.SampleRate(audio.SampleRate), uint64(time.Now().UnixNano()))
	engine := audio.NewEngine(voices, cfg.MusicVolume, cfg.AudioReadyTimeout, nil)
	defer engine.Close()

	seq, err := sequencer.New(cfg.BPM, voices, bus)
	if err != nil {
		return fmt.Errorf("sequencer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	player := playback.New(engine, seq, newSpeechCue(cfg, bus), bus, nil)
	defer func() {
		player.Wait()
		player.Stop()
	}()

	rend, err := render.NewRenderer(variant)
	if err != nil {
		err = fmt.Errorf("renderer: %w", err)
		showDiagnostic(window, err)
		return err
	}
	defer rend.Destroy()

	fbW, fbH := window.GetFramebufferSize()
	surface := frame.NewSurface(fbW, fbH)
	rend.Resize(fbW, fbH)

	clock := frame.NewClock(time.Now())
	params := controls.Defaults()
	input := NewInput()

	log.Printf("[render] %s variant at %d BPM, press space to start", variant.Name, int(cfg.BPM))

	last := glfw.GetTime()
	for !window.ShouldClose() {
		now := glfw.GetTime()
		dt := now - last
		last = now
		if dt > 0.1 {
			dt = 0.1
		}

		glfw.PollEvents()
		act := input.Poll(window)
		if act.Quit {
			window.SetShouldClose(true)
			continue
		}
		if act.Toggle {
			player.Toggle(ctx)
		}
		if act.Reset {
			params.Reset()
		}
		if act.PanX != 0 || act.PanY != 0 {
			params.Pan(act.PanX, act.PanY, dt)
		}
		if act.Zoom != 0 {
			params.ZoomBy(act.Zoom, dt)
		}
		if act.Iterations != 0 {
			params.AdjustIterations(act.Iterations)
		}

		bus.Dispatch()
		wall := time.Now()
		state.Tick(wall, engine.Now())

		fbW, fbH := window.GetFramebufferSize()
		if fbW <= 0 || fbH <= 0 {
			continue
		}
		if surface.Observe(fbW, fbH) {
			rend.Resize(fbW, fbH)
		}

		snap := state.Snapshot()
		rend.Draw(frame.Build(surface.Resolution(), clock.Elapsed(wall, snap.AudioStarted), snap, params.View()))
		window.SwapBuffers()
	}
	return nil
}

func newSpeechCue(cfg config.Config, bus *anim.EventBus) playback.Cue {
	if !cfg.SpeechEnabled {
		return nil
	}
	backend, err := speech.DetectBackend()
	if err != nil {
		log.Printf("[speech] %v, continuing without speech", err)
		return nil
	}
	log.Printf("[speech] using %s", backend.Name())
	return speech.NewCue(backend, bus, speech.Config{
		Text:     cfg.SpeechText,
		Locale:   cfg.SpeechLocale,
		Interval: cfg.SpeechInterval,
	})
}

// showDiagnostic reports a fatal render setup error in the title bar and on
// stderr, then only pumps events until the window is closed.
func showDiagnostic(window *glfw.Window, err error) {
	log.Printf("[render] %v", err)
	msg, _, _ := strings.Cut(err.Error(), "\n")
	window.SetTitle(windowTitle + ": " + msg)
	for !window.ShouldClose() {
		glfw.WaitEvents()
		if window.GetKey(glfw.KeyEscape) == glfw.Press {
			window.SetShouldClose(true)
		}
	}
}
