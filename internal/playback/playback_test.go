package playback

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"pulse/internal/anim"
	"pulse/internal/sequencer"
)

type fakeEngine struct {
	mu      sync.Mutex
	errs    []error // returned by successive Start calls
	calls   int
	started bool
}

func (e *fakeEngine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if len(e.errs) > 0 {
		err := e.errs[0]
		e.errs = e.errs[1:]
		if err != nil {
			return err
		}
	}
	e.started = true
	return nil
}

func (e *fakeEngine) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

func (e *fakeEngine) Now() float64 { return 1.5 }

type fakeSeq struct {
	mu      sync.Mutex
	playing bool
	starts  int
	clock   sequencer.Clock
}

func (s *fakeSeq) SetPlaying(v bool) {
	s.mu.Lock()
	s.playing = v
	s.mu.Unlock()
}

func (s *fakeSeq) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *fakeSeq) Start(c sequencer.Clock) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	s.clock = c
	return true
}

type fakeCue struct {
	starts, stops int
}

func (c *fakeCue) Start(context.Context) { c.starts++ }
func (c *fakeCue) Stop()                 { c.stops++ }

type fakePub struct {
	events []anim.Event
}

func (p *fakePub) Emit(e anim.Event) bool {
	p.events = append(p.events, e)
	return true
}

func newTest(engine *fakeEngine) (*Playback, *fakeSeq, *fakeCue, *fakePub) {
	seq := &fakeSeq{}
	cue := &fakeCue{}
	pub := &fakePub{}
	p := New(engine, seq, cue, pub, log.New(io.Discard, "", 0))
	return p, seq, cue, pub
}

func TestToggleStartsEverything(t *testing.T) {
	engine := &fakeEngine{}
	p, seq, cue, pub := newTest(engine)

	p.Toggle(context.Background())
	p.Wait()

	if !seq.Playing() || seq.starts != 1 {
		t.Errorf("sequencer playing=%v starts=%d, want true/1", seq.Playing(), seq.starts)
	}
	if seq.clock == nil || seq.clock.Now() != 1.5 {
		t.Error("sequencer not started on the engine clock")
	}
	if cue.starts != 1 {
		t.Errorf("cue starts = %d, want 1", cue.starts)
	}
	if len(pub.events) != 1 || pub.events[0].Type != anim.EventAudioStarted {
		t.Fatalf("events = %v, want one audio-started", pub.events)
	}
	if pub.events[0].Wall.IsZero() {
		t.Error("audio-started event has no wall time")
	}
}

func TestToggleStopsWhenPlaying(t *testing.T) {
	p, seq, cue, _ := newTest(&fakeEngine{})
	p.Toggle(context.Background())
	p.Wait()

	p.Toggle(context.Background())
	if seq.Playing() {
		t.Error("sequencer still playing after second toggle")
	}
	if cue.stops != 1 {
		t.Errorf("cue stops = %d, want 1", cue.stops)
	}
}

func TestFailedStartRetriesOnNextInteraction(t *testing.T) {
	engine := &fakeEngine{errs: []error{errors.New("device busy")}}
	p, seq, cue, pub := newTest(engine)

	p.Toggle(context.Background())
	p.Wait()
	if seq.Playing() || cue.starts != 0 || len(pub.events) != 0 {
		t.Fatalf("failed start had effects: playing=%v cue=%d events=%d", seq.Playing(), cue.starts, len(pub.events))
	}
	if p.Starting() {
		t.Fatal("Starting() = true after failed start")
	}

	p.Toggle(context.Background())
	p.Wait()
	if engine.calls != 2 {
		t.Errorf("engine Start calls = %d, want 2", engine.calls)
	}
	if !seq.Playing() {
		t.Error("retry did not start the sequencer")
	}
}

func TestAudioStartedAnnouncedOnce(t *testing.T) {
	p, _, _, pub := newTest(&fakeEngine{})
	for i := 0; i < 3; i++ {
		p.Toggle(context.Background()) // start
		p.Wait()
		p.Toggle(context.Background()) // stop
	}
	n := 0
	for _, e := range pub.events {
		if e.Type == anim.EventAudioStarted {
			n++
		}
	}
	if n != 1 {
		t.Errorf("audio-started events = %d, want 1", n)
	}
}

func TestNilCue(t *testing.T) {
	seq := &fakeSeq{}
	p := New(&fakeEngine{}, seq, nil, &fakePub{}, log.New(io.Discard, "", 0))
	p.Toggle(context.Background())
	p.Wait()
	p.Toggle(context.Background())
	if seq.Playing() {
		t.Error("sequencer still playing")
	}
}
