package sequencer

import (
	"errors"
	"io"
	"log"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"pulse/internal/anim"
)

type fakeClock struct {
	mu  sync.Mutex
	now float64
}

func (c *fakeClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(v float64) {
	c.mu.Lock()
	c.now = v
	c.mu.Unlock()
}

type synthCall struct {
	kind string
	at   float64
	hz   float64
}

type fakeSynth struct {
	mu       sync.Mutex
	calls    []synthCall
	canceled int
}

func (f *fakeSynth) add(c synthCall) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeSynth) Kick(at float64)             { f.add(synthCall{kind: "kick", at: at}) }
func (f *fakeSynth) Snare(at float64)            { f.add(synthCall{kind: "snare", at: at}) }
func (f *fakeSynth) Hihat(at float64)            { f.add(synthCall{kind: "hihat", at: at}) }
func (f *fakeSynth) Bass(at, hz, length float64) { f.add(synthCall{kind: "bass", at: at, hz: hz}) }
func (f *fakeSynth) CancelPending() {
	f.mu.Lock()
	f.canceled++
	f.mu.Unlock()
}

func (f *fakeSynth) times(kind string) []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []float64
	for _, c := range f.calls {
		if c.kind == kind {
			out = append(out, c.at)
		}
	}
	return out
}

type fakePub struct {
	mu     sync.Mutex
	events []anim.Event
}

func (p *fakePub) Emit(e anim.Event) bool {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	return true
}

func (p *fakePub) ofType(t anim.EventType) []anim.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []anim.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type timerReq struct {
	d time.Duration
	c chan time.Time
}

type fakeTimers struct {
	reqs chan timerReq
}

func newFakeTimers() *fakeTimers { return &fakeTimers{reqs: make(chan timerReq, 8)} }

func (f *fakeTimers) NewTimer(d time.Duration) (<-chan time.Time, func() bool) {
	c := make(chan time.Time, 1)
	f.reqs <- timerReq{d: d, c: c}
	return c, func() bool { return true }
}

func (f *fakeTimers) next(t *testing.T) timerReq {
	t.Helper()
	select {
	case r := <-f.reqs:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for re-arm timer")
	}
	return timerReq{}
}

func newTestSequencer(t *testing.T, bpm float64) (*Sequencer, *fakeSynth, *fakePub, *fakeTimers) {
	t.Helper()
	synth := &fakeSynth{}
	pub := &fakePub{}
	timers := newFakeTimers()
	s, err := New(bpm, synth, pub, WithTimers(timers), WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, synth, pub, timers
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// --- Pattern / Loop ---

func TestDefaultPatternValid(t *testing.T) {
	p := DefaultPattern()
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for i, ev := range p {
		if want := float64(i) * StepBeats; ev.OffsetBeats != want {
			t.Errorf("step %d offset = %v, want %v", i, ev.OffsetBeats, want)
		}
	}
	if BeatsPerLoop != 8 {
		t.Errorf("BeatsPerLoop = %v, want 8", BeatsPerLoop)
	}
}

func TestDefaultPatternIsCopy(t *testing.T) {
	p := DefaultPattern()
	p[0].Kick = false
	if !DefaultPattern()[0].Kick {
		t.Error("mutating a returned pattern changed the default")
	}
}

func TestValidateRejectsOffGrid(t *testing.T) {
	p := DefaultPattern()
	p[3].OffsetBeats = 1.3
	if err := p.Validate(); err == nil {
		t.Error("Validate accepted off-grid offset")
	}
	p = DefaultPattern()
	p[15].OffsetBeats = 8
	if err := p.Validate(); err == nil {
		t.Error("Validate accepted offset outside the loop")
	}
}

func TestLoopDurations90BPM(t *testing.T) {
	l, err := NewLoop(90, 0)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	if math.Abs(l.BeatDuration-0.6667) > 1e-4 {
		t.Errorf("BeatDuration = %v, want ~0.6667", l.BeatDuration)
	}
	if math.Abs(l.TotalDuration-5.333) > 1e-3 {
		t.Errorf("TotalDuration = %v, want ~5.333", l.TotalDuration)
	}
	wantMs := l.TotalDuration*1000 - 50
	gotMs := float64(l.RearmDelay()) / float64(time.Millisecond)
	if math.Abs(gotMs-wantMs) > 1e-3 {
		t.Errorf("RearmDelay = %vms, want %vms", gotMs, wantMs)
	}
}

func TestNewLoopRejectsBadBPM(t *testing.T) {
	for _, bpm := range []float64{0, -90, math.NaN(), math.Inf(1), math.Inf(-1), 9600, 20000, 1e9} {
		if _, err := NewLoop(bpm, 0); !errors.Is(err, ErrInvalidBPM) {
			t.Errorf("NewLoop(%v) error = %v, want ErrInvalidBPM", bpm, err)
		}
		if _, err := New(bpm, &fakeSynth{}, &fakePub{}); err == nil {
			t.Errorf("New(%v) returned no error", bpm)
		}
	}
	// Fastest accepted tempo still leaves a positive re-arm delay.
	l, err := NewLoop(9000, 0)
	if err != nil {
		t.Fatalf("NewLoop(9000): %v", err)
	}
	if l.RearmDelay() <= 0 {
		t.Errorf("RearmDelay at 9000 BPM = %v, want > 0", l.RearmDelay())
	}
}

// --- Scheduling ---

func TestStartRequiresPlaying(t *testing.T) {
	s, synth, pub, _ := newTestSequencer(t, 90)
	if s.Start(&fakeClock{}) {
		t.Fatal("Start returned true while not playing")
	}
	if len(synth.calls) != 0 || len(pub.events) != 0 {
		t.Error("Start scheduled work while not playing")
	}
}

func TestPulsesAtKickAndSnareOffsets(t *testing.T) {
	s, synth, pub, timers := newTestSequencer(t, 90)
	clock := &fakeClock{now: 10}
	s.SetPlaying(true)
	if !s.Start(clock) {
		t.Fatal("Start returned false")
	}
	defer s.Stop()
	timers.next(t)

	loop, ok := s.Loop()
	if !ok {
		t.Fatal("no loop armed")
	}
	if !near(loop.Start, 10+Lookahead) {
		t.Errorf("loop start = %v, want %v", loop.Start, 10+Lookahead)
	}

	var want []float64
	for _, b := range []float64{0, 1, 2, 3, 4, 5, 6, 7} {
		want = append(want, loop.Start+b*loop.BeatDuration)
	}
	pulses := pub.ofType(anim.EventBeatPulse)
	if len(pulses) != len(want) {
		t.Fatalf("got %d pulses, want %d", len(pulses), len(want))
	}
	got := make([]float64, len(pulses))
	for i, p := range pulses {
		got[i] = p.At
		beat := math.Round((p.At - loop.Start) / loop.BeatDuration)
		wantValue := anim.KickPulse
		if beat == 2 || beat == 6 {
			wantValue = anim.SnarePulse
		}
		if p.Value != wantValue {
			t.Errorf("pulse at beat %v = %v, want %v", beat, p.Value, wantValue)
		}
	}
	sort.Float64s(got)
	for i := range want {
		if !near(got[i], want[i]) {
			t.Errorf("pulse %d at %v, want %v", i, got[i], want[i])
		}
	}

	if n := len(synth.times("kick")); n != 6 {
		t.Errorf("kicks = %d, want 6", n)
	}
	if n := len(synth.times("snare")); n != 2 {
		t.Errorf("snares = %d, want 2", n)
	}
	if n := len(synth.times("hihat")); n != 16 {
		t.Errorf("hihats = %d, want 16", n)
	}
	if started := pub.ofType(anim.EventLoopStarted); len(started) != 1 || !near(started[0].Loop.Start, loop.Start) {
		t.Errorf("loop-started events = %+v", started)
	}
}

// One armed cycle driven through a real bus into the animation state at
// frame cadence: beatPhase lands on 1.0/0.7 at the kick and snare times and
// decays by BeatDecay on every other frame.
func TestBeatPhaseAcrossOneCycle(t *testing.T) {
	bus := anim.NewEventBus(64)
	state := anim.NewState()
	state.Attach(bus)
	timers := newFakeTimers()
	s, err := New(90, &fakeSynth{}, bus, WithTimers(timers), WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	clock := &fakeClock{now: 10}
	s.SetPlaying(true)
	if !s.Start(clock) {
		t.Fatal("Start returned false")
	}
	defer s.Stop()
	timers.next(t)
	bus.Dispatch()

	loop, _ := s.Loop()
	want := map[float64]float64{}
	for _, ev := range DefaultPattern() {
		if p := ev.Pulse(); p > 0 {
			want[loop.EventTime(0, ev)] = p
		}
	}
	if len(want) != 8 {
		t.Fatalf("pulse timestamps = %d, want 8", len(want))
	}

	var ticks []float64
	for at := range want {
		ticks = append(ticks, at)
	}
	const frame = 1.0 / 60
	for k := 0; ; k++ {
		now := loop.Start + float64(k)*frame
		if now >= loop.CycleStart(1) {
			break
		}
		onPulse := false
		for at := range want {
			if near(now, at) {
				onPulse = true
			}
		}
		if !onPulse {
			ticks = append(ticks, now)
		}
	}
	sort.Float64s(ticks)

	wall := time.Unix(1000, 0)
	expect, hits := 0.0, 0
	for i, now := range ticks {
		state.Tick(wall.Add(time.Duration(i)*16*time.Millisecond), now)
		if v, ok := want[now]; ok {
			expect = v
			hits++
		} else {
			expect *= anim.BeatDecay
		}
		if !near(state.BeatPhase, expect) {
			t.Fatalf("tick at %v: BeatPhase = %v, want %v", now, state.BeatPhase, expect)
		}
		if bt := state.BeatTime; bt < 0 || bt >= 1 {
			t.Fatalf("tick at %v: BeatTime = %v, want [0,1)", now, bt)
		}
	}
	if hits != 8 {
		t.Errorf("pulse frames = %d, want 8", hits)
	}
	if state.PendingPulses() != 0 {
		t.Errorf("pending pulses after the cycle = %d, want 0", state.PendingPulses())
	}
}

func TestRearmTimingAndGaplessCycles(t *testing.T) {
	s, synth, _, timers := newTestSequencer(t, 90)
	clock := &fakeClock{now: 0}
	s.SetPlaying(true)
	s.Start(clock)
	defer s.Stop()

	loop, _ := s.Loop()
	first := timers.next(t)
	// The timer is requested at clock 0, Lookahead before cycle 0 starts.
	wantDelay := loop.RearmDelay() + seconds(Lookahead)
	if diff := first.d - wantDelay; diff < -time.Microsecond || diff > time.Microsecond {
		t.Errorf("first re-arm delay = %v, want %v", first.d, wantDelay)
	}

	// Fire exactly when the margin before cycle 1 is reached.
	clock.Set(loop.RearmAt(1))
	first.c <- time.Now()
	second := timers.next(t)
	// Requested RearmMargin before cycle 1 starts, so it lands RearmDelay after it.
	if diff := second.d - seconds(loop.TotalDuration); diff < -time.Microsecond || diff > time.Microsecond {
		t.Errorf("second re-arm delay = %v, want %v", second.d, seconds(loop.TotalDuration))
	}
	fireAfterStart := seconds(loop.RearmAt(2) - loop.CycleStart(1))
	if diff := fireAfterStart - loop.RearmDelay(); diff < -time.Microsecond || diff > time.Microsecond {
		t.Errorf("cycle 2 re-arm fires %v after cycle 1 start, want %v", fireAfterStart, loop.RearmDelay())
	}

	kicks := synth.times("kick")
	if len(kicks) != 12 {
		t.Fatalf("kicks after re-arm = %d, want 12", len(kicks))
	}
	if !near(kicks[6], loop.CycleStart(1)) {
		t.Errorf("cycle 1 first kick at %v, want %v (no gap)", kicks[6], loop.CycleStart(1))
	}
	if !near(loop.CycleStart(1)-loop.CycleStart(0), loop.TotalDuration) {
		t.Error("cycles are not back to back")
	}
}

func TestStartIsGuardedByCycleToken(t *testing.T) {
	s, synth, _, timers := newTestSequencer(t, 120)
	clock := &fakeClock{}
	s.SetPlaying(true)
	if !s.Start(clock) {
		t.Fatal("first Start returned false")
	}
	timers.next(t)
	if s.Start(clock) {
		t.Error("second Start returned true while a loop is armed")
	}
	if n := len(synth.times("kick")); n != 6 {
		t.Errorf("kicks = %d, want 6 (no double scheduling)", n)
	}
	s.Stop()
}

func TestStopCancelsRearmAndAllowsRestart(t *testing.T) {
	s, synth, pub, timers := newTestSequencer(t, 90)
	clock := &fakeClock{}
	s.SetPlaying(true)
	s.Start(clock)
	pending := timers.next(t)

	s.SetPlaying(false)
	if s.Playing() {
		t.Error("Playing() = true after SetPlaying(false)")
	}
	if synth.canceled != 1 {
		t.Errorf("CancelPending calls = %d, want 1", synth.canceled)
	}
	if n := len(pub.ofType(anim.EventLoopStopped)); n != 1 {
		t.Errorf("loop-stopped events = %d, want 1", n)
	}

	// A late fire of the old timer must not schedule anything.
	pending.c <- time.Now()
	if n := len(synth.times("kick")); n != 6 {
		t.Errorf("kicks = %d after stop, want 6", n)
	}
	if s.Start(clock) {
		t.Error("Start returned true while not playing")
	}

	s.SetPlaying(true)
	if !s.Start(clock) {
		t.Error("Start after replay returned false")
	}
	timers.next(t)
	s.Stop()
}

func TestBassNotesScheduled(t *testing.T) {
	s, synth, _, timers := newTestSequencer(t, 90)
	s.SetPlaying(true)
	s.Start(&fakeClock{})
	timers.next(t)
	s.Stop()

	var hz []float64
	for _, c := range synth.calls {
		if c.kind == "bass" {
			hz = append(hz, c.hz)
		}
	}
	want := []float64{noteA1, noteA1, noteC2, noteG1, noteG1, noteD2}
	if len(hz) != len(want) {
		t.Fatalf("bass notes = %v, want %v", hz, want)
	}
	for i := range want {
		if hz[i] != want[i] {
			t.Errorf("bass[%d] = %v, want %v", i, hz[i], want[i])
		}
	}
}
