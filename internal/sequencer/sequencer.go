package sequencer

import (
	"log"
	"sync"
	"time"

	"pulse/internal/anim"
)

// Clock reports the audio clock in seconds.
type Clock interface {
	Now() float64
}

// Synth renders scheduled voices. Times are audio clock seconds.
type Synth interface {
	Kick(at float64)
	Snare(at float64)
	Hihat(at float64)
	Bass(at, hz, length float64)
	CancelPending()
}

type Publisher interface {
	Emit(anim.Event) bool
}

// Timers creates one-shot wall-clock timers.
type Timers interface {
	NewTimer(d time.Duration) (<-chan time.Time, func() bool)
}

type realTimers struct{}

func (realTimers) NewTimer(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

type Option func(*Sequencer)

func WithTimers(t Timers) Option { return func(s *Sequencer) { s.timers = t } }

func WithPattern(p BeatPattern) Option { return func(s *Sequencer) { s.pattern = p } }

func WithLogger(l *log.Logger) Option { return func(s *Sequencer) { s.logger = l } }

// Sequencer schedules the beat pattern against an audio clock, one cycle at
// a time, re-arming each next cycle RearmMargin before the current one ends.
type Sequencer struct {
	bpm     float64
	pattern BeatPattern
	synth   Synth
	pub     Publisher
	timers  Timers
	logger  *log.Logger

	mu      sync.Mutex
	playing bool
	task    *cycleTask // in-flight cycle token
	loop    Loop
}

// cycleTask is the cancellable re-arm task of one loop.
type cycleTask struct {
	cancel chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (t *cycleTask) stop() {
	t.once.Do(func() { close(t.cancel) })
}

func New(bpm float64, synth Synth, pub Publisher, opts ...Option) (*Sequencer, error) {
	if _, err := NewLoop(bpm, 0); err != nil {
		return nil, err
	}
	s := &Sequencer{
		bpm:     bpm,
		pattern: DefaultPattern(),
		synth:   synth,
		pub:     pub,
		timers:  realTimers{},
		logger:  log.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.pattern.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// SetPlaying sets the playing flag. Clearing it stops the loop.
func (s *Sequencer) SetPlaying(playing bool) {
	if !playing {
		s.Stop()
		return
	}
	s.mu.Lock()
	s.playing = true
	s.mu.Unlock()
}

func (s *Sequencer) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Loop returns the armed loop, if any.
func (s *Sequencer) Loop() (Loop, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop, s.task != nil
}

// Start arms a new loop on clock and schedules its first cycle. It is a
// no-op unless playing, and while a loop is already armed.
func (s *Sequencer) Start(clock Clock) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing || s.task != nil {
		return false
	}
	loop, err := NewLoop(s.bpm, clock.Now()+Lookahead)
	if err != nil {
		s.logger.Printf("[seq] start: %v", err)
		return false
	}
	t := &cycleTask{cancel: make(chan struct{}), done: make(chan struct{})}
	s.loop = loop
	s.task = t

	s.emit(anim.Event{Type: anim.EventLoopStarted, Loop: loop.Info()})
	s.scheduleCycle(loop, 0)
	go s.rearm(t, loop, clock)
	return true
}

// Stop clears the playing flag, cancels the re-arm task and drops voices
// that have not started sounding yet.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	s.playing = false
	t := s.task
	s.task = nil
	s.mu.Unlock()

	if t == nil {
		return
	}
	t.stop()
	<-t.done
	s.synth.CancelPending()
	s.emit(anim.Event{Type: anim.EventLoopStopped})
}

func (s *Sequencer) rearm(t *cycleTask, loop Loop, clock Clock) {
	defer close(t.done)
	for cycle := 1; ; cycle++ {
		delay := seconds(loop.RearmAt(cycle) - clock.Now())
		if delay < 0 {
			delay = 0
		}
		c, stopTimer := s.timers.NewTimer(delay)
		select {
		case <-t.cancel:
			stopTimer()
			return
		case <-c:
		}

		s.mu.Lock()
		if !s.playing || s.task != t {
			s.mu.Unlock()
			return
		}
		s.scheduleCycle(loop, cycle)
		s.mu.Unlock()
	}
}

// scheduleCycle hands every event of cycle n to the synth and emits the
// matching beat pulses. Caller holds s.mu.
func (s *Sequencer) scheduleCycle(loop Loop, n int) {
	stepLen := loop.StepDuration()
	for _, ev := range s.pattern {
		at := loop.EventTime(n, ev)
		if ev.Kick {
			s.synth.Kick(at)
		}
		if ev.Snare {
			s.synth.Snare(at)
		}
		if ev.Hihat {
			s.synth.Hihat(at)
		}
		if ev.BassHz > 0 {
			s.synth.Bass(at, ev.BassHz, stepLen)
		}
		if p := ev.Pulse(); p > 0 {
			s.emit(anim.Event{Type: anim.EventBeatPulse, At: at, Value: p})
		}
	}
}

func (s *Sequencer) emit(e anim.Event) {
	if !s.pub.Emit(e) {
		s.logger.Printf("[seq] dropped %s event", e.Type)
	}
}
