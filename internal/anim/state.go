package anim

import (
	"math"
	"time"
)

const (
	KickPulse      = 1.0
	SnarePulse     = 0.7
	BeatDecay      = 0.92 // per frame
	SpeechDecay    = 0.95 // per frame
	SpeechBase     = 0.7
	SpeechSwing    = 0.3
	SpeechPeriodMs = 100.0
	TransitionRamp = 3000 * time.Millisecond
)

// State is the shared animation record. It lives on the render thread:
// producers never write it directly, they emit events that Attach routes to
// the owning update rule.
//
// Field owners:
//
//	BeatTime                       frame poll, from the armed loop and the audio clock
//	BeatPhase                      EventBeatPulse (set) + frame poll (decay)
//	SpeechPhase                    EventSpeechStart/EventSpeechStopped (set) + frame poll (pulse/decay)
//	AudioStarted, AudioStartTime   EventAudioStarted, first one only
//	TransitionProgress             frame poll, from AudioStartTime
//	IsSpeaking, SpeechStartTime    EventSpeechStart/EventSpeechEnd/EventSpeechStopped
type State struct {
	BeatTime           float64
	BeatPhase          float64
	SpeechPhase        float64
	AudioStarted       bool
	AudioStartTime     time.Time
	TransitionProgress float64
	IsSpeaking         bool
	SpeechStartTime    time.Time

	loop        *LoopInfo
	pulses      []pulse
	speechFresh bool
}

type pulse struct {
	at    float64
	value float64
}

// Snapshot is a copy of the fields consumed by the renderer.
type Snapshot struct {
	BeatTime           float64
	BeatPhase          float64
	SpeechPhase        float64
	AudioStarted       bool
	TransitionProgress float64
	IsSpeaking         bool
}

func NewState() *State {
	return &State{}
}

// Attach subscribes the state's update rules to bus.
func (s *State) Attach(bus *EventBus) {
	bus.Subscribe(EventAudioStarted, s.onAudioStarted)
	bus.Subscribe(EventLoopStarted, s.onLoopStarted)
	bus.Subscribe(EventLoopStopped, s.onLoopStopped)
	bus.Subscribe(EventBeatPulse, s.onBeatPulse)
	bus.Subscribe(EventSpeechStart, s.onSpeechStart)
	bus.Subscribe(EventSpeechEnd, s.onSpeechEnd)
	bus.Subscribe(EventSpeechStopped, s.onSpeechStopped)
}

func (s *State) onAudioStarted(e Event) {
	if s.AudioStarted {
		return
	}
	s.AudioStarted = true
	s.AudioStartTime = e.Wall
}

func (s *State) onLoopStarted(e Event) {
	l := e.Loop
	s.loop = &l
}

func (s *State) onLoopStopped(Event) {
	s.loop = nil
	s.pulses = s.pulses[:0]
}

func (s *State) onBeatPulse(e Event) {
	if e.Value <= 0 {
		return
	}
	s.pulses = append(s.pulses, pulse{at: e.At, value: e.Value})
}

func (s *State) onSpeechStart(e Event) {
	s.IsSpeaking = true
	s.SpeechStartTime = e.Wall
	s.speechFresh = true
}

// onSpeechEnd leaves a pending start pulse in place, so an utterance that
// starts and ends within one frame still flashes before decaying.
func (s *State) onSpeechEnd(Event) {
	s.IsSpeaking = false
}

func (s *State) onSpeechStopped(Event) {
	s.IsSpeaking = false
	s.speechFresh = false
	s.SpeechPhase = 0
}

// LoopActive reports whether beatTime is being driven by an armed loop.
func (s *State) LoopActive() bool { return s.loop != nil }

// PendingPulses returns the number of beat pulses not yet due.
func (s *State) PendingPulses() int { return len(s.pulses) }

// Tick applies the per-frame update rules. wall is the frame's wall-clock
// time and audioNow the audio clock in seconds.
func (s *State) Tick(wall time.Time, audioNow float64) {
	if s.loop != nil {
		s.BeatTime = s.loop.BeatTime(audioNow)
	}

	if v, ok := s.takeDuePulses(audioNow); ok {
		s.BeatPhase = v
	} else {
		s.BeatPhase *= BeatDecay
	}

	switch {
	case s.speechFresh:
		s.SpeechPhase = 1.0
		s.speechFresh = false
	case s.IsSpeaking:
		ms := float64(wall.Sub(s.SpeechStartTime)) / float64(time.Millisecond)
		s.SpeechPhase = SpeechBase + SpeechSwing*math.Sin(ms/SpeechPeriodMs)
	default:
		s.SpeechPhase *= SpeechDecay
	}

	if s.AudioStarted {
		p := TransitionAt(wall.Sub(s.AudioStartTime))
		if p > s.TransitionProgress {
			s.TransitionProgress = p
		}
	}
}

// takeDuePulses removes every pulse due at or before now and returns the
// strongest one.
func (s *State) takeDuePulses(now float64) (float64, bool) {
	best, found := 0.0, false
	kept := s.pulses[:0]
	for _, p := range s.pulses {
		if p.at <= now {
			if !found || p.value > best {
				best = p.value
			}
			found = true
			continue
		}
		kept = append(kept, p)
	}
	s.pulses = kept
	return best, found
}

func (s *State) Snapshot() Snapshot {
	return Snapshot{
		BeatTime:           s.BeatTime,
		BeatPhase:          s.BeatPhase,
		SpeechPhase:        s.SpeechPhase,
		AudioStarted:       s.AudioStarted,
		TransitionProgress: s.TransitionProgress,
		IsSpeaking:         s.IsSpeaking,
	}
}

// TransitionAt is the eased cubic ramp 1-(1-p)^3 with p = elapsed/TransitionRamp.
// It reaches exactly 1.0 at TransitionRamp and stays strictly below it before.
func TransitionAt(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	if elapsed >= TransitionRamp {
		return 1
	}
	p := float64(elapsed) / float64(TransitionRamp)
	inv := 1 - p
	v := 1 - inv*inv*inv
	if v >= 1 {
		v = math.Nextafter(1, 0)
	}
	if v < 0 {
		v = 0
	}
	return v
}
