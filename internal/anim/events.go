package anim

import (
	"math"
	"sync/atomic"
	"time"
)

type EventType int

const (
	EventAudioStarted  EventType = iota
	EventLoopStarted             // sequencer armed a new loop
	EventLoopStopped             // playback stopped, pending pulses dropped
	EventBeatPulse               // kick/snare intensity due at Event.At
	EventSpeechStart             // utterance began
	EventSpeechEnd               // utterance finished
	EventSpeechStopped           // speech cue cancelled
)

func (t EventType) String() string {
	switch t {
	case EventAudioStarted:
		return "audio-started"
	case EventLoopStarted:
		return "loop-started"
	case EventLoopStopped:
		return "loop-stopped"
	case EventBeatPulse:
		return "beat-pulse"
	case EventSpeechStart:
		return "speech-start"
	case EventSpeechEnd:
		return "speech-end"
	case EventSpeechStopped:
		return "speech-stopped"
	}
	return "unknown"
}

// LoopInfo describes an armed loop on the audio clock (seconds).
type LoopInfo struct {
	Start         float64
	BeatDuration  float64
	TotalDuration float64
}

// BeatTime returns the phase within the current beat at audio time now.
// The result is always in [0,1); before the loop starts it is 0.
func (l LoopInfo) BeatTime(now float64) float64 {
	if l.BeatDuration <= 0 || l.TotalDuration <= 0 {
		return 0
	}
	elapsed := now - l.Start
	if elapsed < 0 {
		return 0
	}
	inCycle := modPositive(elapsed, l.TotalDuration)
	bt := modPositive(inCycle, l.BeatDuration) / l.BeatDuration
	if bt >= 1 || bt < 0 {
		return 0
	}
	return bt
}

type Event struct {
	Type  EventType
	At    float64   // audio clock seconds (beat pulses)
	Wall  time.Time // wall clock (audio start, speech lifecycle)
	Value float64   // pulse intensity
	Loop  LoopInfo  // EventLoopStarted only
}

type EventHandler func(Event)

// EventBus carries producer events to the render thread.
// Emit is safe from any goroutine; Subscribe and Dispatch belong to the
// render thread.
type EventBus struct {
	ch       chan Event
	handlers map[EventType][]EventHandler
	dropped  atomic.Uint64
}

func NewEventBus(capacity int) *EventBus {
	if capacity <= 0 {
		capacity = 256
	}
	return &EventBus{
		ch:       make(chan Event, capacity),
		handlers: make(map[EventType][]EventHandler),
	}
}

func (eb *EventBus) Subscribe(t EventType, fn EventHandler) {
	eb.handlers[t] = append(eb.handlers[t], fn)
}

// Emit queues e without blocking. It reports false when the queue is full
// and the event was dropped.
func (eb *EventBus) Emit(e Event) bool {
	select {
	case eb.ch <- e:
		return true
	default:
		eb.dropped.Add(1)
		return false
	}
}

// Dispatch delivers the events queued so far, in emit order, and returns
// how many were delivered. Events emitted during dispatch wait for the next call.
func (eb *EventBus) Dispatch() int {
	n := len(eb.ch)
	for i := 0; i < n; i++ {
		e := <-eb.ch
		for _, fn := range eb.handlers[e.Type] {
			fn(e)
		}
	}
	return n
}

// Dropped returns the number of events lost to a full queue.
func (eb *EventBus) Dropped() uint64 { return eb.dropped.Load() }

func modPositive(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	if r >= m {
		r = 0
	}
	return r
}
