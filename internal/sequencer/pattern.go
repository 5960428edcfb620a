package sequencer

import (
	"errors"
	"fmt"
	"math"
	"time"

	"pulse/internal/anim"
)

const (
	PatternLen   = 16
	StepBeats    = 0.5 // pattern granularity
	BeatsPerLoop = PatternLen * StepBeats

	RearmMargin = 50 * time.Millisecond
	Lookahead   = 0.1 // seconds between Start and the first scheduled event
)

// Bass notes (Hz).
const (
	noteG1 = 49.00
	noteA1 = 55.00
	noteC2 = 65.41
	noteD2 = 73.42
)

var ErrInvalidBPM = errors.New("bpm must be finite and positive")

// BeatEvent is one step of the pattern. OffsetBeats is in beats from the
// cycle start, a multiple of StepBeats. BassHz of 0 means no bass note.
type BeatEvent struct {
	OffsetBeats float64
	Kick        bool
	Snare       bool
	Hihat       bool
	BassHz      float64
}

// BeatPattern is a fixed two-bar pattern at half-beat granularity.
type BeatPattern [PatternLen]BeatEvent

var defaultPattern = BeatPattern{
	{OffsetBeats: 0.0, Kick: true, Hihat: true, BassHz: noteA1},
	{OffsetBeats: 0.5, Hihat: true},
	{OffsetBeats: 1.0, Kick: true, Hihat: true},
	{OffsetBeats: 1.5, Hihat: true, BassHz: noteA1},
	{OffsetBeats: 2.0, Snare: true, Hihat: true},
	{OffsetBeats: 2.5, Hihat: true},
	{OffsetBeats: 3.0, Kick: true, Hihat: true, BassHz: noteC2},
	{OffsetBeats: 3.5, Hihat: true},
	{OffsetBeats: 4.0, Kick: true, Hihat: true, BassHz: noteG1},
	{OffsetBeats: 4.5, Hihat: true},
	{OffsetBeats: 5.0, Kick: true, Hihat: true},
	{OffsetBeats: 5.5, Hihat: true, BassHz: noteG1},
	{OffsetBeats: 6.0, Snare: true, Hihat: true},
	{OffsetBeats: 6.5, Hihat: true},
	{OffsetBeats: 7.0, Kick: true, Hihat: true, BassHz: noteD2},
	{OffsetBeats: 7.5, Hihat: true},
}

// DefaultPattern returns a copy of the built-in pattern.
func DefaultPattern() BeatPattern { return defaultPattern }

// Pulse returns the beat-phase intensity a step sets, or 0 if it sets none.
func (e BeatEvent) Pulse() float64 {
	switch {
	case e.Kick:
		return anim.KickPulse
	case e.Snare:
		return anim.SnarePulse
	}
	return 0
}

// Validate checks that every offset sits on the step grid inside one loop.
func (p BeatPattern) Validate() error {
	for i, ev := range p {
		if ev.OffsetBeats < 0 || ev.OffsetBeats >= BeatsPerLoop {
			return fmt.Errorf("step %d: offset %v outside [0,%v)", i, ev.OffsetBeats, BeatsPerLoop)
		}
		if steps := ev.OffsetBeats / StepBeats; steps != float64(int(steps)) {
			return fmt.Errorf("step %d: offset %v not a multiple of %v", i, ev.OffsetBeats, StepBeats)
		}
		if ev.BassHz < 0 {
			return fmt.Errorf("step %d: negative bass frequency", i)
		}
	}
	return nil
}

// Loop is one armed playback run on the audio clock (seconds).
type Loop struct {
	BPM           float64
	BeatDuration  float64
	TotalDuration float64
	Start         float64
}

// CheckBPM rejects tempos a loop cannot run at: non-finite or non-positive
// values, and tempos whose loop is not longer than RearmMargin.
func CheckBPM(bpm float64) error {
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) || bpm <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidBPM, bpm)
	}
	if BeatsPerLoop*60/bpm <= RearmMargin.Seconds() {
		return fmt.Errorf("%w: %v is too fast, a loop must outlast the %v re-arm margin", ErrInvalidBPM, bpm, RearmMargin)
	}
	return nil
}

func NewLoop(bpm, start float64) (Loop, error) {
	if err := CheckBPM(bpm); err != nil {
		return Loop{}, err
	}
	beat := 60 / bpm
	return Loop{
		BPM:           bpm,
		BeatDuration:  beat,
		TotalDuration: BeatsPerLoop * beat,
		Start:         start,
	}, nil
}

// CycleStart returns the audio time at which cycle n begins.
func (l Loop) CycleStart(n int) float64 {
	return l.Start + float64(n)*l.TotalDuration
}

// EventTime returns the audio time of ev within cycle n.
func (l Loop) EventTime(n int, ev BeatEvent) float64 {
	return l.CycleStart(n) + ev.OffsetBeats*l.BeatDuration
}

// StepDuration is the length of one pattern step.
func (l Loop) StepDuration() float64 { return StepBeats * l.BeatDuration }

// RearmDelay is how long after a cycle starts the next one gets scheduled.
func (l Loop) RearmDelay() time.Duration {
	return seconds(l.TotalDuration) - RearmMargin
}

// RearmAt returns the audio time at which cycle n must be scheduled.
func (l Loop) RearmAt(n int) float64 {
	return l.CycleStart(n) - RearmMargin.Seconds()
}

func (l Loop) Info() anim.LoopInfo {
	return anim.LoopInfo{
		Start:         l.Start,
		BeatDuration:  l.BeatDuration,
		TotalDuration: l.TotalDuration,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
