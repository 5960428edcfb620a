package synth

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
)

// Voice levels, linear.
const (
	kickLevel  = 0.9
	snareLevel = 0.6
	hihatLevel = 0.12
	bassLevel  = 0.7
)

// fnVoice streams a mono instrument function for a fixed number of samples.
type fnVoice struct {
	sr  beep.SampleRate
	n   int
	pos int
	fn  func(t float64) float64
}

func (v *fnVoice) Stream(samples [][2]float64) (n int, ok bool) {
	if v.pos >= v.n {
		return 0, false
	}
	for n < len(samples) && v.pos < v.n {
		s := v.fn(float64(v.pos) / float64(v.sr))
		samples[n][0] = s
		samples[n][1] = s
		v.pos++
		n++
	}
	return n, true
}

func (v *fnVoice) Err() error { return nil }

// expDecay shapes a streamer with exp(-rate·t).
type expDecay struct {
	streamer beep.Streamer
	sr       beep.SampleRate
	rate     float64
	pos      int
}

func (e *expDecay) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = e.streamer.Stream(samples)
	for i := 0; i < n; i++ {
		env := math.Exp(-e.rate * float64(e.pos) / float64(e.sr))
		samples[i][0] *= env
		samples[i][1] *= env
		e.pos++
	}
	return n, ok
}

func (e *expDecay) Err() error { return e.streamer.Err() }

func durationN(sr beep.SampleRate, seconds float64) int {
	return sr.N(time.Duration(seconds * float64(time.Second)))
}

func withLevel(s beep.Streamer, level float64) beep.Streamer {
	return &effects.Gain{Streamer: s, Gain: level - 1}
}

// newVolume wraps s in a base-2 volume control; vol is linear in [0,1].
// math.Log2(0) is -Inf, so zero volume is handled by silencing.
func newVolume(s beep.Streamer, vol float64) *effects.Volume {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Volume: 0, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol)}
}

func NewKick(sr beep.SampleRate) beep.Streamer {
	return withLevel(&fnVoice{sr: sr, n: durationN(sr, kickLen), fn: kick}, kickLevel)
}

func NewSnare(sr beep.SampleRate, seed uint64) beep.Streamer {
	n := noise(seed)
	fn := func(t float64) float64 { return snare(t, &n) }
	return withLevel(&fnVoice{sr: sr, n: durationN(sr, snareLen), fn: fn}, snareLevel)
}

// NewHihat returns a short decaying sine burst; it carries no noise.
func NewHihat(sr beep.SampleRate) beep.Streamer {
	n := durationN(sr, hihatLen)
	tone, err := generators.SineTone(sr, hihatHz)
	if err != nil {
		return beep.Silence(n)
	}
	return withLevel(beep.Take(n, &expDecay{streamer: tone, sr: sr, rate: hihatDecay}), hihatLevel)
}

// NewBass returns an FM bass note of the given length in seconds.
func NewBass(sr beep.SampleRate, hz, length float64) beep.Streamer {
	if length <= 0 {
		length = 0.1
	}
	fn := func(t float64) float64 {
		return bass(t, hz, bassEnvelope.level(t/length))
	}
	return withLevel(&fnVoice{sr: sr, n: durationN(sr, length), fn: fn}, bassLevel)
}
