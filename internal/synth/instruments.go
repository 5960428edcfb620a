package synth

import "math"

// Instruments are per-sample functions of t, the seconds since the voice
// was triggered. Output is saturated into (-1, 1).

const twoPi = 2 * math.Pi

const (
	kickLen  = 0.25
	snareLen = 0.20
	hihatLen = 0.06

	hihatHz    = 7300.0
	hihatDecay = 42.0
)

// partial is an exponentially decaying sine component.
type partial struct {
	hz, decay, gain float64
}

func (p partial) at(t float64) float64 {
	return p.gain * math.Sin(twoPi*p.hz*t) * math.Exp(-p.decay*t)
}

func sumPartials(ps []partial, t float64) float64 {
	var x float64
	for _, p := range ps {
		x += p.at(t)
	}
	return x
}

// Kick: a body whose pitch glides down from kickStartHz, plus click and air.
const (
	kickStartHz   = 185.0
	kickGlide     = 12.5
	kickBodyDecay = 18.0
	kickBodyGain  = 0.8
)

var kickTransient = []partial{
	{hz: 2100, decay: 250, gain: 0.24},
	{hz: 330, decay: 38, gain: 0.12},
}

func kick(t float64) float64 {
	if t > kickLen {
		return 0
	}
	// Phase is the integral of kickStartHz·exp(-kickGlide·t).
	phase := twoPi * kickStartHz / kickGlide * -math.Expm1(-kickGlide*t)
	body := kickBodyGain * math.Sin(phase) * math.Exp(-kickBodyDecay*t)
	return saturate(body + sumPartials(kickTransient, t))
}

// Snare: two tuned shell modes, a snap and shaped noise.
const snareDecay = 26.0

var snareTone = []partial{
	{hz: 188, decay: snareDecay, gain: 0.24},
	{hz: 356, decay: snareDecay, gain: 0.10},
	{hz: 2800, decay: 120, gain: 0.10},
}

func snare(t float64, n *noise) float64 {
	if t > snareLen {
		return 0
	}
	// Differencing two draws tilts the noise toward the top end.
	a, b := n.next(), n.next()
	wires := (a - 0.55*b) * math.Exp(-snareDecay*t) * (0.55 + 0.25*math.Exp(-8*t))
	return saturate(sumPartials(snareTone, t) + wires)
}

// bass is a two-operator FM tone with a sub octave; level is the envelope.
func bass(t, hz, level float64) float64 {
	const (
		ratio = 0.5
		index = 1.25
	)
	mod := math.Sin(twoPi * hz * ratio * t)
	x := 0.48 * math.Sin(twoPi*hz*t+index*level*mod)
	x += 0.26 * math.Sin(twoPi*hz*t)
	x += 0.10 * math.Sin(twoPi*hz*0.5*t)
	return saturate(x * level)
}

func saturate(x float64) float64 { return math.Tanh(x) }

// envelope is an ADSR over normalized progress; Attack, Decay and Release
// are fractions of the note length.
type envelope struct {
	Attack, Decay, Sustain, Release float64
}

var bassEnvelope = envelope{Attack: 0.04, Decay: 0.3, Sustain: 0.6, Release: 0.2}

func (e envelope) level(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	if p < e.Attack {
		return p / e.Attack
	}
	if p -= e.Attack; p < e.Decay {
		return 1 - (1-e.Sustain)*p/e.Decay
	}
	p -= e.Decay
	hold := 1 - e.Attack - e.Decay - e.Release
	if p < hold {
		return e.Sustain
	}
	return e.Sustain * (1 - (p-hold)/e.Release)
}

// noise is a 64-bit LCG producing samples in [-1, 1).
type noise uint64

func (n *noise) next() float64 {
	*n = *n*6364136223846793005 + 1442695040888963407
	return float64(int64(*n>>33)-1<<30) / (1 << 30)
}
