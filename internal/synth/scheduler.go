package synth

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep"
)

type scheduledVoice struct {
	start    int64 // sample index on the stream
	streamer beep.Streamer
}

// Scheduler is a beep.Streamer that starts voices at exact sample positions.
// Schedule and CancelPending may be called from any goroutine; Stream is
// driven by the audio output.
type Scheduler struct {
	sr beep.SampleRate

	mu      sync.Mutex
	pending []scheduledVoice // sorted by start
	seed    uint64

	pos   atomic.Int64
	mixer beep.Mixer // audio goroutine only
}

func NewScheduler(sr beep.SampleRate, seed uint64) *Scheduler {
	if seed == 0 {
		seed = 1
	}
	return &Scheduler{sr: sr, seed: seed}
}

func (s *Scheduler) SampleRate() beep.SampleRate { return s.sr }

// Position returns the number of frames streamed so far.
func (s *Scheduler) Position() int64 { return s.pos.Load() }

// Schedule starts v at audio time at (seconds). Voices whose start has
// already been streamed begin on the next streamed frame.
func (s *Scheduler) Schedule(at float64, v beep.Streamer) {
	start := int64(math.Round(at * float64(s.sr)))
	s.mu.Lock()
	i := sort.Search(len(s.pending), func(i int) bool { return s.pending[i].start > start })
	s.pending = append(s.pending, scheduledVoice{})
	copy(s.pending[i+1:], s.pending[i:])
	s.pending[i] = scheduledVoice{start: start, streamer: v}
	s.mu.Unlock()
}

func (s *Scheduler) Kick(at float64) { s.Schedule(at, NewKick(s.sr)) }

func (s *Scheduler) Snare(at float64) {
	s.mu.Lock()
	s.seed = s.seed*6364136223846793005 + 1442695040888963407
	seed := s.seed
	s.mu.Unlock()
	s.Schedule(at, NewSnare(s.sr, seed))
}

func (s *Scheduler) Hihat(at float64) { s.Schedule(at, NewHihat(s.sr)) }

func (s *Scheduler) Bass(at, hz, length float64) { s.Schedule(at, NewBass(s.sr, hz, length)) }

// CancelPending drops voices that have not started. Sounding voices finish.
func (s *Scheduler) CancelPending() {
	s.mu.Lock()
	s.pending = s.pending[:0]
	s.mu.Unlock()
}

// Pending returns the number of voices waiting for their start sample.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// admit moves every voice due at or before pos into the mixer and returns
// the start of the next pending voice.
func (s *Scheduler) admit(pos int64) (next int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for n < len(s.pending) && s.pending[n].start <= pos {
		s.mixer.Add(s.pending[n].streamer)
		n++
	}
	if n > 0 {
		s.pending = append(s.pending[:0], s.pending[n:]...)
	}
	if len(s.pending) == 0 {
		return 0, false
	}
	return s.pending[0].start, true
}

func (s *Scheduler) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		samples[i] = [2]float64{}
	}
	for n < len(samples) {
		pos := s.pos.Load()
		chunk := len(samples) - n
		if next, ok := s.admit(pos); ok && next-pos < int64(chunk) {
			chunk = int(next - pos)
		}
		if s.mixer.Len() > 0 {
			s.mixer.Stream(samples[n : n+chunk])
		}
		n += chunk
		s.pos.Add(int64(chunk))
	}
	return n, true
}

func (s *Scheduler) Err() error { return nil }
