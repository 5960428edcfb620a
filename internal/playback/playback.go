// Package playback turns user interactions into audio engine, sequencer and
// speech lifecycle transitions.
package playback

import (
	"context"
	"log"
	"sync"
	"time"

	"pulse/internal/anim"
	"pulse/internal/sequencer"
)

type Engine interface {
	Start() error
	Started() bool
	Now() float64
}

type Sequencer interface {
	SetPlaying(bool)
	Playing() bool
	Start(clock sequencer.Clock) bool
}

type Cue interface {
	Start(ctx context.Context)
	Stop()
}

type Publisher interface {
	Emit(anim.Event) bool
}

type Playback struct {
	engine Engine
	seq    Sequencer
	cue    Cue
	pub    Publisher
	logger *log.Logger
	now    func() time.Time

	mu        sync.Mutex
	starting  bool
	announced bool
	wg        sync.WaitGroup
}

// New wires a playback controller. cue may be nil.
func New(engine Engine, seq Sequencer, cue Cue, pub Publisher, logger *log.Logger) *Playback {
	if logger == nil {
		logger = log.Default()
	}
	return &Playback{
		engine: engine,
		seq:    seq,
		cue:    cue,
		pub:    pub,
		logger: logger,
		now:    time.Now,
	}
}

// Toggle handles one play/stop interaction. Starting runs in the background
// because opening the audio device can block; a failed start is logged and
// retried on the next interaction.
func (p *Playback) Toggle(ctx context.Context) {
	p.mu.Lock()
	if p.starting {
		p.mu.Unlock()
		return
	}
	if p.seq.Playing() {
		p.mu.Unlock()
		p.Stop()
		return
	}
	p.starting = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.start(ctx)
}

func (p *Playback) start(ctx context.Context) {
	defer p.wg.Done()
	err := p.engine.Start()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.starting = false
	if err != nil {
		p.logger.Printf("[audio] start failed, will retry on next interaction: %v", err)
		return
	}
	if !p.announced {
		p.announced = true
		if !p.pub.Emit(anim.Event{Type: anim.EventAudioStarted, Wall: p.now()}) {
			p.logger.Printf("[audio] dropped %s event", anim.EventAudioStarted)
		}
	}
	p.seq.SetPlaying(true)
	p.seq.Start(p.engine)
	if p.cue != nil {
		p.cue.Start(ctx)
	}
}

// Stop halts the loop and the speech cue. The audio device stays open.
func (p *Playback) Stop() {
	p.seq.SetPlaying(false)
	if p.cue != nil {
		p.cue.Stop()
	}
}

// Wait blocks until any start in progress has finished.
func (p *Playback) Wait() {
	p.wg.Wait()
}

// Starting reports whether an engine start is in progress.
func (p *Playback) Starting() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starting
}
