package speech

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"pulse/internal/anim"
)

const (
	DefaultText     = "Welcome to the pulse. Feel the rhythm, see the sound."
	DefaultLocale   = "en-US"
	DefaultInterval = 10 * time.Second
)

type Publisher interface {
	Emit(anim.Event) bool
}

type Config struct {
	Text     string
	Locale   string
	Interval time.Duration
}

// TickerFunc returns a tick channel and its stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

type Option func(*Cue)

func WithTicker(fn TickerFunc) Option { return func(c *Cue) { c.newTicker = fn } }

func WithLogger(l *log.Logger) Option { return func(c *Cue) { c.logger = l } }

func WithClock(now func() time.Time) Option { return func(c *Cue) { c.now = now } }

// Cue speaks a fixed utterance on a fixed interval and publishes its
// lifecycle on the anim bus.
type Cue struct {
	backend   Backend
	pub       Publisher
	cfg       Config
	newTicker TickerFunc
	logger    *log.Logger
	now       func() time.Time

	mu       sync.Mutex
	cancel   context.CancelFunc
	voice    *Voice
	warned   bool
	wg       sync.WaitGroup
	speaking atomic.Bool
}

// NewCue builds a cue. A nil backend yields a cue that never speaks.
func NewCue(backend Backend, pub Publisher, cfg Config, opts ...Option) *Cue {
	if cfg.Text == "" {
		cfg.Text = DefaultText
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	c := &Cue{
		backend:   backend,
		pub:       pub,
		cfg:       cfg,
		newTicker: realTicker,
		logger:    log.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start speaks immediately and then once per interval while the synthesiser
// is idle. It is a no-op while already running.
func (c *Cue) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend == nil {
		if !c.warned {
			c.warned = true
			c.logger.Printf("[speech] %v, continuing without speech", ErrNoBackend)
		}
		return
	}
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(2)
	go c.loadVoices(ctx)
	go c.run(ctx)
}

// Stop cancels the interval and any utterance in flight.
func (c *Cue) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	c.wg.Wait()
	c.speaking.Store(false)
	c.emit(anim.Event{Type: anim.EventSpeechStopped, Wall: c.now()})
}

func (c *Cue) Speaking() bool { return c.speaking.Load() }

// Voice returns the selected voice, nil while the default is in use.
func (c *Cue) Voice() *Voice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voice
}

func (c *Cue) loadVoices(ctx context.Context) {
	defer c.wg.Done()
	voices, err := c.backend.Voices(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Printf("[speech] %v, using default voice", err)
		}
		return
	}
	v := SelectVoice(voices, c.cfg.Locale)
	c.mu.Lock()
	c.voice = v
	c.mu.Unlock()
	if v != nil {
		c.logger.Printf("[speech] %s voice %q (%s)", c.backend.Name(), v.Name, v.Locale)
	}
}

func (c *Cue) run(ctx context.Context) {
	defer c.wg.Done()
	tick, stop := c.newTicker(c.cfg.Interval)
	defer stop()

	c.speakIfIdle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			c.speakIfIdle(ctx)
		}
	}
}

func (c *Cue) speakIfIdle(ctx context.Context) {
	if !c.speaking.CompareAndSwap(false, true) {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.speaking.Store(false)
		c.utter(ctx)
	}()
}

func (c *Cue) utter(ctx context.Context) {
	c.mu.Lock()
	voice := c.voice
	c.mu.Unlock()

	started := false
	err := c.backend.Speak(ctx, c.cfg.Text, voice, func() {
		started = true
		c.emit(anim.Event{Type: anim.EventSpeechStart, Wall: c.now()})
	})
	if started {
		c.emit(anim.Event{Type: anim.EventSpeechEnd, Wall: c.now()})
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Printf("[speech] utterance failed: %v", err)
	}
}

func (c *Cue) emit(e anim.Event) {
	if !c.pub.Emit(e) {
		c.logger.Printf("[speech] event bus full, dropped %v", e.Type)
	}
}
