package audio

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hajimehoshi/oto/v2"

	"pulse/internal/synth"
)

const (
	SampleRate   = 44100
	ChannelCount = 2

	// bufferSize keeps the device queue well under the sequencer's re-arm
	// margin so a freshly scheduled cycle is never already buffered.
	bufferSize = SampleRate / 50 * synth.BytesPerFrame // 20ms
)

var ErrNotReady = errors.New("audio device not ready")

// Engine owns the output device and exposes the audio clock.
type Engine struct {
	voices       *synth.Scheduler
	readyTimeout time.Duration
	volume       float64
	logger       *log.Logger

	mu     sync.Mutex
	ctx    *oto.Context
	ready  chan struct{}
	player oto.Player
	stream *synth.PCMReader
}

func NewEngine(voices *synth.Scheduler, volume float64, readyTimeout time.Duration, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		voices:       voices,
		readyTimeout: readyTimeout,
		volume:       volume,
		logger:       logger,
	}
}

// Start opens the device and begins streaming the voice scheduler. It is
// idempotent once it has succeeded; a failed attempt can be retried.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.player != nil {
		return nil
	}

	if e.ctx == nil {
		ctx, ready, err := oto.NewContext(SampleRate, ChannelCount, oto.FormatFloat32LE)
		if err != nil {
			return fmt.Errorf("open audio device: %w", err)
		}
		e.ctx = ctx
		e.ready = ready
	}

	select {
	case <-e.ready:
	case <-time.After(e.readyTimeout):
		return ErrNotReady
	}

	stream := synth.NewPCMReader(e.voices, e.volume)
	player := e.ctx.NewPlayer(stream)
	if bs, ok := player.(oto.BufferSizeSetter); ok {
		bs.SetBufferSize(bufferSize)
	}
	player.Play()
	if err := player.Err(); err != nil {
		player.Close()
		return fmt.Errorf("start player: %w", err)
	}
	e.stream = stream
	e.player = player
	e.logger.Printf("[audio] streaming %d Hz stereo", SampleRate)
	return nil
}

func (e *Engine) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.player != nil
}

// Now returns the audio clock in seconds: frames handed to the device minus
// those still queued. It is 0 until Start succeeds.
func (e *Engine) Now() float64 {
	e.mu.Lock()
	player, stream := e.player, e.stream
	e.mu.Unlock()
	if player == nil {
		return 0
	}
	played := stream.Frames() - int64(player.UnplayedBufferSize()/synth.BytesPerFrame)
	if played < 0 {
		played = 0
	}
	return float64(played) / SampleRate
}

func (e *Engine) SetVolume(vol float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = vol
	if e.stream != nil {
		e.stream.SetVolume(vol)
	}
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.player == nil {
		return nil
	}
	err := e.player.Close()
	e.player = nil
	e.stream = nil
	return err
}
