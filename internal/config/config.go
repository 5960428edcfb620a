package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"pulse/internal/sequencer"
)

// Window defaults.
const (
	WindowWidth  = 800
	WindowHeight = 600
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Music
	BPM         float64
	MusicVolume float64 // linear, 0..1

	// Display
	Variant    string // shader variant: pulse, voice, fractal
	Width      int
	Height     int
	Fullscreen bool

	// Speech
	SpeechEnabled  bool
	SpeechText     string
	SpeechLocale   string
	SpeechInterval time.Duration

	// Audio device
	AudioReadyTimeout time.Duration
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		BPM:         envFloat("PULSE_BPM", 90),
		MusicVolume: envFloat("PULSE_MUSIC_VOLUME", 0.6),

		Variant:    envStr("PULSE_VARIANT", "pulse"),
		Width:      envInt("PULSE_WIDTH", WindowWidth),
		Height:     envInt("PULSE_HEIGHT", WindowHeight),
		Fullscreen: envBool("PULSE_FULLSCREEN", false),

		SpeechEnabled:  envBool("PULSE_SPEECH_ENABLED", true),
		SpeechText:     envStr("PULSE_SPEECH_TEXT", "Welcome to the pulse. Feel the rhythm, see the sound."),
		SpeechLocale:   envStr("PULSE_SPEECH_LOCALE", "en-US"),
		SpeechInterval: envDuration("PULSE_SPEECH_INTERVAL", 10*time.Second),

		AudioReadyTimeout: envDuration("PULSE_AUDIO_READY_TIMEOUT", 2*time.Second),
	}
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	if err := sequencer.CheckBPM(c.BPM); err != nil {
		return fmt.Errorf("PULSE_BPM: %w", err)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("window size must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.MusicVolume < 0 || c.MusicVolume > 1 {
		return fmt.Errorf("PULSE_MUSIC_VOLUME must be in [0,1], got %v", c.MusicVolume)
	}
	if c.SpeechInterval <= 0 {
		return fmt.Errorf("PULSE_SPEECH_INTERVAL must be positive, got %v", c.SpeechInterval)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go durations ("10s", "1500ms") or plain seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return fallback
}
