package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
)

var ErrNoBackend = errors.New("no speech synthesiser found")

// Voice is one installed synthesiser voice.
type Voice struct {
	Name   string
	Locale string
}

// Backend speaks text through a system synthesiser.
type Backend interface {
	Name() string
	Voices(ctx context.Context) ([]Voice, error)
	// Speak blocks until the utterance finishes or ctx is cancelled.
	// started is called once the synthesiser process is running.
	// A nil voice selects the synthesiser default.
	Speak(ctx context.Context, text string, voice *Voice, started func()) error
}

type execBackend struct {
	name      string
	path      string
	listArgs  []string
	parse     func(string) []Voice
	speakArgs func(text string, voice *Voice) []string
}

func (b *execBackend) Name() string { return b.name }

func (b *execBackend) Voices(ctx context.Context) ([]Voice, error) {
	out, err := exec.CommandContext(ctx, b.path, b.listArgs...).Output()
	if err != nil {
		return nil, fmt.Errorf("%s: list voices: %w", b.name, err)
	}
	return b.parse(string(out)), nil
}

func (b *execBackend) Speak(ctx context.Context, text string, voice *Voice, started func()) error {
	cmd := exec.CommandContext(ctx, b.path, b.speakArgs(text, voice)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s: start: %w", b.name, err)
	}
	if started != nil {
		started()
	}
	err := cmd.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}
	return nil
}

func espeakBackend(name, path string) *execBackend {
	return &execBackend{
		name:     name,
		path:     path,
		listArgs: []string{"--voices"},
		parse:    parseEspeakVoices,
		speakArgs: func(text string, v *Voice) []string {
			if v == nil {
				return []string{text}
			}
			return []string{"-v", v.Locale, text}
		},
	}
}

func sayBackend(path string) *execBackend {
	return &execBackend{
		name:     "say",
		path:     path,
		listArgs: []string{"-v", "?"},
		parse:    parseSayVoices,
		speakArgs: func(text string, v *Voice) []string {
			if v == nil {
				return []string{text}
			}
			return []string{"-v", v.Name, text}
		},
	}
}

func spdBackend(path string) *execBackend {
	return &execBackend{
		name:     "spd-say",
		path:     path,
		listArgs: []string{"-L"},
		parse:    parseSpdVoices,
		speakArgs: func(text string, v *Voice) []string {
			// -w blocks until the utterance is spoken.
			if v == nil {
				return []string{"-w", text}
			}
			return []string{"-w", "-y", v.Name, text}
		},
	}
}

// DetectBackend searches PATH for a speech synthesiser.
// Priority: espeak-ng > espeak > say (macOS) > spd-say
func DetectBackend() (Backend, error) {
	return detect(exec.LookPath, runtime.GOOS)
}

func detect(lookPath func(string) (string, error), goos string) (Backend, error) {
	if path, err := lookPath("espeak-ng"); err == nil {
		return espeakBackend("espeak-ng", path), nil
	}
	if path, err := lookPath("espeak"); err == nil {
		return espeakBackend("espeak", path), nil
	}
	if goos == "darwin" {
		if path, err := lookPath("say"); err == nil {
			return sayBackend(path), nil
		}
	}
	if path, err := lookPath("spd-say"); err == nil {
		return spdBackend(path), nil
	}
	return nil, ErrNoBackend
}
