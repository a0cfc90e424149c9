// Package tts is the synthesis adapter.
package tts

import (
	"context"
	"strings"

	"github.com/mrsingh-rishi/voice-translate/model"
)

// Request describes one utterance to synthesize.
type Request struct {
	Text     string
	Language string
	// Voice overrides the provider's configured default voice.
	Voice  string
	Format model.AudioFormat
}

// Synthesizer turns text into audio.
type Synthesizer interface {
	Name() string
	Configured() error
	Synthesize(ctx context.Context, req Request) (model.SynthesizedAudio, error)
}

func validate(req Request) (string, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", model.Invalid("cannot synthesize empty text")
	}
	return text, nil
}
