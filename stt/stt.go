// Package stt is the transcription adapter: one audio chunk in, plain
// trimmed text out.
package stt

import (
	"context"

	"github.com/mrsingh-rishi/voice-translate/model"
)

// Request is a single chunk to transcribe.
type Request struct {
	Audio    []byte
	MimeType string
	// Language is an optional source language hint.
	Language string
}

// Transcriber converts an audio chunk to text.
type Transcriber interface {
	// Name identifies the provider in logs and errors.
	Name() string
	// Configured returns a configuration error when credentials are missing.
	Configured() error
	// Transcribe returns the best transcript for the chunk. A chunk without
	// speech yields an empty transcript and no error.
	Transcribe(ctx context.Context, req Request) (model.Transcript, error)
}

func validate(req Request) error {
	if len(req.Audio) == 0 {
		return model.Invalid("audio chunk is empty")
	}
	return nil
}
