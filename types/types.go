// Package types holds the JSON shapes exchanged with clients.
package types

import (
	"encoding/base64"
	"strings"

	"github.com/mrsingh-rishi/voice-translate/model"
)

// ProcessRequest asks for one chunk to be transcribed, translated and
// optionally synthesized.
type ProcessRequest struct {
	SpeakerID       string   `json:"speakerId" jsonschema:"required,minLength=1"`
	SpeakerName     string   `json:"speakerName,omitempty"`
	RoomID          string   `json:"roomId,omitempty" jsonschema:"description=Room to broadcast the outcome to"`
	SourceLanguage  string   `json:"sourceLanguage" jsonschema:"required,minLength=1"`
	TargetLanguages []string `json:"targetLanguages" jsonschema:"required,minItems=1"`
	Audio           string   `json:"audio" jsonschema:"required,description=Base64 encoded audio chunk"`
	AudioFormat     string   `json:"audioFormat,omitempty" jsonschema:"enum=audio/webm,enum=audio/ogg,enum=audio/wav,enum=audio/l16"`
	Synthesis       string   `json:"synthesis,omitempty" jsonschema:"enum=all,enum=primary,enum=none"`
	Voice           string   `json:"voice,omitempty"`

	// Older clients send these names.
	AudioBase64 string   `json:"audioBase64,omitempty"`
	SourceLang  string   `json:"sourceLang,omitempty"`
	TargetLangs []string `json:"targetLangs,omitempty"`
}

// Normalize folds the legacy field names into the current ones.
func (r *ProcessRequest) Normalize() {
	if r.Audio == "" {
		r.Audio = r.AudioBase64
	}
	if strings.TrimSpace(r.SourceLanguage) == "" {
		r.SourceLanguage = r.SourceLang
	}
	if len(r.TargetLanguages) == 0 {
		r.TargetLanguages = r.TargetLangs
	}
	r.SpeakerID = strings.TrimSpace(r.SpeakerID)
	r.SourceLanguage = strings.TrimSpace(r.SourceLanguage)
}

type ResultItem struct {
	TargetLanguage string `json:"targetLanguage"`
	Text           string `json:"text"`
	Audio          string `json:"audio,omitempty"`
	AudioFormat    string `json:"audioFormat,omitempty"`
	Fallback       bool   `json:"fallback,omitempty"`
}

type ProcessResponse struct {
	OK         bool         `json:"ok"`
	ChunkID    string       `json:"chunkId,omitempty"`
	Transcript string       `json:"transcript"`
	Results    []ResultItem `json:"results"`
}

// NewProcessResponse shapes an outcome for the wire. Results keep the
// outcome's target order; audio is base64 encoded.
func NewProcessResponse(outcome model.PipelineOutcome) ProcessResponse {
	resp := ProcessResponse{
		OK:         true,
		ChunkID:    outcome.ChunkID,
		Transcript: outcome.Transcript.Text,
		Results:    make([]ResultItem, 0, len(outcome.Items)),
	}
	for _, item := range outcome.Items {
		r := ResultItem{
			TargetLanguage: item.Translation.TargetLanguage,
			Text:           item.Translation.Text,
			Fallback:       item.Translation.Fallback,
		}
		if item.Audio != nil && len(item.Audio.Data) > 0 {
			r.Audio = base64.StdEncoding.EncodeToString(item.Audio.Data)
			r.AudioFormat = string(item.Audio.Format)
		}
		resp.Results = append(resp.Results, r)
	}
	return resp
}

type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type CaptionRequest struct {
	Audio          string `json:"audio"`
	AudioBase64    string `json:"audioBase64,omitempty"`
	AudioFormat    string `json:"audioFormat,omitempty"`
	SourceLanguage string `json:"sourceLanguage"`
	SourceLang     string `json:"sourceLang,omitempty"`
	SpeakerID      string `json:"speakerId,omitempty"`
	SpeakerName    string `json:"speakerName,omitempty"`
	RoomID         string `json:"roomId,omitempty"`
}

func (r *CaptionRequest) Normalize() {
	if r.Audio == "" {
		r.Audio = r.AudioBase64
	}
	if strings.TrimSpace(r.SourceLanguage) == "" {
		r.SourceLanguage = r.SourceLang
	}
	r.SourceLanguage = strings.TrimSpace(r.SourceLanguage)
}

type CaptionResponse struct {
	OK           bool              `json:"ok"`
	Transcript   string            `json:"transcript"`
	Translations map[string]string `json:"translations"`
}

type TranscriptionRequest struct {
	Audio          string `json:"audio"`
	AudioBase64    string `json:"audioBase64,omitempty"`
	AudioFormat    string `json:"audioFormat,omitempty"`
	SourceLanguage string `json:"sourceLanguage,omitempty"`
	SourceLang     string `json:"sourceLang,omitempty"`
}

func (r *TranscriptionRequest) Normalize() {
	if r.Audio == "" {
		r.Audio = r.AudioBase64
	}
	if strings.TrimSpace(r.SourceLanguage) == "" {
		r.SourceLanguage = r.SourceLang
	}
	r.SourceLanguage = strings.TrimSpace(r.SourceLanguage)
}

type TranscriptionResponse struct {
	OK         bool   `json:"ok"`
	Transcript string `json:"transcript"`
}

// RoomMessage is broadcast to every member of a room. Consumers key state by
// SpeakerID and fall back to Transcript for a missing language.
type RoomMessage struct {
	Type           string            `json:"type"`
	SpeakerID      string            `json:"speakerId"`
	SpeakerName    string            `json:"speakerName,omitempty"`
	SourceLanguage string            `json:"sourceLanguage"`
	Transcript     string            `json:"transcript"`
	Translations   map[string]string `json:"translations"`
}

const RoomMessageTranslation = "translation"

// StreamEvent is a text frame on the live speaker stream.
type StreamEvent struct {
	Event string       `json:"event"` // "start", "media", "stop"
	Start *StreamStart `json:"start,omitempty"`
	Media *StreamMedia `json:"media,omitempty"`
}

type StreamStart struct {
	RoomID          string   `json:"roomId"`
	SpeakerID       string   `json:"speakerId"`
	SpeakerName     string   `json:"speakerName,omitempty"`
	SourceLanguage  string   `json:"sourceLanguage"`
	TargetLanguages []string `json:"targetLanguages"`
	AudioFormat     string   `json:"audioFormat,omitempty"`
	SampleRate      int      `json:"sampleRate,omitempty"`
	Channels        int      `json:"channels,omitempty"`
	Synthesis       string   `json:"synthesis,omitempty"`
}

type StreamMedia struct {
	Payload string `json:"payload"` // base64 audio
}

// StreamAck is written back to the speaker for every processed chunk.
type StreamAck struct {
	Event   string           `json:"event"`
	ChunkID string           `json:"chunkId,omitempty"`
	Outcome *ProcessResponse `json:"outcome,omitempty"`
	Error   string           `json:"error,omitempty"`
}
