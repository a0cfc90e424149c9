package model

import (
	"strings"
	"time"
)

// AudioChunk represents a chunk of audio data handed to the pipeline as one
// processing unit.
type AudioChunk struct {
	ID       string
	Data     []byte
	MimeType string
	Duration time.Duration
	// CapturedAt is when the segmenter closed the chunk or the request arrived.
	CapturedAt time.Time
}

// Empty reports whether the chunk carries no audio.
func (c AudioChunk) Empty() bool { return len(c.Data) == 0 }

// Transcript represents text produced by a transcription service.
type Transcript struct {
	Text           string
	SourceLanguage string
}

// Blank reports whether the transcript is empty or whitespace only.
func (t Transcript) Blank() bool { return strings.TrimSpace(t.Text) == "" }

// TranslationResult is one target language's text. Text equals the transcript
// verbatim when the target matches the source or the translation failed.
type TranslationResult struct {
	TargetLanguage string
	Text           string
	// Fallback is set when Text is the untranslated transcript because the
	// translation collaborator failed.
	Fallback bool
}

// SynthesizedAudio is the audio produced for one result.
type SynthesizedAudio struct {
	TargetLanguage string
	Format         AudioFormat
	SampleRate     int
	Channels       int
	Data           []byte
}

// OutcomeItem pairs a translation with its optional audio.
type OutcomeItem struct {
	Translation TranslationResult
	Audio       *SynthesizedAudio
}

// PipelineOutcome is the aggregate per-chunk result. Items is empty when the
// transcript was blank.
type PipelineOutcome struct {
	ChunkID    string
	Transcript Transcript
	Items      []OutcomeItem
}

// Empty reports whether the outcome carries no results.
func (o PipelineOutcome) Empty() bool { return len(o.Items) == 0 }

// Translations returns the outcome as a language -> text map.
func (o PipelineOutcome) Translations() map[string]string {
	out := make(map[string]string, len(o.Items))
	for _, item := range o.Items {
		out[item.Translation.TargetLanguage] = item.Translation.Text
	}
	return out
}

// Delivery is an outcome addressed to a room.
type Delivery struct {
	RoomID         string
	SpeakerID      string
	SpeakerName    string
	SourceLanguage string
	Outcome        PipelineOutcome
}
