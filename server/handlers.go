package server

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-translate/model"
	"github.com/mrsingh-rishi/voice-translate/pipeline"
	"github.com/mrsingh-rishi/voice-translate/types"
	"github.com/mrsingh-rishi/voice-translate/workers"
)

const defaultCaptionSource = "en"

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true, "dispatcher": s.dispatcher.Snapshot()})
}

func (s *Server) handleSchema(c *fiber.Ctx) error {
	return c.JSON(s.schema)
}

// handleProcess runs one chunk through the speaker's session and answers
// with the chunk's outcome.
func (s *Server) handleProcess(c *fiber.Ctx) error {
	var req types.ProcessRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, model.Invalid("invalid JSON body"))
	}
	req.Normalize()
	if req.SpeakerID == "" {
		return s.fail(c, model.Invalid("speakerId is required"))
	}
	if err := checkSubject(claimsFrom(c), req.SpeakerID); err != nil {
		return s.fail(c, err)
	}
	outcome, err := s.process(c, req)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(types.NewProcessResponse(outcome))
}

// handleCaption translates a chunk into the configured caption languages
// without synthesis.
func (s *Server) handleCaption(c *fiber.Ctx) error {
	var req types.CaptionRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, model.Invalid("invalid JSON body"))
	}
	req.Normalize()
	if req.SpeakerID != "" {
		if err := checkSubject(claimsFrom(c), req.SpeakerID); err != nil {
			return s.fail(c, err)
		}
	}

	var preq types.ProcessRequest
	if err := copier.Copy(&preq, &req); err != nil {
		return s.fail(c, errors.Wrap(err, "copy caption request"))
	}
	if preq.SourceLanguage == "" {
		preq.SourceLanguage = defaultCaptionSource
	}
	preq.TargetLanguages = s.captionLanguages
	preq.Synthesis = string(pipeline.SynthesizeNone)
	if preq.SpeakerID == "" {
		preq.SpeakerID = "caption-" + uuid.NewString()
		defer s.dispatcher.Leave(preq.SpeakerID)
	}

	outcome, err := s.process(c, preq)
	if err != nil {
		return s.fail(c, err)
	}
	translations := make(map[string]string, len(s.captionLanguages))
	for _, lang := range s.captionLanguages {
		translations[lang] = ""
	}
	for lang, text := range outcome.Translations() {
		translations[lang] = text
	}
	return c.JSON(types.CaptionResponse{
		OK:           true,
		Transcript:   outcome.Transcript.Text,
		Translations: translations,
	})
}

// handleTranscription runs the transcription stage only. It does not go
// through a speaker session.
func (s *Server) handleTranscription(c *fiber.Ctx) error {
	var req types.TranscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, model.Invalid("invalid JSON body"))
	}
	req.Normalize()
	audio, err := decodeAudio(req.Audio)
	if err != nil {
		return s.fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), s.requestTimeout)
	defer cancel()
	transcript, err := s.runner.Transcribe(ctx, chunkFor(audio, req.AudioFormat), req.SourceLanguage)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(types.TranscriptionResponse{OK: true, Transcript: transcript.Text})
}

// handleLeave tears down a speaker's session once its queued chunks finish.
// A failed session is cleared so the speaker can start over.
func (s *Server) handleLeave(c *fiber.Ctx) error {
	speakerID := c.Params("speakerId")
	if err := checkSubject(claimsFrom(c), speakerID); err != nil {
		return s.fail(c, err)
	}
	left := s.dispatcher.Leave(speakerID)
	return c.JSON(fiber.Map{"ok": true, "left": left})
}

// process validates req, refuses it early on missing credentials, then
// enqueues it and waits for the chunk's ticket.
func (s *Server) process(c *fiber.Ctx, req types.ProcessRequest) (model.PipelineOutcome, error) {
	audio, err := decodeAudio(req.Audio)
	if err != nil {
		return model.PipelineOutcome{}, err
	}
	policy, err := pipeline.ParsePolicy(req.Synthesis, s.synthesis)
	if err != nil {
		return model.PipelineOutcome{}, err
	}
	voice := req.Voice
	if voice == "" {
		voice = s.voice
	}
	speaker := workers.Speaker{
		ID:             req.SpeakerID,
		Name:           req.SpeakerName,
		RoomID:         req.RoomID,
		SourceLanguage: req.SourceLanguage,
		Targets:        model.NewLanguageSet(req.TargetLanguages...),
		Synthesis:      policy,
		AudioFormat:    model.FormatMP3,
		Voice:          voice,
		Broadcast:      req.RoomID != "",
	}
	chunk := chunkFor(audio, req.AudioFormat)
	job := speaker.Job(chunk)
	if err := s.runner.Validate(job); err != nil {
		return model.PipelineOutcome{}, err
	}
	if err := s.runner.CheckCredentials(job); err != nil {
		return model.PipelineOutcome{}, err
	}

	ticket, err := s.dispatcher.Enqueue(speaker, chunk)
	if err != nil {
		return model.PipelineOutcome{}, err
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), s.requestTimeout)
	defer cancel()
	return ticket.Wait(ctx)
}

func chunkFor(audio []byte, mime string) model.AudioChunk {
	return model.AudioChunk{
		ID:         uuid.NewString(),
		Data:       audio,
		MimeType:   model.NormalizeMime(mime),
		CapturedAt: time.Now(),
	}
}

// decodeAudio accepts plain base64 or a data URL.
func decodeAudio(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		if i := strings.IndexByte(payload, ','); i >= 0 {
			payload = payload[i+1:]
		}
	}
	if payload == "" {
		return nil, model.Invalid("audio is required")
	}
	audio, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, model.Invalid("audio is not valid base64")
	}
	if len(audio) == 0 {
		return nil, model.Invalid("audio is required")
	}
	return audio, nil
}
