// Package pipeline runs one audio chunk through transcription, translation
// fan-out and synthesis, applying the per-stage fallback rules.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/mrsingh-rishi/voice-translate/model"
	"github.com/mrsingh-rishi/voice-translate/stt"
	"github.com/mrsingh-rishi/voice-translate/telemetry"
	"github.com/mrsingh-rishi/voice-translate/translate"
	"github.com/mrsingh-rishi/voice-translate/tts"
)

// Job is a single chunk plus everything needed to process it.
type Job struct {
	Chunk          model.AudioChunk
	SourceLanguage string
	Targets        model.LanguageSet
	Synthesis      SynthesisPolicy
	// AudioFormat is the format requested from the synthesizer.
	AudioFormat model.AudioFormat
	Voice       string
}

// Options configures a Runner.
type Options struct {
	Transcriber stt.Transcriber
	Translator  translate.Translator
	Synthesizer tts.Synthesizer
	// Timeout bounds every individual adapter call.
	Timeout time.Duration
	// Concurrency caps parallel translation and synthesis calls per chunk.
	Concurrency int
	Logger      *slog.Logger
	Metrics     *telemetry.PipelineMetrics
}

// Runner is stateless and safe for concurrent use across speakers.
type Runner struct {
	transcriber stt.Transcriber
	synthesizer tts.Synthesizer
	fanout      *translate.FanOut
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
	metrics     *telemetry.PipelineMetrics
}

func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pipeline")
	return &Runner{
		transcriber: opts.Transcriber,
		synthesizer: opts.Synthesizer,
		fanout: &translate.FanOut{
			Translator: opts.Translator,
			Timeout:    opts.Timeout,
			Limit:      opts.Concurrency,
			Logger:     logger,
			Metrics:    opts.Metrics,
		},
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
		logger:      logger,
		metrics:     opts.Metrics,
	}
}

// Validate rejects jobs that must never reach an adapter.
func (r *Runner) Validate(job Job) error {
	if job.Chunk.Empty() {
		return model.Invalid("audio is required")
	}
	if strings.TrimSpace(job.SourceLanguage) == "" {
		return model.Invalid("sourceLanguage is required")
	}
	if job.Targets.Len() == 0 {
		return model.Invalid("at least one target language is required")
	}
	return nil
}

// CheckCredentials reports a configuration error for any adapter the job
// would need whose credentials are missing.
func (r *Runner) CheckCredentials(job Job) error {
	if err := r.transcriber.Configured(); err != nil {
		return err
	}
	targets := job.Targets.Codes()
	for _, target := range targets {
		if !model.SameLanguage(target, job.SourceLanguage) {
			if err := r.fanout.Translator.Configured(); err != nil {
				return err
			}
			break
		}
	}
	if job.Synthesis.any(job.SourceLanguage, targets) {
		if err := r.synthesizer.Configured(); err != nil {
			return err
		}
	}
	return nil
}

// Transcribe runs the transcription stage alone.
func (r *Runner) Transcribe(ctx context.Context, chunk model.AudioChunk, language string) (model.Transcript, error) {
	if chunk.Empty() {
		return model.Transcript{}, model.Invalid("audio is required")
	}
	if err := r.transcriber.Configured(); err != nil {
		return model.Transcript{}, err
	}
	return r.transcribe(ctx, chunk, language)
}

// Process runs the full chain for one chunk. A blank transcript yields an
// empty outcome and no further calls. A failed transcription yields an empty
// outcome and the transcription error. Translation and synthesis failures
// degrade per language. Configuration errors abort the chunk.
func (r *Runner) Process(ctx context.Context, job Job) (model.PipelineOutcome, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("chunk_id", job.Chunk.ID),
		attribute.String("source_language", job.SourceLanguage),
		attribute.Int("target_count", job.Targets.Len()),
	)

	outcome := model.PipelineOutcome{ChunkID: job.Chunk.ID}
	if err := r.Validate(job); err != nil {
		return outcome, err
	}
	if err := r.CheckCredentials(job); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return outcome, err
	}

	transcript, err := r.transcribe(ctx, job.Chunk, job.SourceLanguage)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return outcome, err
	}
	outcome.Transcript = transcript
	if transcript.Blank() {
		r.logger.Debug("blank transcript, skipping translation", "chunk_id", job.Chunk.ID)
		return outcome, nil
	}

	results, err := r.fanout.Translate(ctx, transcript.Text, job.SourceLanguage, job.Targets)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return outcome, err
	}

	outcome.Items = make([]model.OutcomeItem, len(results))
	for i, res := range results {
		outcome.Items[i].Translation = res
	}
	if err := r.synthesize(ctx, job, outcome.Items); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return outcome, err
	}
	return outcome, nil
}

func (r *Runner) transcribe(ctx context.Context, chunk model.AudioChunk, language string) (model.Transcript, error) {
	callCtx, cancel := r.callContext(ctx)
	defer cancel()

	start := time.Now()
	transcript, err := r.transcriber.Transcribe(callCtx, stt.Request{
		Audio:    chunk.Data,
		MimeType: chunk.MimeType,
		Language: language,
	})
	r.metrics.StageDuration(ctx, string(model.StageTranscription), time.Since(start).Seconds())
	if err != nil {
		if callCtx.Err() != nil && !model.IsConfiguration(err) {
			err = model.Transient(r.transcriber.Name(), model.StageTranscription, 0, callCtx.Err())
		}
		r.logger.Warn("transcription failed", "chunk_id", chunk.ID, "provider", r.transcriber.Name(), "error", err)
		return model.Transcript{}, err
	}
	if transcript.SourceLanguage == "" {
		transcript.SourceLanguage = language
	}
	return transcript, nil
}

// synthesize fills Audio for every item the policy selects. Failed items keep
// their text and no audio; only a configuration error is returned.
func (r *Runner) synthesize(ctx context.Context, job Job, items []model.OutcomeItem) error {
	targets := make([]string, len(items))
	for i, item := range items {
		targets[i] = item.Translation.TargetLanguage
	}
	want := job.Synthesis.wantsAudio(job.SourceLanguage, targets)

	errs := make([]error, len(items))
	var g errgroup.Group
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for i := range items {
		i := i
		if !want[i] {
			continue
		}
		g.Go(func() error {
			audio, err := r.synthesizeOne(ctx, job, items[i].Translation)
			if err != nil {
				errs[i] = err
				return nil
			}
			items[i].Audio = &audio
			return nil
		})
	}
	_ = g.Wait()

	var cfgErr error
	for i, err := range errs {
		if err == nil {
			continue
		}
		r.logger.Warn("synthesis failed, emitting text only",
			"target_language", targets[i], "provider", r.synthesizer.Name(), "error", err)
		r.metrics.Fallback(ctx, string(model.StageSynthesis))
		if cfgErr == nil && model.IsConfiguration(err) {
			cfgErr = err
		}
	}
	return cfgErr
}

func (r *Runner) synthesizeOne(ctx context.Context, job Job, res model.TranslationResult) (model.SynthesizedAudio, error) {
	callCtx, cancel := r.callContext(ctx)
	defer cancel()

	start := time.Now()
	audio, err := r.synthesizer.Synthesize(callCtx, tts.Request{
		Text:     res.Text,
		Language: res.TargetLanguage,
		Voice:    job.Voice,
		Format:   job.AudioFormat,
	})
	r.metrics.StageDuration(ctx, string(model.StageSynthesis), time.Since(start).Seconds())
	if err != nil {
		if callCtx.Err() != nil && !model.IsConfiguration(err) {
			return model.SynthesizedAudio{}, model.Transient(r.synthesizer.Name(), model.StageSynthesis, 0, callCtx.Err())
		}
		return model.SynthesizedAudio{}, errors.Wrapf(err, "synthesize %s", res.TargetLanguage)
	}
	audio.TargetLanguage = res.TargetLanguage
	return audio, nil
}

func (r *Runner) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return context.WithCancel(ctx)
}
