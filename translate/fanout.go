package translate

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/mrsingh-rishi/voice-translate/model"
	"github.com/mrsingh-rishi/voice-translate/telemetry"
)

// FanOut translates one transcript into every requested target language.
type FanOut struct {
	Translator Translator
	// Timeout bounds each translation call. Zero means no bound.
	Timeout time.Duration
	// Limit caps concurrent calls. Zero means one goroutine per language.
	Limit   int
	Logger  *slog.Logger
	Metrics *telemetry.PipelineMetrics
}

// Translate returns one result per target, in target order. Targets equal to
// the source language get the source text without a call. A failed target
// falls back to the source text; the rest are unaffected. The returned error
// is non-nil only when the translator reported a configuration error, in which
// case the results are still complete.
func (f *FanOut) Translate(ctx context.Context, text, source string, targets model.LanguageSet) ([]model.TranslationResult, error) {
	langs := targets.Codes()
	ctx, span := telemetry.Tracer().Start(ctx, "translate.fanout")
	defer span.End()
	span.SetAttributes(
		attribute.String("source_language", source),
		attribute.StringSlice("target_languages", langs),
	)

	results := make([]model.TranslationResult, len(langs))
	errs := make([]error, len(langs))

	var g errgroup.Group
	if f.Limit > 0 {
		g.SetLimit(f.Limit)
	}
	for i, target := range langs {
		i, target := i, target
		if model.SameLanguage(target, source) {
			results[i] = model.TranslationResult{TargetLanguage: target, Text: text}
			continue
		}
		g.Go(func() error {
			translated, err := f.translateOne(ctx, text, source, target)
			if err != nil {
				errs[i] = err
				results[i] = model.TranslationResult{TargetLanguage: target, Text: text, Fallback: true}
				return nil
			}
			results[i] = model.TranslationResult{TargetLanguage: target, Text: translated}
			return nil
		})
	}
	_ = g.Wait()

	var cfgErr error
	for i, err := range errs {
		if err == nil {
			continue
		}
		f.logger().Warn("translation failed, using source text",
			"target_language", langs[i], "provider", f.Translator.Name(), "error", err)
		f.Metrics.Fallback(ctx, string(model.StageTranslation))
		if cfgErr == nil && model.IsConfiguration(err) {
			cfgErr = err
		}
	}
	if cfgErr != nil {
		span.SetStatus(codes.Error, cfgErr.Error())
	}
	return results, cfgErr
}

func (f *FanOut) translateOne(ctx context.Context, text, source, target string) (string, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	start := time.Now()
	translated, err := f.Translator.Translate(ctx, text, source, target)
	f.Metrics.StageDuration(ctx, string(model.StageTranslation), time.Since(start).Seconds())
	if err != nil && ctx.Err() != nil && !model.IsConfiguration(err) {
		return "", model.Transient(f.Translator.Name(), model.StageTranslation, 0, ctx.Err())
	}
	return translated, err
}

func (f *FanOut) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}
