package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/mrsingh-rishi/voice-translate/config"
	"github.com/mrsingh-rishi/voice-translate/output"
	"github.com/mrsingh-rishi/voice-translate/pipeline"
	"github.com/mrsingh-rishi/voice-translate/server"
	"github.com/mrsingh-rishi/voice-translate/stt"
	"github.com/mrsingh-rishi/voice-translate/telemetry"
	"github.com/mrsingh-rishi/voice-translate/translate"
	"github.com/mrsingh-rishi/voice-translate/tts"
	"github.com/mrsingh-rishi/voice-translate/workers"
)

const (
	healthServiceName = "voice-translate"
	shutdownTimeout   = 5 * time.Second
	// adapterConcurrency caps parallel translation and synthesis calls per chunk.
	adapterConcurrency = 4
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Loader{}.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	providers, err := telemetry.Setup(ctx, cfg.OTelExporter, nil)
	if err != nil {
		slog.Error("failed to set up telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	logger := telemetry.NewLogger(cfg.LogLevel, cfg.LogExporter)
	slog.SetDefault(logger)
	logger.Info("starting voice-translate",
		"listen_addr", cfg.ListenAddr,
		"stt_provider", cfg.STTProvider,
		"translate_provider", cfg.TranslateProvider,
		"tts_provider", cfg.TTSProvider,
		"chunk_window", cfg.ChunkWindow,
		"livekit", cfg.LiveKitEnabled(),
		"otel_exporter", cfg.OTelExporter,
	)

	policy, err := pipeline.ParsePolicy(cfg.SynthesisPolicy, pipeline.SynthesizeAll)
	if err != nil {
		logger.Error("invalid synthesis policy", "error", err)
		os.Exit(1)
	}

	metrics := telemetry.NewPipelineMetrics(logger)
	runner := pipeline.New(pipeline.Options{
		Transcriber: newTranscriber(cfg),
		Translator:  newTranslator(cfg),
		Synthesizer: newSynthesizer(cfg),
		Timeout:     cfg.AdapterTimeout,
		Concurrency: adapterConcurrency,
		Logger:      logger,
		Metrics:     metrics,
	})

	hub := output.NewHub(logger)
	tracks := output.NewTracks(hub, tts.FrameDuration, logger)
	defer tracks.Close()
	sinks := []output.Sink{hub}
	if cfg.LiveKitEnabled() {
		sinks = append(sinks, output.NewLiveKitSink(cfg.LiveKitURL, cfg.LiveKitAPIKey, cfg.LiveKitAPISecret))
	}
	broadcaster := output.NewBroadcaster(tracks, logger, metrics, sinks...)

	dispatcher := workers.NewDispatcher(workers.Options{
		Processor:   runner,
		Publisher:   broadcaster,
		MaxPending:  cfg.MaxPendingChunks,
		IdleTimeout: cfg.IdleTimeout,
		Logger:      logger,
		Metrics:     metrics,
	})
	defer dispatcher.Stop()
	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("session reaper stopped", "error", err)
		}
	}()

	srv := server.New(server.Options{
		Runner:           runner,
		Dispatcher:       dispatcher,
		Hub:              hub,
		CaptionLanguages: cfg.CaptionLanguages,
		Synthesis:        policy,
		Voice:            voiceFor(cfg),
		ChunkWindow:      cfg.ChunkWindow,
		RequestTimeout:   4 * cfg.AdapterTimeout,
		TokenSecret:      cfg.TokenSecret(),
		Logger:           logger,
	})

	var healthServer *health.Server
	if cfg.GRPCHealthAddr != "" {
		healthServer, err = serveHealth(ctx, cfg.GRPCHealthAddr, logger)
		if err != nil {
			logger.Error("failed to start gRPC health server", "error", err)
			os.Exit(1)
		}
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutdown requested, stopping http server")
		if healthServer != nil {
			healthServer.SetServingStatus(healthServiceName, healthgrpc.HealthCheckResponse_NOT_SERVING)
			healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_NOT_SERVING)
		}
		if err := srv.Shutdown(shutdownTimeout); err != nil {
			logger.Warn("http shutdown failed", "error", err)
		}
	}()

	if err := srv.Listen(cfg.ListenAddr); err != nil {
		logger.Error("http server terminated with error", "error", err)
		os.Exit(1)
	}

	stats := dispatcher.Snapshot()
	logger.Info("stopped", "sessions", stats.Sessions, "pending", stats.Pending)
}

func newTranscriber(cfg config.Config) stt.Transcriber {
	switch cfg.STTProvider {
	case "elevenlabs":
		return stt.NewElevenLabsClient(cfg.ElevenAPIKey, telemetry.HTTPClient("elevenlabs", cfg.AdapterTimeout))
	case "openai":
		return stt.NewOpenAIClient(cfg.OpenAIAPIKey, "", telemetry.HTTPClient("openai", cfg.AdapterTimeout))
	default:
		return stt.NewDeepgramClient(cfg.DeepgramAPIKey, telemetry.HTTPClient("deepgram", cfg.AdapterTimeout))
	}
}

func newTranslator(cfg config.Config) translate.Translator {
	switch cfg.TranslateProvider {
	case "openai":
		return translate.NewOpenAIClient(cfg.OpenAIAPIKey, "", telemetry.HTTPClient("openai", cfg.AdapterTimeout))
	default:
		return translate.NewGeminiClient(cfg.GeminiAPIKey, telemetry.HTTPClient("gemini", cfg.AdapterTimeout))
	}
}

func newSynthesizer(cfg config.Config) tts.Synthesizer {
	switch cfg.TTSProvider {
	case "openai":
		return tts.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIVoice, "", telemetry.HTTPClient("openai", cfg.AdapterTimeout))
	default:
		return tts.NewElevenLabsClient(cfg.ElevenAPIKey, cfg.ElevenVoiceID, telemetry.HTTPClient("elevenlabs", cfg.AdapterTimeout))
	}
}

func voiceFor(cfg config.Config) string {
	if cfg.TTSProvider == "openai" {
		return cfg.OpenAIVoice
	}
	return cfg.ElevenVoiceID
}

func serveHealth(ctx context.Context, addr string, logger *slog.Logger) (*health.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "bind health listener")
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthgrpc.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(healthServiceName, healthgrpc.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		grpcServer.GracefulStop()
	}()
	go func() {
		logger.Info("gRPC health server listening", "addr", addr)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("gRPC health server terminated with error", "error", err)
		}
	}()
	return healthServer, nil
}
