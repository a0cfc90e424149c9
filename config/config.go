package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultListenAddr     = ":3000"
	DefaultLogLevel       = "info"
	DefaultSTTProvider    = "deepgram"
	DefaultTranslator     = "gemini"
	DefaultTTSProvider    = "elevenlabs"
	DefaultElevenVoiceID  = "21m00Tcm4TlvDq8ikWAM"
	DefaultOpenAIVoice    = "alloy"
	DefaultChunkWindow    = 2 * time.Second
	DefaultAdapterTimeout = 15 * time.Second
	DefaultIdleTimeout    = 5 * time.Minute
	DefaultSynthesis      = "all"
	DefaultOTelExporter   = "none"
)

// DefaultCaptionLanguages are the languages served by the caption endpoint.
var DefaultCaptionLanguages = []string{"en", "hi", "ta"}

// Config holds the service configuration.
type Config struct {
	ListenAddr     string `yaml:"listen_addr"`
	GRPCHealthAddr string `yaml:"grpc_health_addr"`
	LogLevel       string `yaml:"log_level"`
	LogExporter    string `yaml:"log_exporter"`
	// OTelExporter selects where spans, metrics and otel logs go:
	// none, stdout or otlp.
	OTelExporter string `yaml:"otel_exporter"`

	STTProvider       string `yaml:"stt_provider"`
	TranslateProvider string `yaml:"translate_provider"`
	TTSProvider       string `yaml:"tts_provider"`

	// Credentials stay optional here; a missing key is reported as a
	// configuration error by the adapter that needs it.
	DeepgramAPIKey string `yaml:"-"`
	ElevenAPIKey   string `yaml:"-"`
	GeminiAPIKey   string `yaml:"-"`
	OpenAIAPIKey   string `yaml:"-"`

	ElevenVoiceID string `yaml:"eleven_voice_id"`
	OpenAIVoice   string `yaml:"openai_voice"`

	ChunkWindow      time.Duration `yaml:"chunk_window"`
	AdapterTimeout   time.Duration `yaml:"adapter_timeout"`
	MaxPendingChunks int           `yaml:"max_pending_chunks"`
	IdleTimeout      time.Duration `yaml:"session_idle_timeout"`
	SynthesisPolicy  string        `yaml:"synthesis_policy"`
	CaptionLanguages []string      `yaml:"caption_languages"`

	LiveKitURL       string `yaml:"livekit_url"`
	LiveKitAPIKey    string `yaml:"-"`
	LiveKitAPISecret string `yaml:"-"`
	AuthSecret       string `yaml:"-"`
}

// Default returns a Config with every default applied.
func Default() Config {
	return Config{
		ListenAddr:        DefaultListenAddr,
		LogLevel:          DefaultLogLevel,
		OTelExporter:      DefaultOTelExporter,
		STTProvider:       DefaultSTTProvider,
		TranslateProvider: DefaultTranslator,
		TTSProvider:       DefaultTTSProvider,
		ElevenVoiceID:     DefaultElevenVoiceID,
		OpenAIVoice:       DefaultOpenAIVoice,
		ChunkWindow:       DefaultChunkWindow,
		AdapterTimeout:    DefaultAdapterTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		SynthesisPolicy:   DefaultSynthesis,
		CaptionLanguages:  append([]string(nil), DefaultCaptionLanguages...),
	}
}

// LiveKitEnabled reports whether room data packets can be sent.
func (c Config) LiveKitEnabled() bool {
	return c.LiveKitURL != "" && c.LiveKitAPIKey != "" && c.LiveKitAPISecret != ""
}

// TokenSecret is the HMAC secret used to verify bearer tokens, if any.
func (c Config) TokenSecret() string {
	if c.AuthSecret != "" {
		return c.AuthSecret
	}
	return c.LiveKitAPISecret
}

// Validate applies defaults and rejects unknown providers or out-of-range values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("config: listen address is required")
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.OTelExporter = strings.ToLower(strings.TrimSpace(c.OTelExporter))
	switch c.OTelExporter {
	case "", "none":
		c.OTelExporter = "none"
	case "stdout", "otlp":
	default:
		return errors.Errorf("config: unknown otel exporter %q", c.OTelExporter)
	}
	if strings.EqualFold(strings.TrimSpace(c.LogExporter), "otel") && c.OTelExporter == "none" {
		return errors.New("config: log exporter otel needs OTEL_EXPORTER set to stdout or otlp")
	}
	c.STTProvider = strings.ToLower(c.STTProvider)
	switch c.STTProvider {
	case "deepgram", "elevenlabs", "openai":
	default:
		return errors.Errorf("config: unknown stt provider %q", c.STTProvider)
	}
	c.TranslateProvider = strings.ToLower(c.TranslateProvider)
	switch c.TranslateProvider {
	case "gemini", "openai":
	default:
		return errors.Errorf("config: unknown translate provider %q", c.TranslateProvider)
	}
	c.TTSProvider = strings.ToLower(c.TTSProvider)
	switch c.TTSProvider {
	case "elevenlabs", "openai":
	default:
		return errors.Errorf("config: unknown tts provider %q", c.TTSProvider)
	}
	c.SynthesisPolicy = strings.ToLower(c.SynthesisPolicy)
	switch c.SynthesisPolicy {
	case "all", "primary", "every", "none":
	default:
		return errors.Errorf("config: unknown synthesis policy %q", c.SynthesisPolicy)
	}
	if c.ChunkWindow < 100*time.Millisecond {
		return errors.Errorf("config: chunk window must be >= 100ms, got %s", c.ChunkWindow)
	}
	if c.AdapterTimeout <= 0 {
		return errors.Errorf("config: adapter timeout must be > 0, got %s", c.AdapterTimeout)
	}
	if c.MaxPendingChunks < 0 {
		return errors.Errorf("config: max pending chunks must be >= 0, got %d", c.MaxPendingChunks)
	}
	if c.IdleTimeout < 0 {
		return errors.Errorf("config: idle timeout must be >= 0, got %s", c.IdleTimeout)
	}
	if len(c.CaptionLanguages) == 0 {
		c.CaptionLanguages = append([]string(nil), DefaultCaptionLanguages...)
	}
	return nil
}
