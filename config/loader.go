package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the optional YAML config file.
const ConfigFileEnv = "VOICE_TRANSLATE_CONFIG"

// Loader loads configuration from dotenv files, an optional YAML file and the
// environment. Tests can override Lookup and ReadFile.
type Loader struct {
	Lookup   func(string) (string, bool)
	ReadFile func(string) ([]byte, error)
	// EnvFiles are dotenv files consulted for keys missing from Lookup.
	// Missing files are ignored.
	EnvFiles []string
}

// Load resolves, validates and returns the configuration.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	if l.ReadFile == nil {
		l.ReadFile = os.ReadFile
	}
	if l.EnvFiles == nil {
		l.EnvFiles = []string{".env"}
	}

	lookup, err := l.withDotenv()
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if path, ok := lookup(ConfigFileEnv); ok && strings.TrimSpace(path) != "" {
		if err := l.applyYAML(strings.TrimSpace(path), &cfg); err != nil {
			return Config{}, err
		}
	}

	overrideString(lookup, "LISTEN_ADDR", &cfg.ListenAddr)
	overrideString(lookup, "GRPC_HEALTH_ADDR", &cfg.GRPCHealthAddr)
	overrideString(lookup, "LOG_LEVEL", &cfg.LogLevel)
	overrideString(lookup, "LOG_EXPORTER", &cfg.LogExporter)
	overrideString(lookup, "OTEL_EXPORTER", &cfg.OTelExporter)
	overrideString(lookup, "STT_PROVIDER", &cfg.STTProvider)
	overrideString(lookup, "TRANSLATE_PROVIDER", &cfg.TranslateProvider)
	overrideString(lookup, "TTS_PROVIDER", &cfg.TTSProvider)
	overrideString(lookup, "DEEPGRAM_API_KEY", &cfg.DeepgramAPIKey)
	overrideString(lookup, "ELEVEN_API_KEY", &cfg.ElevenAPIKey)
	overrideString(lookup, "GEMINI_API_KEY", &cfg.GeminiAPIKey)
	overrideString(lookup, "OPENAI_API_KEY", &cfg.OpenAIAPIKey)
	overrideString(lookup, "ELEVEN_VOICE_ID", &cfg.ElevenVoiceID)
	overrideString(lookup, "OPENAI_VOICE", &cfg.OpenAIVoice)
	overrideString(lookup, "SYNTHESIS_POLICY", &cfg.SynthesisPolicy)
	overrideString(lookup, "LIVEKIT_URL", &cfg.LiveKitURL)
	overrideString(lookup, "LIVEKIT_API_KEY", &cfg.LiveKitAPIKey)
	overrideString(lookup, "LIVEKIT_API_SECRET", &cfg.LiveKitAPISecret)
	overrideString(lookup, "AUTH_SECRET", &cfg.AuthSecret)

	if err := overrideDuration(lookup, "CHUNK_WINDOW", &cfg.ChunkWindow); err != nil {
		return Config{}, err
	}
	if err := overrideDuration(lookup, "ADAPTER_TIMEOUT", &cfg.AdapterTimeout); err != nil {
		return Config{}, err
	}
	if err := overrideDuration(lookup, "SESSION_IDLE_TIMEOUT", &cfg.IdleTimeout); err != nil {
		return Config{}, err
	}
	if raw, ok := lookup("MAX_PENDING_CHUNKS"); ok && strings.TrimSpace(raw) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return Config{}, errors.Wrap(err, "config: parse MAX_PENDING_CHUNKS")
		}
		cfg.MaxPendingChunks = n
	}
	if raw, ok := lookup("CAPTION_LANGUAGES"); ok && strings.TrimSpace(raw) != "" {
		cfg.CaptionLanguages = splitList(raw)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// withDotenv layers the dotenv files under the primary lookup. Process
// environment always wins.
func (l Loader) withDotenv() (func(string) (string, bool), error) {
	values := map[string]string{}
	for _, path := range l.EnvFiles {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "config: stat %s", path)
		}
		fileValues, err := godotenv.Read(path)
		if err != nil {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}
		for k, v := range fileValues {
			if _, seen := values[k]; !seen {
				values[k] = v
			}
		}
	}
	primary := l.Lookup
	return func(key string) (string, bool) {
		if v, ok := primary(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	}, nil
}

func (l Loader) applyYAML(path string, cfg *Config) error {
	raw, err := l.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "config: read %s", path)
	}
	// yaml.v3 decodes "2s" style strings into time.Duration fields.
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return errors.Wrapf(err, "config: decode %s", path)
	}
	return nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideDuration(lookup func(string) (string, bool), key string, target *time.Duration) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return errors.Wrapf(err, "config: parse %s", key)
	}
	*target = d
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
