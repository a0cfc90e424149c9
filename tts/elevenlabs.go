package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-translate/model"
	"github.com/mrsingh-rishi/voice-translate/service"
)

const (
	elevenTTSURL       = "https://api.elevenlabs.io/v1/text-to-speech"
	elevenTTSModel     = "eleven_multilingual_v2"
	DefaultElevenVoice = "21m00Tcm4TlvDq8ikWAM"
)

type ElevenLabsClient struct {
	APIKey   string
	VoiceId  string
	ModelId  string
	Endpoint string
	endpoint service.Endpoint
}

func NewElevenLabsClient(apiKey string, voiceId string, httpClient *http.Client) *ElevenLabsClient {
	if strings.TrimSpace(voiceId) == "" {
		voiceId = DefaultElevenVoice
	}
	return &ElevenLabsClient{
		APIKey:   apiKey,
		VoiceId:  strings.TrimSpace(voiceId),
		ModelId:  elevenTTSModel,
		Endpoint: elevenTTSURL,
		endpoint: service.Endpoint{Provider: "elevenlabs", Stage: model.StageSynthesis, Client: httpClient},
	}
}

func (client *ElevenLabsClient) Name() string { return "elevenlabs" }

func (client *ElevenLabsClient) Configured() error {
	if strings.TrimSpace(client.APIKey) == "" {
		return model.MissingCredentials("elevenlabs", model.StageSynthesis, "ELEVEN_API_KEY")
	}
	return nil
}

// Synthesize requests MP3 for network delivery or raw 24 kHz PCM for output
// tracks.
func (client *ElevenLabsClient) Synthesize(ctx context.Context, req Request) (model.SynthesizedAudio, error) {
	if err := client.Configured(); err != nil {
		return model.SynthesizedAudio{}, err
	}
	text, err := validate(req)
	if err != nil {
		return model.SynthesizedAudio{}, err
	}

	voice := client.VoiceId
	if v := strings.TrimSpace(req.Voice); v != "" {
		voice = v
	}
	out := model.SynthesizedAudio{TargetLanguage: req.Language, Format: req.Format, Channels: model.DefaultChannels}
	outputFormat := "mp3_44100_128"
	out.SampleRate = 44100
	if req.Format == model.FormatPCM {
		outputFormat = fmt.Sprintf("pcm_%d", model.DefaultSampleRate)
		out.SampleRate = model.DefaultSampleRate
	} else {
		out.Format = model.FormatMP3
	}

	base, err := url.Parse(fmt.Sprintf("%s/%s", client.Endpoint, url.PathEscape(voice)))
	if err != nil {
		return model.SynthesizedAudio{}, errors.Wrap(err, "elevenlabs: parse endpoint")
	}
	q := base.Query()
	q.Set("output_format", outputFormat)
	base.RawQuery = q.Encode()

	bodyBytes, err := json.Marshal(map[string]interface{}{
		"text":     text,
		"model_id": client.ModelId,
	})
	if err != nil {
		return model.SynthesizedAudio{}, errors.Wrap(err, "elevenlabs: marshal payload")
	}

	audio, err := client.endpoint.Post(ctx, base.String(), bodyBytes, map[string]string{
		"xi-api-key":   client.APIKey,
		"Content-Type": "application/json",
	})
	if err != nil {
		return model.SynthesizedAudio{}, err
	}
	if len(audio) == 0 {
		return model.SynthesizedAudio{}, model.Transient("elevenlabs", model.StageSynthesis, http.StatusOK, errors.New("empty audio"))
	}
	out.Data = audio
	return out, nil
}
