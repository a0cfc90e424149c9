package tts

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/voice-translate/model"
	"github.com/mrsingh-rishi/voice-translate/service"
)

// openAIPCMRate is the fixed sample rate of OpenAI's raw PCM output.
const openAIPCMRate = 24000

// OpenAIClient synthesizes speech with the OpenAI speech endpoint.
type OpenAIClient struct {
	APIKey   string
	Voice    string
	Model    openai.SpeechModel
	client   *openai.Client
	endpoint service.Endpoint
}

func NewOpenAIClient(apiKey, voice, baseURL string, httpClient *http.Client) *OpenAIClient {
	if strings.TrimSpace(voice) == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &OpenAIClient{
		APIKey:   apiKey,
		Voice:    voice,
		Model:    openai.TTSModel1,
		client:   service.OpenAIClient(apiKey, baseURL, httpClient),
		endpoint: service.Endpoint{Provider: "openai", Stage: model.StageSynthesis},
	}
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) Configured() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return model.MissingCredentials("openai", model.StageSynthesis, "OPENAI_API_KEY")
	}
	return nil
}

func (c *OpenAIClient) Synthesize(ctx context.Context, req Request) (model.SynthesizedAudio, error) {
	if err := c.Configured(); err != nil {
		return model.SynthesizedAudio{}, err
	}
	text, err := validate(req)
	if err != nil {
		return model.SynthesizedAudio{}, err
	}

	voice := c.Voice
	if v := strings.TrimSpace(req.Voice); v != "" {
		voice = v
	}
	out := model.SynthesizedAudio{
		TargetLanguage: req.Language,
		Format:         model.FormatMP3,
		SampleRate:     openAIPCMRate,
		Channels:       model.DefaultChannels,
	}
	format := openai.SpeechResponseFormatMp3
	if req.Format == model.FormatPCM {
		format = openai.SpeechResponseFormatPcm
		out.Format = model.FormatPCM
	}

	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          c.Model,
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: format,
	})
	if err != nil {
		return model.SynthesizedAudio{}, c.endpoint.Classify(err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return model.SynthesizedAudio{}, model.Transient("openai", model.StageSynthesis, http.StatusOK, errors.Wrap(err, "read audio"))
	}
	if len(audio) == 0 {
		return model.SynthesizedAudio{}, model.Transient("openai", model.StageSynthesis, http.StatusOK, errors.New("empty audio"))
	}
	out.Data = audio
	return out, nil
}
