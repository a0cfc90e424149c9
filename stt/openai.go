package stt

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/voice-translate/model"
	"github.com/mrsingh-rishi/voice-translate/service"
)

// OpenAIClient transcribes chunks with Whisper.
type OpenAIClient struct {
	APIKey   string
	Model    string
	client   *openai.Client
	endpoint service.Endpoint
}

// NewOpenAIClient initializes a Whisper transcriber. baseURL may be empty.
func NewOpenAIClient(apiKey, baseURL string, httpClient *http.Client) *OpenAIClient {
	return &OpenAIClient{
		APIKey:   apiKey,
		Model:    openai.Whisper1,
		client:   service.OpenAIClient(apiKey, baseURL, httpClient),
		endpoint: service.Endpoint{Provider: "openai", Stage: model.StageTranscription},
	}
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) Configured() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return model.MissingCredentials("openai", model.StageTranscription, "OPENAI_API_KEY")
	}
	return nil
}

func (c *OpenAIClient) Transcribe(ctx context.Context, req Request) (model.Transcript, error) {
	if err := c.Configured(); err != nil {
		return model.Transcript{}, err
	}
	if err := validate(req); err != nil {
		return model.Transcript{}, err
	}

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.Model,
		Reader:   bytes.NewReader(req.Audio),
		FilePath: audioFilename(model.NormalizeMime(req.MimeType)),
		Language: strings.TrimSpace(req.Language),
	})
	if err != nil {
		return model.Transcript{}, c.endpoint.Classify(err)
	}
	return model.Transcript{Text: strings.TrimSpace(resp.Text), SourceLanguage: req.Language}, nil
}
