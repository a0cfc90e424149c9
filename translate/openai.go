package translate

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/voice-translate/model"
	"github.com/mrsingh-rishi/voice-translate/service"
)

// OpenAIClient translates with a chat completion per target language.
type OpenAIClient struct {
	APIKey   string
	Model    string
	client   *openai.Client
	endpoint service.Endpoint
}

func NewOpenAIClient(apiKey, baseURL string, httpClient *http.Client) *OpenAIClient {
	return &OpenAIClient{
		APIKey:   apiKey,
		Model:    openai.GPT4oMini,
		client:   service.OpenAIClient(apiKey, baseURL, httpClient),
		endpoint: service.Endpoint{Provider: "openai", Stage: model.StageTranslation},
	}
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) Configured() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return model.MissingCredentials("openai", model.StageTranslation, "OPENAI_API_KEY")
	}
	return nil
}

func (c *OpenAIClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	if err := c.Configured(); err != nil {
		return "", err
	}
	if err := validate(text); err != nil {
		return "", err
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction(source, target)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.2,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", c.endpoint.Classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", model.Transient("openai", model.StageTranslation, http.StatusOK, errors.New("no choices returned"))
	}
	translated := strings.TrimSpace(resp.Choices[0].Message.Content)
	if translated == "" {
		return "", model.Transient("openai", model.StageTranslation, http.StatusOK, errors.New("empty translation"))
	}
	return translated, nil
}
