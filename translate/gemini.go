package translate

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
	geminiBase  = "https://generativelanguage.googleapis.com/v1beta/models"
	geminiModel = "gemini-3-flash"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction geminiContent   `json:"systemInstruction"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		MaxOutputTokens int     `json:"maxOutputTokens"`
		Temperature     float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GeminiClient translates with the Gemini generateContent REST API.
type GeminiClient struct {
	APIKey   string
	Model    string
	BaseURL  string
	endpoint service.Endpoint
}

func NewGeminiClient(apiKey string, httpClient *http.Client) *GeminiClient {
	return &GeminiClient{
		APIKey:   apiKey,
		Model:    geminiModel,
		BaseURL:  geminiBase,
		endpoint: service.Endpoint{Provider: "gemini", Stage: model.StageTranslation, Client: httpClient},
	}
}

func (g *GeminiClient) Name() string { return "gemini" }

func (g *GeminiClient) Configured() error {
	if strings.TrimSpace(g.APIKey) == "" {
		return model.MissingCredentials("gemini", model.StageTranslation, "GEMINI_API_KEY")
	}
	return nil
}

func (g *GeminiClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	if err := g.Configured(); err != nil {
		return "", err
	}
	if err := validate(text); err != nil {
		return "", err
	}

	var payload geminiRequest
	payload.SystemInstruction = geminiContent{Parts: []geminiPart{{Text: systemInstruction(source, target)}}}
	payload.Contents = []geminiContent{{Parts: []geminiPart{{Text: text}}}}
	payload.GenerationConfig.MaxOutputTokens = 1024
	payload.GenerationConfig.Temperature = 0.2
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "gemini: marshal payload")
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", g.BaseURL, g.Model, url.QueryEscape(g.APIKey))
	resp, err := g.endpoint.Post(ctx, endpoint, body, map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return "", err
	}

	var data geminiResponse
	if err := json.Unmarshal(resp, &data); err != nil {
		return "", model.Transient("gemini", model.StageTranslation, http.StatusOK, errors.Wrap(err, "decode response"))
	}
	var translated string
	if len(data.Candidates) > 0 && len(data.Candidates[0].Content.Parts) > 0 {
		translated = strings.TrimSpace(data.Candidates[0].Content.Parts[0].Text)
	}
	if translated == "" {
		return "", model.Transient("gemini", model.StageTranslation, http.StatusOK, errors.New("empty translation"))
	}
	return translated, nil
}
