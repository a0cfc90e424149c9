package stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-translate/model"
	"github.com/mrsingh-rishi/voice-translate/service"
)

const (
	deepgramURL   = "https://api.deepgram.com/v1/listen"
	deepgramModel = "nova-3"
)

var deepgramLanguages = []string{"en", "ta", "hi", "kn"}

// deepgramLanguage maps the hint onto a language nova-3 is configured for,
// falling back to English.
func deepgramLanguage(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	for _, lang := range deepgramLanguages {
		if model.SameLanguage(hint, lang) {
			return lang
		}
	}
	return "en"
}

// DeepgramClient transcribes chunks with Deepgram's pre-recorded endpoint.
type DeepgramClient struct {
	APIKey   string
	Model    string
	Endpoint string
	endpoint service.Endpoint
}

// NewDeepgramClient initializes a new DeepgramClient. httpClient may be nil.
func NewDeepgramClient(apiKey string, httpClient *http.Client) *DeepgramClient {
	return &DeepgramClient{
		APIKey:   apiKey,
		Model:    deepgramModel,
		Endpoint: deepgramURL,
		endpoint: service.Endpoint{Provider: "deepgram", Stage: model.StageTranscription, Client: httpClient},
	}
}

func (dg *DeepgramClient) Name() string { return "deepgram" }

func (dg *DeepgramClient) Configured() error {
	if strings.TrimSpace(dg.APIKey) == "" {
		return model.MissingCredentials("deepgram", model.StageTranscription, "DEEPGRAM_API_KEY")
	}
	return nil
}

func (dg *DeepgramClient) Transcribe(ctx context.Context, req Request) (model.Transcript, error) {
	if err := dg.Configured(); err != nil {
		return model.Transcript{}, err
	}
	if err := validate(req); err != nil {
		return model.Transcript{}, err
	}

	listenURL, err := url.Parse(dg.Endpoint)
	if err != nil {
		return model.Transcript{}, errors.Wrap(err, "deepgram: parse endpoint")
	}
	query := listenURL.Query()
	query.Set("model", dg.Model)
	query.Set("smart_format", "true")
	query.Set("language", deepgramLanguage(req.Language))
	listenURL.RawQuery = query.Encode()

	body, err := dg.endpoint.Post(ctx, listenURL.String(), req.Audio, map[string]string{
		"Authorization": "Token " + dg.APIKey,
		"Content-Type":  model.NormalizeMime(req.MimeType),
	})
	if err != nil {
		return model.Transcript{}, err
	}

	text, err := TranscriptFromDeepgram(body)
	if err != nil {
		return model.Transcript{}, model.Transient("deepgram", model.StageTranscription, http.StatusOK, err)
	}
	return model.Transcript{Text: text, SourceLanguage: req.Language}, nil
}

type deepgramAlternatives struct {
	Alternatives []struct {
		Transcript string `json:"transcript"`
	} `json:"alternatives"`
}

func (c *deepgramAlternatives) best() (string, bool) {
	if c == nil || len(c.Alternatives) == 0 {
		return "", false
	}
	return strings.TrimSpace(c.Alternatives[0].Transcript), true
}

// TranscriptFromDeepgram extracts the best alternative from a Deepgram
// response. Pre-recorded responses group alternatives by channel under
// results.channels, some proxies return a single results.channel, and
// streaming payloads carry a top-level channel. No alternative yields "".
func TranscriptFromDeepgram(body []byte) (string, error) {
	var grouped struct {
		Results struct {
			Channels []*deepgramAlternatives `json:"channels"`
			Channel  *deepgramAlternatives   `json:"channel"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &grouped); err != nil {
		return "", errors.Wrap(err, "decode deepgram response")
	}
	if len(grouped.Results.Channels) > 0 {
		if text, ok := grouped.Results.Channels[0].best(); ok {
			return text, nil
		}
	}
	if text, ok := grouped.Results.Channel.best(); ok {
		return text, nil
	}

	var flat api.MessageResponse
	if err := json.Unmarshal(body, &flat); err == nil && len(flat.Channel.Alternatives) > 0 {
		return strings.TrimSpace(flat.Channel.Alternatives[0].Transcript), nil
	}
	return "", nil
}
