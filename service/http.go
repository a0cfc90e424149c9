// Package service holds the request/response plumbing shared by every
// external collaborator (transcription, translation, synthesis).
package service

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/voice-translate/model"
)

// maxErrorBody bounds how much of a failed response body ends up in errors.
const maxErrorBody = 512

// Endpoint identifies the collaborator a call is made against.
type Endpoint struct {
	Provider string
	Stage    model.Stage
	Client   *http.Client
}

// Do sends req and returns the response body of a 2xx response. Every other
// outcome is returned as a *model.ProviderError.
func (e Endpoint) Do(req *http.Request) ([]byte, error) {
	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, model.Transient(e.Provider, e.Stage, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.Transient(e.Provider, e.Stage, resp.StatusCode, errors.Wrap(err, "read body"))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, e.statusError(resp.StatusCode, body)
	}
	return body, nil
}

// Post builds and sends a POST request with the given headers.
func (e Endpoint) Post(ctx context.Context, url string, body []byte, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "%s: build request", e.Provider)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return e.Do(req)
}

// Classify maps a go-openai error onto the error taxonomy.
func (e Endpoint) Classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return e.statusError(apiErr.HTTPStatusCode, []byte(apiErr.Message))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return e.statusError(reqErr.HTTPStatusCode, reqErr.Body)
	}
	return model.Transient(e.Provider, e.Stage, 0, err)
}

// limitMarkers flag 401/403 bodies that report an exhausted quota or a rate
// limit rather than a bad key.
var limitMarkers = []string{"quota", "rate_limit", "rate limit", "too_many", "limit_exceeded"}

func limited(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, marker := range limitMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// statusError treats rejected credentials like missing ones; anything else,
// including a 401/403 that reports a quota or rate limit, is transient.
func (e Endpoint) statusError(status int, body []byte) error {
	credentials := (status == http.StatusUnauthorized || status == http.StatusForbidden) && !limited(body)
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	cause := errors.New(msg)
	if msg == "" {
		cause = errors.New(http.StatusText(status))
	}
	if credentials {
		return &model.ProviderError{
			Provider: e.Provider,
			Stage:    e.Stage,
			Status:   status,
			Class:    model.ErrConfiguration,
			Err:      cause,
		}
	}
	return model.Transient(e.Provider, e.Stage, status, cause)
}

// OpenAIClient builds a go-openai client that shares the instrumented HTTP
// client. An empty baseURL keeps the public API.
func OpenAIClient(apiKey, baseURL string, httpClient *http.Client) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return openai.NewClientWithConfig(cfg)
}
