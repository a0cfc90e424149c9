package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/voice-translate/model"
)

func TestEndpointPostClassifiesStatus(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Key") != "k" {
			t.Errorf("expected header to be forwarded")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte("body"))
	}))
	defer srv.Close()

	e := Endpoint{Provider: "fake", Stage: model.StageTranslation, Client: srv.Client()}
	body, err := e.Post(context.Background(), srv.URL, nil, map[string]string{"X-Key": "k"})
	if err != nil || string(body) != "body" {
		t.Fatalf("expected body, got %q err=%v", body, err)
	}

	status = http.StatusBadGateway
	_, err = e.Post(context.Background(), srv.URL, nil, map[string]string{"X-Key": "k"})
	if !errors.Is(err, model.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}

	status = http.StatusUnauthorized
	_, err = e.Post(context.Background(), srv.URL, nil, map[string]string{"X-Key": "k"})
	if !model.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestEndpointQuotaRejectionIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":{"status":"quota_exceeded","message":"This request exceeds your quota."}}`))
	}))
	defer srv.Close()

	e := Endpoint{Provider: "elevenlabs", Stage: model.StageSynthesis, Client: srv.Client()}
	_, err := e.Post(context.Background(), srv.URL, nil, nil)
	if model.IsConfiguration(err) || !errors.Is(err, model.ErrTransient) {
		t.Fatalf("expected quota rejection to be transient, got %v", err)
	}
	var perr *model.ProviderError
	if !errors.As(err, &perr) || perr.Status != http.StatusUnauthorized {
		t.Fatalf("expected status 401 to be kept, got %v", err)
	}
	if err := e.Classify(&openai.APIError{HTTPStatusCode: 403, Message: "rate limit reached"}); model.IsConfiguration(err) {
		t.Fatalf("expected rate-limited 403 to be transient, got %v", err)
	}
}

func TestEndpointNetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	e := Endpoint{Provider: "fake", Stage: model.StageSynthesis}
	_, err := e.Post(context.Background(), url, nil, nil)
	var perr *model.ProviderError
	if !errors.As(err, &perr) || perr.Status != 0 || !errors.Is(err, model.ErrTransient) {
		t.Fatalf("expected transient network error, got %v", err)
	}
}

func TestClassifyOpenAIErrors(t *testing.T) {
	e := Endpoint{Provider: "openai", Stage: model.StageTranscription}
	if err := e.Classify(&openai.APIError{HTTPStatusCode: 401, Message: "bad key"}); !model.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if err := e.Classify(&openai.APIError{HTTPStatusCode: 500, Message: "boom"}); !errors.Is(err, model.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if err := e.Classify(context.DeadlineExceeded); !errors.Is(err, model.ErrTransient) {
		t.Fatalf("expected timeout to be transient, got %v", err)
	}
	if e.Classify(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
