package stt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-translate/model"
)

func TestTranscriptFromDeepgramShapes(t *testing.T) {
	cases := map[string]string{
		"grouped":  `{"results":{"channels":[{"alternatives":[{"transcript":" hello everyone "}]}]}}`,
		"nested":   `{"results":{"channel":{"alternatives":[{"transcript":"hello everyone"}]}}}`,
		"flat":     `{"type":"Results","channel":{"alternatives":[{"transcript":"hello everyone"}]}}`,
		"empty":    `{"results":{"channels":[{"alternatives":[]}]}}`,
		"no-shape": `{"metadata":{}}`,
	}
	for name, body := range cases {
		got, err := TranscriptFromDeepgram([]byte(body))
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		want := "hello everyone"
		if name == "empty" || name == "no-shape" {
			want = ""
		}
		if got != want {
			t.Fatalf("%s: expected %q, got %q", name, want, got)
		}
	}
	if _, err := TranscriptFromDeepgram([]byte("not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestDeepgramTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token dg-key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != model.MimeOgg {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		q := r.URL.Query()
		if q.Get("model") != "nova-3" || q.Get("language") != "hi" || q.Get("smart_format") != "true" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "audio" {
			t.Errorf("unexpected body %q", body)
		}
		_, _ = w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"namaste"}]}]}}`))
	}))
	defer srv.Close()

	dg := NewDeepgramClient("dg-key", srv.Client())
	dg.Endpoint = srv.URL
	got, err := dg.Transcribe(context.Background(), Request{Audio: []byte("audio"), MimeType: "audio/ogg;codecs=opus", Language: "hi-IN"})
	if err != nil {
		t.Fatalf("Transcribe() returned error: %v", err)
	}
	if got.Text != "namaste" {
		t.Fatalf("expected namaste, got %q", got.Text)
	}
}

func TestDeepgramLanguageFallsBackToEnglish(t *testing.T) {
	if got := deepgramLanguage("fr"); got != "en" {
		t.Fatalf("expected en, got %s", got)
	}
	if got := deepgramLanguage("kn"); got != "kn" {
		t.Fatalf("expected kn, got %s", got)
	}
}

func TestMissingCredentialsAreConfigurationErrors(t *testing.T) {
	transcribers := []Transcriber{
		NewDeepgramClient("", nil),
		NewElevenLabsClient(" ", nil),
		NewOpenAIClient("", "", nil),
	}
	for _, tr := range transcribers {
		_, err := tr.Transcribe(context.Background(), Request{Audio: []byte("a")})
		if !model.IsConfiguration(err) {
			t.Fatalf("%s: expected configuration error, got %v", tr.Name(), err)
		}
	}
}

func TestEmptyAudioIsValidationError(t *testing.T) {
	_, err := NewDeepgramClient("k", nil).Transcribe(context.Background(), Request{})
	if !model.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeepgramServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dg := NewDeepgramClient("k", srv.Client())
	dg.Endpoint = srv.URL
	_, err := dg.Transcribe(context.Background(), Request{Audio: []byte("a")})
	if !errors.Is(err, model.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestElevenLabsTranscribe(t *testing.T) {
	body := `{"text":"  vanakkam  "}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "el-key" {
			t.Errorf("missing api key header")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			return
		}
		if r.FormValue("model_id") != "scribe_v2" || r.FormValue("language_code") != "ta" {
			t.Errorf("unexpected form %v", r.MultipartForm.Value)
		}
		_, fh, err := r.FormFile("file")
		if err != nil || fh.Filename != "audio.webm" {
			t.Errorf("unexpected file part %v %v", fh, err)
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewElevenLabsClient("el-key", srv.Client())
	c.Endpoint = srv.URL
	got, err := c.Transcribe(context.Background(), Request{Audio: []byte("a"), Language: "ta"})
	if err != nil || got.Text != "vanakkam" {
		t.Fatalf("expected vanakkam, got %q err=%v", got.Text, err)
	}

	body = `{"words":[{"text":"hello"},{"text":"there"}]}`
	got, err = c.Transcribe(context.Background(), Request{Audio: []byte("a"), Language: "ta"})
	if err != nil || got.Text != "hello there" {
		t.Fatalf("expected joined words, got %q err=%v", got.Text, err)
	}
}

func TestOpenAITranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer oa-key" {
			t.Errorf("unexpected auth header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" hello everyone "}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("oa-key", srv.URL+"/v1", srv.Client())
	got, err := c.Transcribe(context.Background(), Request{Audio: []byte("a"), MimeType: model.MimeWebM})
	if err != nil || got.Text != "hello everyone" {
		t.Fatalf("expected transcript, got %q err=%v", got.Text, err)
	}
}
