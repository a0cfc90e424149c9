package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/golang/mock/gomock"
	gws "github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-translate/mocks"
	"github.com/mrsingh-rishi/voice-translate/model"
	"github.com/mrsingh-rishi/voice-translate/output"
	"github.com/mrsingh-rishi/voice-translate/pipeline"
	"github.com/mrsingh-rishi/voice-translate/types"
	"github.com/mrsingh-rishi/voice-translate/workers"
)

const testSecret = "s3cret"

type harness struct {
	stt        *mocks.MockTranscriber
	tr         *mocks.MockTranslator
	synth      *mocks.MockSynthesizer
	dispatcher *workers.Dispatcher
	hub        *output.Hub
	server     *Server
}

func newHarness(t *testing.T, secret string) *harness {
	ctrl := gomock.NewController(t)
	h := &harness{
		stt:   mocks.NewMockTranscriber(ctrl),
		tr:    mocks.NewMockTranslator(ctrl),
		synth: mocks.NewMockSynthesizer(ctrl),
		hub:   output.NewHub(nil),
	}
	h.stt.EXPECT().Name().Return("fake-stt").AnyTimes()
	h.tr.EXPECT().Name().Return("fake-translate").AnyTimes()
	h.synth.EXPECT().Name().Return("fake-tts").AnyTimes()

	runner := pipeline.New(pipeline.Options{
		Transcriber: h.stt,
		Translator:  h.tr,
		Synthesizer: h.synth,
		Timeout:     time.Second,
	})
	h.dispatcher = workers.NewDispatcher(workers.Options{Processor: runner})
	t.Cleanup(h.dispatcher.Stop)
	h.server = New(Options{
		Runner:           runner,
		Dispatcher:       h.dispatcher,
		Hub:              h.hub,
		CaptionLanguages: []string{"en", "hi", "ta"},
		Synthesis:        pipeline.SynthesizeAll,
		ChunkWindow:      30 * time.Millisecond,
		RequestTimeout:   2 * time.Second,
		TokenSecret:      secret,
	})
	return h
}

func (h *harness) configured() {
	h.stt.EXPECT().Configured().Return(nil).AnyTimes()
	h.tr.EXPECT().Configured().Return(nil).AnyTimes()
	h.synth.EXPECT().Configured().Return(nil).AnyTimes()
}

func (h *harness) do(t *testing.T, method, path string, body interface{}, token string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.server.App().Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() returned error: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func token(t *testing.T, subject string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func audio() string { return base64.StdEncoding.EncodeToString([]byte("webm-bytes")) }

func processRequest(targets ...string) types.ProcessRequest {
	return types.ProcessRequest{
		SpeakerID:       "spk-1",
		SourceLanguage:  "en",
		TargetLanguages: targets,
		Audio:           audio(),
		AudioFormat:     "audio/webm;codecs=opus",
	}
}

func TestProcessTranslatesAndSynthesizes(t *testing.T) {
	h := newHarness(t, "")
	h.configured()
	h.stt.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return(model.Transcript{Text: "hello everyone"}, nil)
	h.tr.EXPECT().Translate(gomock.Any(), "hello everyone", "en", "hi").Return("sabko namaste", nil)
	h.synth.EXPECT().Synthesize(gomock.Any(), gomock.Any()).
		Return(model.SynthesizedAudio{TargetLanguage: "hi", Format: model.FormatMP3, Data: []byte("mp3")}, nil)

	status, body := h.do(t, http.MethodPost, "/api/translation/process", processRequest("en", "hi"), "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var resp types.ProcessResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if !resp.OK || resp.Transcript != "hello everyone" || len(resp.Results) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	en, hi := resp.Results[0], resp.Results[1]
	if en.TargetLanguage != "en" || en.Text != "hello everyone" || en.Audio != "" {
		t.Fatalf("unexpected en result %+v", en)
	}
	if hi.TargetLanguage != "hi" || hi.Text != "sabko namaste" || hi.Audio != base64.StdEncoding.EncodeToString([]byte("mp3")) {
		t.Fatalf("unexpected hi result %+v", hi)
	}
}

func TestProcessAcceptsLegacyFieldNames(t *testing.T) {
	h := newHarness(t, "")
	h.configured()
	h.stt.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return(model.Transcript{Text: "   "}, nil)

	status, body := h.do(t, http.MethodPost, "/api/translation/process", map[string]interface{}{
		"speakerId":   "spk-1",
		"audioBase64": audio(),
		"sourceLang":  "en",
		"targetLangs": []string{"hi"},
	}, "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var resp types.ProcessResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Fatalf("blank transcript must yield no results, got %+v", resp.Results)
	}
}

func TestProcessMissingCredentialsMakesNoCalls(t *testing.T) {
	h := newHarness(t, "")
	h.stt.EXPECT().Configured().Return(model.MissingCredentials("deepgram", model.StageTranscription, "DEEPGRAM_API_KEY"))

	status, body := h.do(t, http.MethodPost, "/api/translation/process", processRequest("hi"), "")
	if status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", status, body)
	}
	var resp types.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.OK || resp.Error == "" {
		t.Fatalf("unexpected error response %+v", resp)
	}
}

func TestProcessValidationErrors(t *testing.T) {
	h := newHarness(t, "")
	h.configured()

	noSpeaker := processRequest("hi")
	noSpeaker.SpeakerID = ""
	badAudio := processRequest("hi")
	badAudio.Audio = "%%%not-base64"
	noTargets := processRequest(" ", "")
	badPolicy := processRequest("hi")
	badPolicy.Synthesis = "sometimes"
	noSource := processRequest("en")
	noSource.SourceLanguage = "   "

	for name, req := range map[string]types.ProcessRequest{
		"missing speaker": noSpeaker,
		"bad audio":       badAudio,
		"no targets":      noTargets,
		"bad policy":      badPolicy,
		"missing source":  noSource,
	} {
		status, body := h.do(t, http.MethodPost, "/api/translation/process", req, "")
		if status != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", name, status, body)
		}
	}
}

func TestProcessTranscriptionFailureIsBadGateway(t *testing.T) {
	h := newHarness(t, "")
	h.configured()
	h.stt.EXPECT().Transcribe(gomock.Any(), gomock.Any()).
		Return(model.Transcript{}, model.Transient("deepgram", model.StageTranscription, 503, errors.New("unavailable")))

	status, body := h.do(t, http.MethodPost, "/api/translation/process", processRequest("hi"), "")
	if status != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", status, body)
	}
}

func TestCaptionFillsEveryCaptionLanguage(t *testing.T) {
	h := newHarness(t, "")
	h.configured()
	h.stt.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return(model.Transcript{Text: "vanakkam"}, nil)
	h.tr.EXPECT().Translate(gomock.Any(), "vanakkam", "ta", "en").Return("hello", nil)
	h.tr.EXPECT().Translate(gomock.Any(), "vanakkam", "ta", "hi").Return("", errors.New("quota"))

	status, body := h.do(t, http.MethodPost, "/api/room-caption/process", map[string]string{
		"audioBase64": audio(),
		"sourceLang":  "ta",
	}, "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var resp types.CaptionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	want := map[string]string{"en": "hello", "hi": "vanakkam", "ta": "vanakkam"}
	for lang, text := range want {
		if resp.Translations[lang] != text {
			t.Fatalf("expected %s=%q, got %q", lang, text, resp.Translations[lang])
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for h.dispatcher.Snapshot().Sessions != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("anonymous caption sessions must not linger")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCaptionBlankTranscript(t *testing.T) {
	h := newHarness(t, "")
	h.configured()
	h.stt.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return(model.Transcript{Text: ""}, nil)

	status, body := h.do(t, http.MethodPost, "/api/room-caption/process", map[string]string{
		"audio":          audio(),
		"sourceLanguage": "en",
	}, "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var resp types.CaptionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Transcript != "" || len(resp.Translations) != 3 {
		t.Fatalf("unexpected response %+v", resp)
	}
	for lang, text := range resp.Translations {
		if text != "" {
			t.Fatalf("expected empty caption for %s, got %q", lang, text)
		}
	}
}

func TestTranscriptionOnly(t *testing.T) {
	h := newHarness(t, "")
	h.configured()
	h.stt.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return(model.Transcript{Text: "namaste"}, nil)

	status, body := h.do(t, http.MethodPost, "/api/transcription/process", map[string]string{
		"audioBase64": audio(),
		"sourceLang":  "hi",
	}, "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var resp types.TranscriptionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if !resp.OK || resp.Transcript != "namaste" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestSchemaDescribesProcessRequest(t *testing.T) {
	h := newHarness(t, "")
	status, body := h.do(t, http.MethodGet, "/api/translation/schema", nil, "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var schema struct {
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	if err := json.Unmarshal(body, &schema); err != nil {
		t.Fatalf("invalid schema: %v", err)
	}
	for _, field := range []string{"speakerId", "targetLanguages", "audio"} {
		if _, ok := schema.Properties[field]; !ok {
			t.Fatalf("schema is missing %s", field)
		}
	}
	if len(schema.Required) == 0 {
		t.Fatalf("schema has no required fields")
	}
}

func TestHealthReportsDispatcher(t *testing.T) {
	h := newHarness(t, testSecret)
	status, body := h.do(t, http.MethodGet, "/healthz", nil, "")
	if status != http.StatusOK {
		t.Fatalf("health must not require a token, got %d", status)
	}
	var resp struct {
		OK         bool          `json:"ok"`
		Dispatcher workers.Stats `json:"dispatcher"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || !resp.OK {
		t.Fatalf("unexpected health body %s", body)
	}
}

func TestTokenChecks(t *testing.T) {
	h := newHarness(t, testSecret)
	h.configured()

	if status, _ := h.do(t, http.MethodDelete, "/api/speakers/spk-1", nil, ""); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	if status, _ := h.do(t, http.MethodDelete, "/api/speakers/spk-1", nil, "garbage"); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for malformed token, got %d", status)
	}
	if status, _ := h.do(t, http.MethodDelete, "/api/speakers/spk-1", nil, token(t, "someone-else")); status != http.StatusForbidden {
		t.Fatalf("expected 403 for another speaker's token, got %d", status)
	}
	if status, _ := h.do(t, http.MethodPost, "/api/translation/process", processRequest("hi"), token(t, "someone-else")); status != http.StatusForbidden {
		t.Fatalf("expected 403 for process with another speaker's token, got %d", status)
	}
	status, body := h.do(t, http.MethodDelete, "/api/speakers/spk-1", nil, token(t, "spk-1"))
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
}

func listen(t *testing.T, h *harness) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = h.server.App().Listener(ln) }()
	t.Cleanup(func() { _ = h.server.Shutdown(time.Second) })
	return ln.Addr().String()
}

func dial(t *testing.T, url string) *gws.Conn {
	t.Helper()
	var conn *gws.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, _, err = gws.DefaultDialer.Dial(url, nil)
		if err == nil {
			return conn
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("dial %s: %v", url, err)
	return nil
}

func TestRoomSocketReceivesMessagesAndFrames(t *testing.T) {
	h := newHarness(t, "")
	addr := listen(t, h)
	conn := dial(t, "ws://"+addr+"/ws/rooms/room-1?lang=hi")
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.hub.Count("room-1") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("listener never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := h.hub.Send(context.Background(), "room-1", []byte(`{"type":"translation"}`)); err != nil {
		t.Fatalf("Send() returned error: %v", err)
	}
	h.hub.SendFrame("room-1", "hi", []byte{1, 2, 3, 4})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil || kind != gws.TextMessage || string(data) != `{"type":"translation"}` {
		t.Fatalf("unexpected text frame kind=%d data=%s err=%v", kind, data, err)
	}
	kind, data, err = conn.ReadMessage()
	if err != nil || kind != gws.BinaryMessage || len(data) != 4 {
		t.Fatalf("unexpected audio frame kind=%d len=%d err=%v", kind, len(data), err)
	}
}

func TestStreamSocketAcksChunks(t *testing.T) {
	h := newHarness(t, "")
	h.configured()
	h.stt.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return(model.Transcript{Text: "hello"}, nil).MinTimes(1)
	h.tr.EXPECT().Translate(gomock.Any(), "hello", "en", "hi").Return("namaste", nil).MinTimes(1)

	addr := listen(t, h)
	conn := dial(t, "ws://"+addr+"/ws/stream")
	defer conn.Close()

	start := types.StreamEvent{Event: "start", Start: &types.StreamStart{
		RoomID:          "room-1",
		SpeakerID:       "spk-1",
		SourceLanguage:  "en",
		TargetLanguages: []string{"hi"},
		AudioFormat:     "audio/l16",
		SampleRate:      16000,
		Channels:        1,
		Synthesis:       "none",
	}}
	if err := conn.WriteJSON(start); err != nil {
		t.Fatalf("write start: %v", err)
	}
	if err := conn.WriteMessage(gws.BinaryMessage, make([]byte, 640)); err != nil {
		t.Fatalf("write media: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var ack types.StreamAck
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if ack.Event != "ack" || ack.Outcome == nil || ack.Outcome.Results[0].Text != "namaste" {
		t.Fatalf("unexpected ack %+v", ack)
	}
	_ = conn.WriteJSON(types.StreamEvent{Event: "stop"})
}
