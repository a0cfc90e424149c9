package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-translate/model"
	"github.com/mrsingh-rishi/voice-translate/service"
)

const (
	elevenSTTURL   = "https://api.elevenlabs.io/v1/speech-to-text"
	elevenSTTModel = "scribe_v2"
)

// ElevenLabsClient transcribes chunks with ElevenLabs Scribe.
type ElevenLabsClient struct {
	APIKey   string
	ModelID  string
	Endpoint string
	endpoint service.Endpoint
}

func NewElevenLabsClient(apiKey string, httpClient *http.Client) *ElevenLabsClient {
	return &ElevenLabsClient{
		APIKey:   apiKey,
		ModelID:  elevenSTTModel,
		Endpoint: elevenSTTURL,
		endpoint: service.Endpoint{Provider: "elevenlabs", Stage: model.StageTranscription, Client: httpClient},
	}
}

func (c *ElevenLabsClient) Name() string { return "elevenlabs" }

func (c *ElevenLabsClient) Configured() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return model.MissingCredentials("elevenlabs", model.StageTranscription, "ELEVEN_API_KEY")
	}
	return nil
}

func (c *ElevenLabsClient) Transcribe(ctx context.Context, req Request) (model.Transcript, error) {
	if err := c.Configured(); err != nil {
		return model.Transcript{}, err
	}
	if err := validate(req); err != nil {
		return model.Transcript{}, err
	}

	body, contentType, err := scribeForm(c.ModelID, req)
	if err != nil {
		return model.Transcript{}, err
	}
	resp, err := c.endpoint.Post(ctx, c.Endpoint, body, map[string]string{
		"xi-api-key":   c.APIKey,
		"Content-Type": contentType,
	})
	if err != nil {
		return model.Transcript{}, err
	}

	var data struct {
		Text  *string `json:"text"`
		Words []struct {
			Text string `json:"text"`
		} `json:"words"`
	}
	if err := json.Unmarshal(resp, &data); err != nil {
		return model.Transcript{}, model.Transient("elevenlabs", model.StageTranscription, http.StatusOK,
			errors.Wrap(err, "decode response"))
	}

	var text string
	if data.Text != nil {
		text = *data.Text
	} else {
		words := make([]string, 0, len(data.Words))
		for _, w := range data.Words {
			words = append(words, w.Text)
		}
		text = strings.Join(words, " ")
	}
	return model.Transcript{Text: strings.TrimSpace(text), SourceLanguage: req.Language}, nil
}

func scribeForm(modelID string, req Request) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("model_id", modelID); err != nil {
		return nil, "", errors.Wrap(err, "write model_id")
	}
	if lang := strings.TrimSpace(req.Language); lang != "" {
		if err := w.WriteField("language_code", lang); err != nil {
			return nil, "", errors.Wrap(err, "write language_code")
		}
	}

	mime := model.NormalizeMime(req.MimeType)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+audioFilename(mime)+`"`)
	header.Set("Content-Type", mime)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", errors.Wrap(err, "create file part")
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, "", errors.Wrap(err, "write audio")
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "close form")
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// audioFilename picks an extension providers use to sniff the container.
func audioFilename(mime string) string {
	switch mime {
	case model.MimeOgg:
		return "audio.ogg"
	case model.MimeWAV, model.MimeL16:
		return "audio.wav"
	case model.MimeMP3:
		return "audio.mp3"
	default:
		return "audio.webm"
	}
}
