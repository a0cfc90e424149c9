package model

import "strings"

// AudioFormat names the encoding of synthesized or captured audio.
type AudioFormat string

const (
	FormatMP3 AudioFormat = "mp3"
	// FormatPCM is little-endian signed 16-bit PCM.
	FormatPCM AudioFormat = "pcm"
)

const (
	MimeWebM = "audio/webm"
	MimeOgg  = "audio/ogg"
	MimeWAV  = "audio/wav"
	MimeMP3  = "audio/mpeg"
	// MimeL16 is raw linear16 PCM without a container.
	MimeL16 = "audio/l16"
)

const (
	DefaultSampleRate = 24000
	DefaultChannels   = 1
)

// NormalizeMime lower-cases a MIME type and strips its parameters
// ("audio/webm;codecs=opus" -> "audio/webm"). Blank input defaults to WebM.
func NormalizeMime(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case "":
		return MimeWebM
	case "linear16", "audio/pcm", "audio/x-raw":
		return MimeL16
	case "audio/wave", "audio/x-wav":
		return MimeWAV
	}
	return mime
}

// EncodingInfo describes raw PCM framing.
type EncodingInfo struct {
	SampleRate int
	Channels   int
}

// IsZero reports whether the encoding is unset.
func (e EncodingInfo) IsZero() bool { return e.SampleRate == 0 || e.Channels == 0 }

// BytesPerSecond is the PCM16 byte rate.
func (e EncodingInfo) BytesPerSecond() int { return e.SampleRate * e.Channels * 2 }

// DefaultEncoding is the PCM framing used for live playback tracks.
func DefaultEncoding() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Channels: DefaultChannels}
}
