package tts

import (
	"time"

	"github.com/mrsingh-rishi/voice-translate/model"
)

// FrameDuration is the playback frame size for output tracks.
const FrameDuration = 20 * time.Millisecond

// FrameSize returns the byte length of one 16-bit PCM frame.
func FrameSize(sampleRate, channels int, d time.Duration) int {
	samples := int(int64(sampleRate) * int64(d) / int64(time.Second))
	return samples * channels * 2
}

// Frames slices raw PCM into fixed-duration frames. A trailing partial frame
// is discarded, not padded. Frames alias audio.Data.
func Frames(audio model.SynthesizedAudio, d time.Duration) [][]byte {
	if audio.Format != model.FormatPCM {
		return nil
	}
	enc := model.EncodingInfo{SampleRate: audio.SampleRate, Channels: audio.Channels}
	if enc.IsZero() {
		enc = model.DefaultEncoding()
	}
	size := FrameSize(enc.SampleRate, enc.Channels, d)
	if size <= 0 {
		return nil
	}
	n := len(audio.Data) / size
	frames := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		frames = append(frames, audio.Data[i*size:(i+1)*size:(i+1)*size])
	}
	return frames
}
