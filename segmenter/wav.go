package segmenter

import (
	"bytes"
	"encoding/binary"

	"github.com/mrsingh-rishi/voice-translate/model"
)

const wavHeaderSize = 44

// WrapWAV prefixes 16-bit little-endian PCM with a canonical WAV header.
func WrapWAV(pcm []byte, enc model.EncodingInfo) []byte {
	if enc.IsZero() {
		enc = model.DefaultEncoding()
	}
	const bitsPerSample = 16
	byteRate := enc.SampleRate * enc.Channels * bitsPerSample / 8
	blockAlign := enc.Channels * bitsPerSample / 8

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(enc.Channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(enc.SampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
