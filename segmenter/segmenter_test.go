package segmenter

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/mrsingh-rishi/voice-translate/model"
)

func collector() (Sink, <-chan model.AudioChunk) {
	ch := make(chan model.AudioChunk, 16)
	return func(c model.AudioChunk) { ch <- c }, ch
}

func nextChunk(t *testing.T, ch <-chan model.AudioChunk) model.AudioChunk {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for chunk")
		return model.AudioChunk{}
	}
}

func TestSegmenterEmitsEachWindowWithoutGaps(t *testing.T) {
	sink, chunks := collector()
	enc := model.EncodingInfo{SampleRate: 16000, Channels: 1}
	s := New(Options{Window: 40 * time.Millisecond, MimeType: model.MimeL16, Encoding: enc, Sink: sink})
	source := make(chan []byte)
	if err := s.Start(context.Background(), source); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
	defer s.Stop()

	var sent, received bytes.Buffer
	for _, frame := range [][]byte{[]byte("aa"), []byte("bb"), []byte("cc")} {
		source <- frame
		sent.Write(frame)
		c := nextChunk(t, chunks)
		if c.MimeType != model.MimeWAV || c.ID == "" || len(c.Data) < wavHeaderSize {
			t.Fatalf("unexpected chunk metadata %+v", c)
		}
		received.Write(c.Data[wavHeaderSize:])
	}
	if received.String() != sent.String() {
		t.Fatalf("expected every byte in exactly one chunk, sent %q got %q", sent.String(), received.String())
	}
}

func TestSegmenterSkipsEmptyWindows(t *testing.T) {
	sink, chunks := collector()
	s := New(Options{Window: 10 * time.Millisecond, Sink: sink})
	if err := s.Start(context.Background(), make(chan []byte)); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	s.Stop()
	select {
	case c := <-chunks:
		t.Fatalf("expected no chunk from silence, got %d bytes", len(c.Data))
	default:
	}
}

func TestSegmenterStopDropsChunkInProgress(t *testing.T) {
	sink, chunks := collector()
	s := New(Options{Window: time.Hour, MimeType: model.MimeL16, Sink: sink})
	source := make(chan []byte)
	if err := s.Start(context.Background(), source); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
	source <- []byte("partial")
	s.Stop()
	if s.Active() {
		t.Fatalf("expected segmenter to be inactive after Stop")
	}
	select {
	case <-chunks:
		t.Fatalf("in-progress chunk must be dropped on stop")
	default:
	}

	// restartable after stop
	if err := s.Start(context.Background(), source); err != nil {
		t.Fatalf("restart returned error: %v", err)
	}
	if err := s.Start(context.Background(), source); err != ErrActive {
		t.Fatalf("expected ErrActive, got %v", err)
	}
	s.Stop()
}

func TestSegmenterEmitsContainerRecordingsWhole(t *testing.T) {
	sink, chunks := collector()
	s := New(Options{Window: time.Hour, MimeType: "audio/webm;codecs=opus", Sink: sink})
	source := make(chan []byte)
	if err := s.Start(context.Background(), source); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
	defer s.Stop()

	ebml := []byte{0x1a, 0x45, 0xdf, 0xa3}
	recordings := [][]byte{
		append(append([]byte(nil), ebml...), []byte("first")...),
		append(append([]byte(nil), ebml...), []byte("second")...),
	}
	for i, rec := range recordings {
		source <- rec
		c := nextChunk(t, chunks)
		if c.MimeType != model.MimeWebM {
			t.Fatalf("recording %d: expected webm chunk, got %s", i, c.MimeType)
		}
		if !bytes.Equal(c.Data, rec) {
			t.Fatalf("recording %d: expected the recording unchanged with its header, got %x", i, c.Data)
		}
	}
}

func TestSegmenterStopsSilentlyWhenSourceCloses(t *testing.T) {
	s := New(Options{Window: time.Hour})
	source := make(chan []byte)
	if err := s.Start(context.Background(), source); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
	close(source)
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("segmenter did not stop after source closed")
	}
	if s.Active() {
		t.Fatalf("expected inactive segmenter")
	}
	s.Stop()
}

func TestSegmenterWrapsRawPCM(t *testing.T) {
	sink, chunks := collector()
	enc := model.EncodingInfo{SampleRate: 16000, Channels: 1}
	s := New(Options{Window: 20 * time.Millisecond, MimeType: "linear16", Encoding: enc, Sink: sink})
	source := make(chan []byte)
	if err := s.Start(context.Background(), source); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
	defer s.Stop()

	pcm := make([]byte, 640)
	source <- pcm
	c := nextChunk(t, chunks)
	if c.MimeType != model.MimeWAV {
		t.Fatalf("expected wav chunk, got %s", c.MimeType)
	}
	if len(c.Data) != wavHeaderSize+len(pcm) || string(c.Data[:4]) != "RIFF" || string(c.Data[8:12]) != "WAVE" {
		t.Fatalf("invalid wav header")
	}
	if rate := binary.LittleEndian.Uint32(c.Data[24:28]); rate != 16000 {
		t.Fatalf("expected sample rate 16000, got %d", rate)
	}
	if size := binary.LittleEndian.Uint32(c.Data[40:44]); int(size) != len(pcm) {
		t.Fatalf("expected data size %d, got %d", len(pcm), size)
	}
}
