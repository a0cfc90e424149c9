// Package segmenter cuts a live audio source into fixed-window chunks.
package segmenter

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-translate/model"
)

// DefaultWindow is the chunk length used when none is configured.
const DefaultWindow = 2 * time.Second

var ErrActive = errors.New("segmenter already active")

// Sink receives every emitted chunk.
type Sink func(chunk model.AudioChunk)

type Options struct {
	Window   time.Duration
	MimeType string
	// Encoding describes raw PCM sources. Ignored for container formats.
	Encoding model.EncodingInfo
	Sink     Sink
	Logger   *slog.Logger
}

// Segmenter repeatedly captures the source into a fresh chunk, emits it when
// the window elapses and immediately opens the next one. Stop drops the
// chunk in progress. A closed source stops the segmenter without error.
//
// Only raw PCM is cut at window boundaries. A container stream (WebM, Ogg,
// WAV, MP3) is only decodable from its header, so each frame of a container
// source is taken to be one complete recording and emitted as its own chunk.
type Segmenter struct {
	window time.Duration
	mime   string
	enc    model.EncodingInfo
	sink   Sink
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(opts Options) *Segmenter {
	window := opts.Window
	if window <= 0 {
		window = DefaultWindow
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Segmenter{
		window: window,
		mime:   model.NormalizeMime(opts.MimeType),
		enc:    opts.Encoding,
		sink:   opts.Sink,
		logger: logger.With("component", "segmenter"),
	}
}

// Start arms the window loop over source. It returns ErrActive if the
// segmenter is already running.
func (s *Segmenter) Start(ctx context.Context, source <-chan []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		select {
		case <-s.done:
		default:
			return ErrActive
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, source, s.done)
	return nil
}

// Stop cancels the window loop and waits for it to exit.
func (s *Segmenter) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Active reports whether the window loop is running.
func (s *Segmenter) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Done is closed when the current loop exits. Nil before the first Start.
func (s *Segmenter) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Segmenter) loop(ctx context.Context, source <-chan []byte, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.window)
	defer ticker.Stop()

	var buf bytes.Buffer
	opened := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("segmenter stopped, dropping chunk in progress", "bytes", buf.Len())
			return
		case frame, ok := <-source:
			if !ok {
				s.logger.Debug("audio source closed", "bytes", buf.Len())
				return
			}
			if !s.raw() {
				if len(frame) > 0 {
					now := time.Now()
					s.emit(frame, opened, now)
					opened = now
				}
				continue
			}
			buf.Write(frame)
		case now := <-ticker.C:
			if !s.raw() {
				continue
			}
			if buf.Len() > 0 {
				s.emit(buf.Bytes(), opened, now)
			}
			buf.Reset()
			opened = now
		}
	}
}

func (s *Segmenter) raw() bool { return s.mime == model.MimeL16 }

func (s *Segmenter) emit(data []byte, opened, closed time.Time) {
	payload := make([]byte, len(data))
	copy(payload, data)
	mime := s.mime
	if s.raw() {
		payload = WrapWAV(payload, s.enc)
		mime = model.MimeWAV
	}
	chunk := model.AudioChunk{
		ID:         uuid.NewString(),
		Data:       payload,
		MimeType:   mime,
		Duration:   closed.Sub(opened),
		CapturedAt: opened,
	}
	if s.sink != nil {
		s.sink(chunk)
	}
}
