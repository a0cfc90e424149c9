package output

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mrsingh-rishi/voice-translate/queue"
)

// maxTrackFrames bounds a track's backlog (one minute of 20 ms frames).
const maxTrackFrames = 3000

// FrameWriter receives paced frames.
type FrameWriter interface {
	SendFrame(roomID, language string, frame []byte)
}

type trackKey struct {
	room     string
	language string
}

// track plays queued frames at real time. Frames from several speakers are
// played back to back in arrival order.
type track struct {
	key    trackKey
	mu     sync.Mutex
	frames *queue.Queue[[]byte]
	wake   chan struct{}
}

// Tracks owns one paced output track per (room, language).
type Tracks struct {
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	writer   FrameWriter
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	tracks map[trackKey]*track
}

func NewTracks(writer FrameWriter, interval time.Duration, logger *slog.Logger) *Tracks {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracks{
		ctx:      ctx,
		cancel:   cancel,
		writer:   writer,
		interval: interval,
		logger:   logger.With("component", "tracks"),
		tracks:   make(map[trackKey]*track),
	}
}

// Push appends frames to the (room, language) track, creating it on first
// use. Frames beyond the backlog bound are dropped.
func (t *Tracks) Push(roomID, language string, frames [][]byte) {
	if len(frames) == 0 {
		return
	}
	tr := t.get(trackKey{room: roomID, language: language})
	if tr == nil {
		return
	}
	tr.mu.Lock()
	dropped := 0
	for _, f := range frames {
		if err := tr.frames.Enqueue(f); err != nil {
			dropped++
		}
	}
	tr.mu.Unlock()
	if dropped > 0 {
		t.logger.Warn("output track backlog full, dropping frames",
			"room_id", roomID, "language", language, "dropped", dropped)
	}
	select {
	case tr.wake <- struct{}{}:
	default:
	}
}

// Pending returns the queued frame count of a track.
func (t *Tracks) Pending(roomID, language string) int {
	t.mu.Lock()
	tr, ok := t.tracks[trackKey{room: roomID, language: language}]
	t.mu.Unlock()
	if !ok {
		return 0
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.frames.Len()
}

func (t *Tracks) get(key trackKey) *track {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx.Err() != nil {
		return nil
	}
	if tr, ok := t.tracks[key]; ok {
		return tr
	}
	tr := &track{
		key:    key,
		frames: queue.NewBounded[[]byte](maxTrackFrames),
		wake:   make(chan struct{}, 1),
	}
	t.tracks[key] = tr
	t.wg.Add(1)
	go t.play(tr)
	return tr
}

func (t *Tracks) play(tr *track) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		tr.mu.Lock()
		frame, ok := tr.frames.Dequeue()
		tr.mu.Unlock()
		if !ok {
			select {
			case <-t.ctx.Done():
				return
			case <-tr.wake:
				ticker.Reset(t.interval)
				continue
			}
		}
		t.writer.SendFrame(tr.key.room, tr.key.language, frame)
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close stops every track and drops unplayed frames.
func (t *Tracks) Close() {
	t.mu.Lock()
	t.cancel()
	t.mu.Unlock()
	t.wg.Wait()
}
