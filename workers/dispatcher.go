// Package workers drives audio chunks through the pipeline with at most one
// chunk in flight per speaker and strict per-speaker arrival order.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-translate/model"
	"github.com/mrsingh-rishi/voice-translate/pipeline"
	"github.com/mrsingh-rishi/voice-translate/queue"
	"github.com/mrsingh-rishi/voice-translate/telemetry"
)

// Processor runs one chunk through the adapter chain.
type Processor interface {
	Process(ctx context.Context, job pipeline.Job) (model.PipelineOutcome, error)
}

// Publisher delivers outcomes to room members. Errors are logged only.
type Publisher interface {
	Publish(ctx context.Context, d model.Delivery) error
}

// Options configures a Dispatcher.
type Options struct {
	Processor Processor
	Publisher Publisher
	// MaxPending bounds each speaker's backlog. Zero means unbounded.
	MaxPending int
	// IdleTimeout is how long an idle session survives before Run reaps it.
	// Zero disables reaping.
	IdleTimeout    time.Duration
	PublishTimeout time.Duration
	Logger         *slog.Logger
	Metrics        *telemetry.PipelineMetrics
}

// Dispatcher owns every speaker session. Sessions are created on the first
// chunk from a speaker and destroyed on Leave or by the idle reaper.
type Dispatcher struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	processor      Processor
	publisher      Publisher
	maxPending     int
	idleTimeout    time.Duration
	publishTimeout time.Duration
	logger         *slog.Logger
	metrics        *telemetry.PipelineMetrics
	now            func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	stopped  bool
}

func NewDispatcher(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	publishTimeout := opts.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		ctx:            ctx,
		cancel:         cancel,
		processor:      opts.Processor,
		publisher:      opts.Publisher,
		maxPending:     opts.MaxPending,
		idleTimeout:    opts.IdleTimeout,
		publishTimeout: publishTimeout,
		logger:         logger.With("component", "dispatcher"),
		metrics:        opts.Metrics,
		now:            time.Now,
		sessions:       make(map[string]*session),
	}
}

// Enqueue hands a chunk to the speaker's session. An idle session starts
// processing it immediately; a busy one appends it to the backlog. Enqueue
// never blocks on processing.
func (d *Dispatcher) Enqueue(speaker Speaker, chunk model.AudioChunk) (*Ticket, error) {
	if speaker.ID == "" {
		return nil, model.Invalid("speakerId is required")
	}
	if chunk.Empty() {
		return nil, model.Invalid("audio chunk is empty")
	}
	if chunk.ID == "" {
		chunk.ID = uuid.NewString()
	}
	item := &pendingChunk{
		speaker: speaker,
		job:     speaker.Job(chunk),
		ticket:  newTicket(chunk.ID),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return nil, ErrStopped
	}
	sess, ok := d.sessions[speaker.ID]
	if !ok {
		sess = newSession(speaker, d.maxPending, d.now())
		d.sessions[speaker.ID] = sess
		d.logger.Debug("speaker session created", "speaker_id", speaker.ID, "room_id", speaker.RoomID)
	}
	sess.speaker = speaker
	sess.leaving = false
	sess.lastActive = d.now()

	switch sess.state {
	case Failed:
		d.metrics.Rejected(d.ctx, "session_failed")
		return nil, &sessionFailedError{cause: sess.failure}
	case Processing:
		if err := sess.pending.Enqueue(item); err != nil {
			if errors.Is(err, queue.ErrFull) {
				d.metrics.Rejected(d.ctx, "backlog_full")
				return nil, ErrBacklogFull
			}
			return nil, err
		}
		d.metrics.Enqueued(d.ctx)
		d.metrics.PendingDelta(d.ctx, 1)
		d.logger.Debug("chunk queued behind in-flight chunk",
			"speaker_id", speaker.ID, "chunk_id", chunk.ID, "pending", sess.pending.Len())
	default:
		sess.state = Processing
		d.metrics.Enqueued(d.ctx)
		d.wg.Add(1)
		go d.drive(sess, item)
	}
	return item.ticket, nil
}

// drive processes item and then every chunk queued behind it, one at a time.
// It is the only goroutine processing chunks for sess.
func (d *Dispatcher) drive(sess *session, item *pendingChunk) {
	defer d.wg.Done()
	for item != nil {
		outcome, err := d.process(item)
		// The slot stays Processing until the broadcast returns, so a
		// speaker's deliveries leave in enqueue order.
		if err == nil && !outcome.Empty() && item.speaker.Broadcast {
			d.publish(item.speaker, outcome)
		}

		d.mu.Lock()
		sess.lastActive = d.now()
		if model.IsConfiguration(err) {
			d.fail(sess, err)
			d.mu.Unlock()
			return
		}
		next, ok := sess.pending.Dequeue()
		if ok {
			d.metrics.PendingDelta(d.ctx, -1)
		} else {
			sess.state = Idle
			if sess.leaving {
				d.remove(sess)
			}
		}
		d.mu.Unlock()
		item = next
	}
}

func (d *Dispatcher) process(item *pendingChunk) (model.PipelineOutcome, error) {
	started := d.now()
	outcome, err := d.processor.Process(d.ctx, item.job)
	if outcome.ChunkID == "" {
		outcome.ChunkID = item.job.Chunk.ID
	}
	finished := d.now()
	item.ticket.resolve(outcome, err, started, finished)

	result := "ok"
	switch {
	case err != nil:
		result = "error"
		d.logger.Warn("chunk failed", "speaker_id", item.speaker.ID, "chunk_id", item.job.Chunk.ID, "error", err)
	case outcome.Empty():
		result = "empty"
	}
	d.metrics.Processed(d.ctx, result)
	d.metrics.StageDuration(d.ctx, "chunk", finished.Sub(started).Seconds())
	return outcome, err
}

// fail marks sess Failed and resolves its backlog with err. Caller holds mu.
func (d *Dispatcher) fail(sess *session, err error) {
	sess.state = Failed
	sess.failure = err
	dropped := sess.pending.Drain()
	if len(dropped) > 0 {
		d.metrics.PendingDelta(d.ctx, -int64(len(dropped)))
	}
	now := d.now()
	for _, p := range dropped {
		p.ticket.resolve(model.PipelineOutcome{ChunkID: p.job.Chunk.ID}, &sessionFailedError{cause: err}, time.Time{}, now)
	}
	d.logger.Error("speaker session failed", "speaker_id", sess.speaker.ID, "dropped", len(dropped), "error", err)
	if sess.leaving {
		d.remove(sess)
	}
}

func (d *Dispatcher) publish(speaker Speaker, outcome model.PipelineOutcome) {
	if d.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(d.ctx, d.publishTimeout)
	defer cancel()
	err := d.publisher.Publish(ctx, model.Delivery{
		RoomID:         speaker.RoomID,
		SpeakerID:      speaker.ID,
		SpeakerName:    speaker.Name,
		SourceLanguage: speaker.SourceLanguage,
		Outcome:        outcome,
	})
	if err != nil {
		d.logger.Warn("broadcast failed", "speaker_id", speaker.ID, "room_id", speaker.RoomID, "error", err)
	}
}

// remove deletes sess from the arena. Caller holds mu.
func (d *Dispatcher) remove(sess *session) {
	if cur, ok := d.sessions[sess.speaker.ID]; ok && cur == sess {
		delete(d.sessions, sess.speaker.ID)
		d.logger.Debug("speaker session removed", "speaker_id", sess.speaker.ID)
	}
}

// Leave tears down a speaker's session. Queued and in-flight chunks still
// complete first. It reports whether a session existed.
func (d *Dispatcher) Leave(speakerID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	sess, ok := d.sessions[speakerID]
	if !ok {
		return false
	}
	if sess.state == Processing {
		sess.leaving = true
		return true
	}
	d.remove(sess)
	return true
}

// Reset clears a failed session so the speaker can be served again once the
// configuration is fixed.
func (d *Dispatcher) Reset(speakerID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	sess, ok := d.sessions[speakerID]
	if !ok || sess.state != Failed {
		return false
	}
	d.remove(sess)
	return true
}

// Session returns a view of one speaker's session.
func (d *Dispatcher) Session(speakerID string) (SessionInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sess, ok := d.sessions[speakerID]
	if !ok {
		return SessionInfo{}, false
	}
	return sess.info(), true
}

// Stats summarizes the arena.
type Stats struct {
	Sessions   int `json:"sessions"`
	Processing int `json:"processing"`
	Pending    int `json:"pending"`
	Failed     int `json:"failed"`
}

func (d *Dispatcher) Snapshot() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	var st Stats
	for _, sess := range d.sessions {
		st.Sessions++
		st.Pending += sess.pending.Len()
		switch sess.state {
		case Processing:
			st.Processing++
		case Failed:
			st.Failed++
		}
	}
	return st
}

// Reap removes sessions that have not been busy since before cutoff and
// returns how many were removed.
func (d *Dispatcher) Reap(cutoff time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, sess := range d.sessions {
		if sess.state == Processing || !sess.lastActive.Before(cutoff) {
			continue
		}
		d.remove(sess)
		n++
	}
	return n
}

// Run reaps idle sessions until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.idleTimeout <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	interval := d.idleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := d.Reap(d.now().Add(-d.idleTimeout)); n > 0 {
				d.logger.Info("reaped idle speaker sessions", "count", n)
			}
		}
	}
}

// Stop refuses new chunks, cancels in-flight processing and waits for every
// session goroutine to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.cancel()
	d.wg.Wait()
}
