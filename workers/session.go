package workers

import (
	"time"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-translate/model"
	"github.com/mrsingh-rishi/voice-translate/pipeline"
	"github.com/mrsingh-rishi/voice-translate/queue"
)

// State is the lifecycle state of a speaker session.
type State int

const (
	Idle State = iota
	Processing
	// Failed sessions refuse new chunks until reset.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrBacklogFull   = errors.New("speaker backlog is full")
	ErrSessionFailed = errors.New("speaker session failed")
	ErrStopped       = errors.New("dispatcher stopped")
)

type sessionFailedError struct{ cause error }

func (e *sessionFailedError) Error() string        { return ErrSessionFailed.Error() + ": " + e.cause.Error() }
func (e *sessionFailedError) Is(target error) bool { return target == ErrSessionFailed }
func (e *sessionFailedError) Unwrap() error        { return e.cause }

// Speaker identifies who a chunk belongs to and how it should be processed.
type Speaker struct {
	ID             string
	Name           string
	RoomID         string
	SourceLanguage string
	Targets        model.LanguageSet
	Synthesis      pipeline.SynthesisPolicy
	AudioFormat    model.AudioFormat
	Voice          string
	// Broadcast hands outcomes to the publisher when set.
	Broadcast bool
}

// Job builds the pipeline job for one of the speaker's chunks.
func (s Speaker) Job(chunk model.AudioChunk) pipeline.Job {
	return pipeline.Job{
		Chunk:          chunk,
		SourceLanguage: s.SourceLanguage,
		Targets:        s.Targets,
		Synthesis:      s.Synthesis,
		AudioFormat:    s.AudioFormat,
		Voice:          s.Voice,
	}
}

type pendingChunk struct {
	speaker Speaker
	job     pipeline.Job
	ticket  *Ticket
}

// session is the per-speaker state. All fields are guarded by the
// dispatcher's mutex.
type session struct {
	speaker    Speaker
	state      State
	pending    *queue.Queue[*pendingChunk]
	failure    error
	lastActive time.Time
	leaving    bool
}

func newSession(speaker Speaker, limit int, now time.Time) *session {
	return &session{
		speaker:    speaker,
		state:      Idle,
		pending:    queue.NewBounded[*pendingChunk](limit),
		lastActive: now,
	}
}

// SessionInfo is a point-in-time view of one session.
type SessionInfo struct {
	SpeakerID  string
	RoomID     string
	State      State
	Pending    int
	LastActive time.Time
	Failure    string
}

func (s *session) info() SessionInfo {
	info := SessionInfo{
		SpeakerID:  s.speaker.ID,
		RoomID:     s.speaker.RoomID,
		State:      s.state,
		Pending:    s.pending.Len(),
		LastActive: s.lastActive,
	}
	if s.failure != nil {
		info.Failure = s.failure.Error()
	}
	return info
}
