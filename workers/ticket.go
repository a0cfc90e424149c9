package workers

import (
	"context"
	"sync"
	"time"

	"github.com/mrsingh-rishi/voice-translate/model"
)

// Ticket is handed out for every accepted chunk and resolves once that chunk
// has been processed, failed, or discarded.
type Ticket struct {
	ChunkID string

	done     chan struct{}
	once     sync.Once
	outcome  model.PipelineOutcome
	err      error
	started  time.Time
	finished time.Time
}

func newTicket(chunkID string) *Ticket {
	return &Ticket{ChunkID: chunkID, done: make(chan struct{})}
}

// Done is closed when the ticket resolves.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the ticket resolves or ctx is done. Giving up on a ticket
// does not cancel the chunk.
func (t *Ticket) Wait(ctx context.Context) (model.PipelineOutcome, error) {
	select {
	case <-t.done:
		return t.outcome, t.err
	case <-ctx.Done():
		return model.PipelineOutcome{ChunkID: t.ChunkID}, ctx.Err()
	}
}

// Started is when processing began. Zero if the chunk never ran.
func (t *Ticket) Started() time.Time {
	<-t.done
	return t.started
}

// Finished is when the ticket resolved.
func (t *Ticket) Finished() time.Time {
	<-t.done
	return t.finished
}

func (t *Ticket) resolve(outcome model.PipelineOutcome, err error, started, finished time.Time) {
	t.once.Do(func() {
		t.outcome = outcome
		t.err = err
		t.started = started
		t.finished = finished
		close(t.done)
	})
}
