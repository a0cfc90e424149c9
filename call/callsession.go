// Package call serves the live speaker stream: a websocket carrying
// start/media/stop events whose audio is segmented into chunks and fed to
// the dispatcher.
package call

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-translate/model"
	"github.com/mrsingh-rishi/voice-translate/pipeline"
	"github.com/mrsingh-rishi/voice-translate/segmenter"
	"github.com/mrsingh-rishi/voice-translate/types"
	"github.com/mrsingh-rishi/voice-translate/workers"
)

const (
	EventStart = "start"
	EventMedia = "media"
	EventStop  = "stop"
	EventAck   = "ack"
	EventError = "error"
)

const ackBuffer = 64

// Conn is the websocket side of a stream.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dispatcher accepts chunks for a speaker.
type Dispatcher interface {
	Enqueue(speaker workers.Speaker, chunk model.AudioChunk) (*workers.Ticket, error)
	Leave(speakerID string) bool
}

// Authorizer checks that the stream may act as speakerID.
type Authorizer func(speakerID string) error

type Options struct {
	Window    time.Duration
	Synthesis pipeline.SynthesisPolicy
	Voice     string
	Authorize Authorizer
	Logger    *slog.Logger
}

// Call is one speaker's live stream.
type Call struct {
	ctx        context.Context
	cancel     context.CancelFunc
	ws         Conn
	dispatcher Dispatcher
	opts       Options
	logger     *slog.Logger

	speaker   *workers.Speaker
	segmenter *segmenter.Segmenter
	audio     chan []byte
	acks      chan *workers.Ticket
	ackDone   chan struct{}

	writeMu sync.Mutex
	once    sync.Once
}

func NewCall(ws Conn, dispatcher Dispatcher, opts Options) *Call {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Call{
		ctx:        ctx,
		cancel:     cancel,
		ws:         ws,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger.With("component", "call"),
		acks:       make(chan *workers.Ticket, ackBuffer),
		ackDone:    make(chan struct{}),
	}
	go c.writeAcks()
	return c
}

// Serve reads events until stop, a read error or ctx is done, then releases
// the stream. The in-progress chunk is dropped; chunks already handed to the
// dispatcher still complete and reach the room.
func (c *Call) Serve(ctx context.Context) {
	defer c.CleanupResources()
	go func() {
		select {
		case <-ctx.Done():
			c.ws.Close()
		case <-c.ctx.Done():
		}
	}()

	for {
		kind, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("stream closed", "error", err)
			} else if c.ctx.Err() == nil {
				c.logger.Warn("stream read failed", "error", err)
			}
			return
		}

		if kind == websocket.BinaryMessage {
			c.handleMedia(msg)
			continue
		}

		var ev types.StreamEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			c.sendError("", errors.Wrap(err, "invalid event"))
			continue
		}
		switch ev.Event {
		case EventStart:
			if ev.Start == nil {
				c.sendError("", errors.New("start event without start payload"))
				continue
			}
			if err := c.handleStart(*ev.Start); err != nil {
				c.sendError("", err)
				if !model.IsValidation(err) {
					return
				}
			}
		case EventMedia:
			if ev.Media == nil {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(ev.Media.Payload)
			if err != nil {
				c.sendError("", errors.Wrap(err, "media payload is not base64"))
				continue
			}
			c.handleMedia(data)
		case EventStop:
			c.logger.Debug("stream stopped by speaker")
			return
		default:
			c.logger.Debug("unknown stream event", "event", ev.Event)
		}
	}
}

func (c *Call) handleStart(start types.StreamStart) error {
	if c.speaker != nil {
		return model.Invalid("stream already started")
	}
	speakerID := strings.TrimSpace(start.SpeakerID)
	if speakerID == "" {
		return model.Invalid("speakerId is required")
	}
	if strings.TrimSpace(start.RoomID) == "" {
		return model.Invalid("roomId is required")
	}
	if strings.TrimSpace(start.SourceLanguage) == "" {
		return model.Invalid("sourceLanguage is required")
	}
	targets := model.NewLanguageSet(start.TargetLanguages...)
	if targets.Len() == 0 {
		return model.Invalid("at least one target language is required")
	}
	policy, err := pipeline.ParsePolicy(start.Synthesis, c.opts.Synthesis)
	if err != nil {
		return err
	}
	if c.opts.Authorize != nil {
		if err := c.opts.Authorize(speakerID); err != nil {
			return err
		}
	}

	mime := model.NormalizeMime(start.AudioFormat)
	enc := model.EncodingInfo{SampleRate: start.SampleRate, Channels: start.Channels}
	if mime == model.MimeL16 && enc.IsZero() {
		enc = model.EncodingInfo{SampleRate: 16000, Channels: 1}
	}

	c.speaker = &workers.Speaker{
		ID:             speakerID,
		Name:           start.SpeakerName,
		RoomID:         start.RoomID,
		SourceLanguage: strings.TrimSpace(start.SourceLanguage),
		Targets:        targets,
		Synthesis:      policy,
		AudioFormat:    model.FormatPCM,
		Voice:          c.opts.Voice,
		Broadcast:      true,
	}
	c.logger = c.logger.With("speaker_id", speakerID, "room_id", start.RoomID)
	c.audio = make(chan []byte)
	c.segmenter = segmenter.New(segmenter.Options{
		Window:   c.opts.Window,
		MimeType: mime,
		Encoding: enc,
		Sink:     c.enqueue,
		Logger:   c.logger,
	})
	if err := c.segmenter.Start(c.ctx, c.audio); err != nil {
		return err
	}
	c.logger.Info("speaker stream started", "source_language", c.speaker.SourceLanguage,
		"targets", targets.Codes(), "audio_format", mime)
	return nil
}

func (c *Call) handleMedia(data []byte) {
	if c.segmenter == nil {
		c.sendError("", model.Invalid("media before start"))
		return
	}
	if len(data) == 0 {
		return
	}
	select {
	case c.audio <- data:
	case <-c.segmenter.Done():
	}
}

// enqueue runs on the segmenter goroutine for every emitted chunk.
func (c *Call) enqueue(chunk model.AudioChunk) {
	ticket, err := c.dispatcher.Enqueue(*c.speaker, chunk)
	if err != nil {
		c.logger.Warn("chunk rejected", "chunk_id", chunk.ID, "error", err)
		c.sendError(chunk.ID, err)
		return
	}
	select {
	case c.acks <- ticket:
	case <-c.ctx.Done():
	}
}

// writeAcks reports outcomes to the speaker in chunk order.
func (c *Call) writeAcks() {
	defer close(c.ackDone)
	for {
		select {
		case <-c.ctx.Done():
			return
		case ticket := <-c.acks:
			outcome, err := ticket.Wait(c.ctx)
			if c.ctx.Err() != nil {
				return
			}
			if err != nil {
				c.sendError(ticket.ChunkID, err)
				continue
			}
			resp := types.NewProcessResponse(outcome)
			c.send(types.StreamAck{Event: EventAck, ChunkID: ticket.ChunkID, Outcome: &resp})
		}
	}
}

func (c *Call) sendError(chunkID string, err error) {
	c.send(types.StreamAck{Event: EventError, ChunkID: chunkID, Error: err.Error()})
}

func (c *Call) send(ack types.StreamAck) {
	payload, err := json.Marshal(ack)
	if err != nil {
		c.logger.Error("marshal stream ack", "error", err)
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.logger.Debug("stream ack write failed", "error", err)
	}
}

// CleanupResources stops the segmenter, leaves the speaker session and
// closes the socket. Safe to call more than once.
func (c *Call) CleanupResources() {
	c.once.Do(func() {
		c.cancel()
		if c.segmenter != nil {
			c.segmenter.Stop()
		}
		<-c.ackDone
		if c.speaker != nil {
			c.dispatcher.Leave(c.speaker.ID)
			c.logger.Info("speaker stream ended")
		}
		c.ws.Close()
	})
}
