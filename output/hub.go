package output

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const subscriberBuffer = 256

// Conn is the write side of a websocket connection.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type outbound struct {
	kind int
	data []byte
}

// Subscriber is one room member's socket. Writes happen on its own goroutine
// so a slow socket never stalls the hub.
type Subscriber struct {
	ID       string
	RoomID   string
	Language string

	ctx    context.Context
	cancel context.CancelFunc
	conn   Conn
	send   chan outbound
	// stopped is closed when the writer goroutine exits.
	stopped chan struct{}
	logger  *slog.Logger
}

func newSubscriber(roomID, language string, conn Conn, logger *slog.Logger) *Subscriber {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Subscriber{
		ID:       id,
		RoomID:   roomID,
		Language: language,
		ctx:      ctx,
		cancel:   cancel,
		conn:     conn,
		send:     make(chan outbound, subscriberBuffer),
		stopped:  make(chan struct{}),
		logger:   logger.With("subscriber_id", id, "room_id", roomID),
	}
}

func (s *Subscriber) start() {
	go func() {
		defer close(s.stopped)
		for {
			select {
			case <-s.ctx.Done():
				return
			case msg := <-s.send:
				// select picks at random when both are ready.
				if s.ctx.Err() != nil {
					return
				}
				if err := s.conn.WriteMessage(msg.kind, msg.data); err != nil {
					s.logger.Warn("subscriber write failed", "error", err)
					s.Stop()
					return
				}
			}
		}
	}()
}

// offer queues a message without blocking. It reports false when the
// subscriber is gone or too far behind.
func (s *Subscriber) offer(kind int, data []byte) bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
	}
	select {
	case s.send <- outbound{kind: kind, data: data}:
		return true
	default:
		return false
	}
}

// Done is closed once the subscriber stops.
func (s *Subscriber) Done() <-chan struct{} { return s.ctx.Done() }

func (s *Subscriber) Stop() {
	s.cancel()
}

// Hub fans room messages out to websocket subscribers.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*Subscriber
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[string]map[string]*Subscriber),
		logger: logger.With("component", "hub"),
	}
}

func (h *Hub) Name() string { return "websocket" }

// Subscribe registers conn as a member of roomID. A non-empty language also
// subscribes it to that language's output track.
func (h *Hub) Subscribe(roomID, language string, conn Conn) *Subscriber {
	sub := newSubscriber(roomID, language, conn, h.logger)
	h.mu.Lock()
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Subscriber)
		h.rooms[roomID] = members
	}
	members[sub.ID] = sub
	h.mu.Unlock()
	sub.start()
	h.logger.Debug("subscriber joined", "room_id", roomID, "language", language, "subscriber_id", sub.ID)
	return sub
}

// Unsubscribe removes sub from its room and returns once its writer has
// exited. No write reaches the connection after Unsubscribe returns.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	sub.Stop()
	h.mu.Lock()
	members := h.rooms[sub.RoomID]
	delete(members, sub.ID)
	if len(members) == 0 {
		delete(h.rooms, sub.RoomID)
	}
	h.mu.Unlock()
	<-sub.stopped
}

// Count returns the number of subscribers in roomID.
func (h *Hub) Count(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Send queues payload as a text frame for every subscriber of roomID.
func (h *Hub) Send(_ context.Context, roomID string, payload []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	dropped := 0
	for _, sub := range h.rooms[roomID] {
		if !sub.offer(websocket.TextMessage, payload) {
			dropped++
		}
	}
	if dropped > 0 {
		return errors.Errorf("dropped message for %d subscriber(s)", dropped)
	}
	return nil
}

// SendFrame queues an audio frame as a binary frame for subscribers of the
// given language. Frames for lagging subscribers are dropped.
func (h *Hub) SendFrame(roomID, language string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.rooms[roomID] {
		if sub.Language == language {
			sub.offer(websocket.BinaryMessage, frame)
		}
	}
}
