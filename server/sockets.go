package server

import (
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt"

	"github.com/mrsingh-rishi/voice-translate/call"
)

// serveRoom subscribes a listener to a room's messages and, with ?lang=, to
// that language's paced audio frames. Inbound frames are ignored.
func (s *Server) serveRoom(ws *websocket.Conn) {
	roomID := ws.Params("roomId")
	sub := s.hub.Subscribe(roomID, ws.Query("lang"), ws)

	// The connection is released once this handler returns, so the watcher
	// and the subscriber writer must both be gone by then.
	left := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-s.ctx.Done():
			ws.Close()
		case <-sub.Done():
		case <-left:
		}
	}()
	defer wg.Wait()
	defer close(left)
	defer s.hub.Unsubscribe(sub)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

// serveStream runs a live speaker stream until it stops or the server
// shuts down.
func (s *Server) serveStream(ws *websocket.Conn) {
	claims, _ := ws.Locals(claimsKey).(jwt.MapClaims)
	c := call.NewCall(ws, s.dispatcher, call.Options{
		Window:    s.window,
		Synthesis: s.synthesis,
		Voice:     s.voice,
		Authorize: func(speakerID string) error { return checkSubject(claims, speakerID) },
		Logger:    s.logger,
	})
	c.Serve(s.ctx)
}
