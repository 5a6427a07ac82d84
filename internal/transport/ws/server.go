package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"antigravity.world/internal/relay"
)

const (
	writeTimeout = 5 * time.Second
	readLimit    = 256 * 1024
	outQueueSize = 64
)

// Server upgrades HTTP requests to room connections. Each connection gets a
// relay-assigned id and a buffered ordered send queue; the room never
// touches the socket.
type Server struct {
	room *relay.Room
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(room *relay.Room, logger *log.Logger) *Server {
	return &Server{
		room: room,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(readLimit)

		// Clients bring their own id (they need it for deterministic
		// initiator selection before any round trip); connections without
		// one get a relay-assigned id.
		id := r.URL.Query().Get("id")
		if id == "" {
			id = uuid.NewString()
		}
		out := make(chan []byte, outQueueSize)
		resp := make(chan error, 1)
		s.room.Join() <- relay.JoinRequest{ID: id, Out: out, Resp: resp}
		if err := <-resp; err != nil {
			msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		}

		done := make(chan struct{})

		// Writer goroutine: drains the room's queue in order.
		go func() {
			for {
				select {
				case <-done:
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						return
					}
				}
			}
		}()

		// Reader loop: every frame goes to the room as-is; the room's
		// dispatcher owns validation.
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.room.Deliver(id, msg)
		}

		close(done)
		s.room.Leave() <- id
	}
}
