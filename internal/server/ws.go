package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tgfeed/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsSubscriber adapts one WebSocket connection to the hub subscriber
// contract. Writes are serialized by a per-connection mutex; gorilla allows
// only one concurrent writer.
type wsSubscriber struct {
	id          string
	conn        *websocket.Conn
	connectedAt time.Time

	mu sync.Mutex
}

func (c *wsSubscriber) ID() string { return c.id }

func (c *wsSubscriber) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsSubscriber) Close() error { return c.conn.Close() }

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	sub := &wsSubscriber{
		id:          uuid.NewString(),
		conn:        conn,
		connectedAt: time.Now(),
	}

	// Unhealthy sessions are rejected at the handshake: the hub sends one
	// diagnostic frame and closes the connection.
	if !s.hub.Connect(r.Context(), sub) {
		return
	}
	s.trackSubscribers()
	defer func() {
		s.hub.Disconnect(sub)
		conn.Close()
		s.trackSubscribers()
	}()

	// Handshake acknowledgement, then the current session health.
	if err := s.hub.SendTo(sub, domain.NewConnectionFrame(s.selector.Current())); err != nil {
		return
	}
	st := s.sessions.CheckStatus(r.Context())
	if err := s.hub.SendTo(sub, domain.NewSessionStatusFrame(st)); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Debug("subscriber read ended", "subscriber", sub.id, "err", err)
			return
		}
		switch strings.TrimSpace(string(data)) {
		case "ping":
			if err := s.hub.SendTo(sub, domain.NewPongFrame()); err != nil {
				return
			}
		case "session_status":
			st := s.sessions.CheckStatus(r.Context())
			if err := s.hub.SendTo(sub, domain.NewSessionStatusFrame(st)); err != nil {
				return
			}
		}
	}
}

func (s *Server) trackSubscribers() {
	if s.subscribers != nil {
		s.subscribers.Set(int64(s.hub.Len()))
	}
}
