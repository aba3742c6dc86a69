package server

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/boardsync/boardsync/pkg/model"
	"github.com/boardsync/boardsync/pkg/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Sessions are joined by code, not origin; the board is embeddable.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsClient wraps a WebSocket connection behind the model.Conn interface.
// gorilla/websocket allows at most one concurrent writer, so Send serializes
// writes with a mutex.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Compile-time check: *wsClient implements model.Conn.
var _ model.Conn = (*wsClient)(nil)

func (c *wsClient) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsClient) Close() error {
	return c.conn.Close()
}

// peer tracks one connection's place in the world. sess and userID are set by
// the join event and userID is rewritten on identity transitions. Each peer is
// owned by a single reader goroutine, so no locking is needed.
type peer struct {
	conn   model.Conn
	sess   *session.Session
	userID string
}

// HandleWS upgrades an HTTP request to a WebSocket connection and runs the
// read loop until the client disconnects.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)
	slog.Debug("new connection", "remote", r.RemoteAddr)

	p := &peer{conn: &wsClient{conn: conn}}
	s.trackConn(p.conn)
	defer s.untrackConn(p.conn)
	defer s.disconnect(p, r.RemoteAddr)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			slog.Debug("read error", "remote", r.RemoteAddr, "err", err)
			return
		}

		s.handleMessage(p, data)
	}
}

// disconnect removes the peer from its session, runs ownership succession,
// and drops the session once the last user is gone.
func (s *Server) disconnect(p *peer, remoteAddr string) {
	_ = p.conn.Close()
	s.metrics.ActiveConnections.Add(-1)
	s.metrics.TotalDisconnects.Add(1)

	if p.sess == nil {
		return
	}

	removed := p.sess.Remove(p.userID)
	if removed != nil {
		slog.Info("client disconnected", "user", p.userID, "session", p.sess.Code())
	}

	// Removal re-checks emptiness under the registry lock so a concurrent
	// join to the same code either keeps the session alive or has already
	// replaced it.
	if s.registry.RemoveIfEmpty(p.sess) {
		s.metrics.SessionsRemoved.Add(1)
		slog.Info("session removed", "session", p.sess.Code())
		return
	}

	s.broadcastState(p.sess)
}
