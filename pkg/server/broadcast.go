package server

import (
	"log/slog"

	"github.com/boardsync/boardsync/pkg/model"
	"github.com/boardsync/boardsync/pkg/protocol"
	"github.com/boardsync/boardsync/pkg/session"
)

// broadcastState sends both canonical payloads (full element state and the
// join-ordered user list) to every member of the session. Send failures are
// logged and never interrupt the fan-out; the reader goroutine of a dead
// connection handles its own cleanup.
func (s *Server) broadcastState(sess *session.Session) {
	elements, projectName := sess.ElementsSnapshot()
	users := sess.UsersSnapshot()

	elementState := protocol.NewElementState(elements, projectName)
	sessionUsers := protocol.NewSessionUsers(users)

	for _, conn := range sess.Conns() {
		s.send(conn, elementState)
		s.send(conn, sessionUsers)
	}
}

// broadcast sends a single payload to every member of the session.
func (s *Server) broadcast(sess *session.Session, payload any) {
	for _, conn := range sess.Conns() {
		s.send(conn, payload)
	}
}

// send writes one payload to one connection, logging failures.
func (s *Server) send(conn model.Conn, payload any) {
	if conn == nil {
		return
	}
	if err := conn.Send(payload); err != nil {
		slog.Error("send failed", "err", err)
	}
}
