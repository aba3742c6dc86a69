package server

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/boardsync/boardsync/pkg/protocol"
	"github.com/boardsync/boardsync/pkg/session"
)

// handleMessage decodes one inbound message and dispatches it. Malformed and
// unrecognised messages are dropped without closing the connection.
func (s *Server) handleMessage(p *peer, data []byte) {
	event, err := protocol.ParseEvent(data)
	if err != nil {
		if !errors.Is(err, protocol.ErrUnknownType) {
			slog.Debug("dropping malformed message", "err", err)
		}
		return
	}

	if ev, ok := event.(*protocol.JoinEvent); ok {
		s.handleJoin(p, ev)
		return
	}

	// Everything else requires a prior join.
	if p.sess == nil {
		return
	}

	switch ev := event.(type) {
	case *protocol.UpgradeIdentityEvent:
		s.handleUpgrade(p, ev)

	case *protocol.DowngradeIdentityEvent:
		s.handleDowngrade(p, ev)

	case *protocol.CursorUpdateEvent:
		if p.sess.SetCursor(ev.UserID, ev.X, ev.Y) {
			s.broadcast(p.sess, protocol.NewCursorUpdate(ev.UserID, ev.X, ev.Y))
		}

	case *protocol.ElementGrabEvent:
		if p.sess.Grab(ev.UserID, ev.ElementID) {
			s.broadcastState(p.sess)
		} else {
			s.metrics.GrabsDenied.Add(1)
		}

	case *protocol.ElementMoveEvent:
		if p.sess.Move(ev.UserID, ev.ElementID, ev.X, ev.Y) {
			s.broadcastState(p.sess)
		}

	case *protocol.ElementReleaseEvent:
		if p.sess.Release(ev.UserID, ev.ElementID) {
			s.broadcastState(p.sess)
		}

	case *protocol.ElementDeselectEvent:
		if p.sess.Deselect(ev.UserID, ev.ElementIDs) {
			s.broadcastState(p.sess)
		}

	case *protocol.ElementCreateEvent:
		if el := p.sess.Create(ev.UserID, ev.Shape, ev.X, ev.Y, ev.W, ev.H); el != nil {
			s.metrics.ElementsCreated.Add(1)
			s.broadcastState(p.sess)
		}

	case *protocol.ElementDeleteEvent:
		if n := p.sess.Delete(ev.UserID, ev.ElementIDs); n > 0 {
			s.metrics.ElementsDeleted.Add(int64(n))
			s.broadcastState(p.sess)
		}

	case *protocol.ElementResizeEvent:
		if p.sess.Resize(ev.UserID, ev.ElementID, ev.X, ev.Y, ev.W, ev.H) {
			s.broadcastState(p.sess)
		}

	case *protocol.ElementResizeEndEvent:
		if p.sess.ResizeEnd(ev.UserID) {
			s.broadcastState(p.sess)
		}

	case *protocol.MakeEditorEvent:
		if p.sess.MakeEditor(ev.UserID, ev.TargetUserID) {
			s.broadcastState(p.sess)
		}

	case *protocol.RemoveEditorEvent:
		if p.sess.RemoveEditor(ev.UserID, ev.TargetUserID) {
			s.broadcastState(p.sess)
		}

	case *protocol.KickUserEvent:
		s.handleKick(p, ev)

	case *protocol.RenameSessionEvent:
		if p.sess.Rename(ev.UserID, ev.NewName) {
			s.broadcastState(p.sess)
		}

	case *protocol.UndoEvent:
		s.handleHistory(p, ev.UserID, p.sess.Undo, &s.metrics.UndoCount)

	case *protocol.RedoEvent:
		s.handleHistory(p, ev.UserID, p.sess.Redo, &s.metrics.RedoCount)

	case *protocol.ChatEvent:
		if msg, ok := p.sess.AppendChat(ev.UserID, ev.Text); ok {
			s.metrics.ChatMessagesSent.Add(1)
			s.broadcast(p.sess, protocol.NewChatMessage(msg))
		}
	}
}

// handleJoin binds the connection to a session, creating the session on first
// use. A rejoin under a known user id only refreshes name and transport.
func (s *Server) handleJoin(p *peer, ev *protocol.JoinEvent) {
	if ev.UserID == "" || ev.SessionCode == "" {
		return
	}

	sess, ok := s.registry.Get(ev.SessionCode)
	if !ok {
		sess = s.registry.GetOrCreate(ev.SessionCode)
		s.metrics.SessionsCreated.Add(1)
		slog.Info("session created", "session", ev.SessionCode)
	}

	isAdmin := ev.UserRole == "admin"
	user := sess.Join(ev.UserID, ev.Name, isAdmin, p.conn)

	p.sess = sess
	p.userID = ev.UserID
	slog.Info("user joined", "user", ev.UserID, "session", ev.SessionCode,
		"role", user.SessionRole.String())

	s.broadcastState(sess)

	// Replay chat so late joiners see the conversation.
	for _, msg := range sess.ChatHistory() {
		s.send(p.conn, protocol.NewChatMessage(msg))
	}
}

func (s *Server) handleUpgrade(p *peer, ev *protocol.UpgradeIdentityEvent) {
	u := p.sess.Upgrade(ev.OldUserID, ev.NewUserID, ev.NewName, ev.NewIsAdmin, p.conn)
	if u == nil {
		return
	}
	if p.userID == ev.OldUserID {
		p.userID = ev.NewUserID
	}
	s.metrics.IdentityUpgrades.Add(1)
	slog.Info("identity upgraded", "from", ev.OldUserID, "to", ev.NewUserID,
		"session", p.sess.Code())
	s.broadcastState(p.sess)
}

func (s *Server) handleDowngrade(p *peer, ev *protocol.DowngradeIdentityEvent) {
	u := p.sess.Downgrade(ev.OldUserID, ev.NewUserID, p.conn)
	if u == nil {
		return
	}
	if p.userID == ev.OldUserID {
		p.userID = ev.NewUserID
	}
	s.metrics.IdentityDowngrades.Add(1)
	slog.Info("identity downgraded", "from", ev.OldUserID, "to", ev.NewUserID,
		"session", p.sess.Code())
	s.broadcastState(p.sess)
}

func (s *Server) handleKick(p *peer, ev *protocol.KickUserEvent) {
	target := p.sess.Kick(ev.UserID, ev.TargetUserID)
	if target == nil {
		return
	}
	s.metrics.KickCount.Add(1)
	slog.Info("user kicked", "actor", ev.UserID, "target", ev.TargetUserID,
		"session", p.sess.Code())

	if target.Conn != nil {
		s.send(target.Conn, protocol.NewKicked())
		_ = target.Conn.Close()
	}
	s.broadcastState(p.sess)
}

// handleHistory runs an undo or redo. A lock conflict is reported back to the
// requester only; an empty stack is dropped silently.
func (s *Server) handleHistory(p *peer, userID string, op func(string) error, counter *atomic.Int64) {
	switch err := op(userID); {
	case err == nil:
		counter.Add(1)
		s.broadcastState(p.sess)
	case errors.Is(err, session.ErrElementLocked):
		s.metrics.UndoRedoBlocked.Add(1)
		s.send(p.conn, protocol.NewUndoRedoFailed(session.LockConflictReason))
	}
}
