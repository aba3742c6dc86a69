package server

import (
	"fmt"
	"testing"

	"github.com/boardsync/boardsync/pkg/model"
	"github.com/boardsync/boardsync/pkg/protocol"
)

// fakeConn records everything sent through it.
type fakeConn struct {
	sent   []any
	closed bool
	fail   bool
}

func (c *fakeConn) Send(v any) error {
	if c.fail {
		return fmt.Errorf("fake: send failed")
	}
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) reset() { c.sent = nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(DefaultConfig(), Dependencies{})
}

// joinPeer connects a fake client and joins it into a session.
func joinPeer(t *testing.T, s *Server, code, userID, role string) (*peer, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	p := &peer{conn: conn}
	s.handleMessage(p, []byte(fmt.Sprintf(
		`{"type":"join","userId":%q,"sessionCode":%q,"name":"","userRole":%q}`, userID, code, role)))
	if p.sess == nil {
		t.Fatalf("join did not bind peer %q to a session", userID)
	}
	conn.reset()
	return p, conn
}

// lastStatePair asserts the connection's two most recent payloads are the
// canonical elementState + sessionUsers broadcast and returns them.
func lastStatePair(t *testing.T, conn *fakeConn) (protocol.ElementStatePayload, protocol.SessionUsersPayload) {
	t.Helper()
	if len(conn.sent) < 2 {
		t.Fatalf("want at least 2 payloads, got %d", len(conn.sent))
	}
	state, ok := conn.sent[len(conn.sent)-2].(protocol.ElementStatePayload)
	if !ok {
		t.Fatalf("second-to-last payload is %T, want ElementStatePayload", conn.sent[len(conn.sent)-2])
	}
	users, ok := conn.sent[len(conn.sent)-1].(protocol.SessionUsersPayload)
	if !ok {
		t.Fatalf("last payload is %T, want SessionUsersPayload", conn.sent[len(conn.sent)-1])
	}
	return state, users
}

func TestDispatchJoinBroadcastsState(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	conn := &fakeConn{}
	p := &peer{conn: conn}
	s.handleMessage(p, []byte(`{"type":"join","userId":"u1","sessionCode":"abc","name":"Alice","userRole":"user"}`))

	if p.userID != "u1" || p.sess == nil || p.sess.Code() != "abc" {
		t.Fatalf("peer not bound: %+v", p)
	}
	state, users := lastStatePair(t, conn)
	if len(state.Elements) != 2 {
		t.Errorf("element state carries %d elements, want the 2 seeded", len(state.Elements))
	}
	if len(users.Users) != 1 || users.Users[0].SessionRole != "owner" {
		t.Errorf("user list: %+v", users.Users)
	}
	if got := s.metrics.SessionsCreated.Load(); got != 1 {
		t.Errorf("sessions created = %d, want 1", got)
	}
}

func TestDispatchRequiresJoin(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	conn := &fakeConn{}
	p := &peer{conn: conn}
	s.handleMessage(p, []byte(`{"type":"elementGrab","userId":"u1","elementId":1}`))
	if len(conn.sent) != 0 {
		t.Errorf("pre-join message produced %d sends", len(conn.sent))
	}
}

func TestDispatchGrabDeniedIsSilent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	p1, _ := joinPeer(t, s, "abc", "u1", "user")
	p2, conn2 := joinPeer(t, s, "abc", "u2", "user")

	s.handleMessage(p1, []byte(`{"type":"elementGrab","userId":"u1","elementId":1}`))
	conn2.reset()

	s.handleMessage(p2, []byte(`{"type":"elementGrab","userId":"u2","elementId":1}`))

	if len(conn2.sent) != 0 {
		t.Errorf("denied grab still broadcast: %d payloads", len(conn2.sent))
	}
	if got := s.metrics.GrabsDenied.Load(); got != 1 {
		t.Errorf("grabs denied = %d, want 1", got)
	}
}

func TestDispatchMoveBroadcastsToAll(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	p1, conn1 := joinPeer(t, s, "abc", "u1", "user")
	_, conn2 := joinPeer(t, s, "abc", "u2", "user")
	conn1.reset()
	conn2.reset()

	s.handleMessage(p1, []byte(`{"type":"elementGrab","userId":"u1","elementId":1}`))
	s.handleMessage(p1, []byte(`{"type":"elementMove","userId":"u1","elementId":1,"x":42,"y":43}`))

	for i, conn := range []*fakeConn{conn1, conn2} {
		state, _ := lastStatePair(t, conn)
		if state.Elements[0].X != 42 || state.Elements[0].LockedBy != "u1" {
			t.Errorf("conn%d saw stale state: %+v", i+1, state.Elements[0])
		}
	}
}

func TestDispatchDeleteCountsOnlyRemoved(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	p1, _ := joinPeer(t, s, "abc", "u1", "user")
	p2, _ := joinPeer(t, s, "abc", "u2", "user")

	s.handleMessage(p1, []byte(`{"type":"elementGrab","userId":"u1","elementId":1}`))
	s.handleMessage(p2, []byte(`{"type":"elementGrab","userId":"u2","elementId":2}`))

	// The request names both elements but only the held one is removed.
	s.handleMessage(p1, []byte(`{"type":"elementDelete","userId":"u1","elementIds":[1,2]}`))

	if got := s.metrics.ElementsDeleted.Load(); got != 1 {
		t.Errorf("elements deleted = %d, want 1", got)
	}
	if _, ok := p1.sess.Element(2); !ok {
		t.Error("element held by another user was deleted")
	}
	if _, ok := p1.sess.Element(1); ok {
		t.Error("held element not deleted")
	}
}

func TestDispatchKickClosesTarget(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	p1, _ := joinPeer(t, s, "abc", "owner", "user")
	_, victimConn := joinPeer(t, s, "abc", "victim", "user")

	s.handleMessage(p1, []byte(`{"type":"kickUser","userId":"owner","targetUserId":"victim"}`))

	if !victimConn.closed {
		t.Fatal("kicked connection not closed")
	}
	// The last payload before close is the kicked notice.
	last := victimConn.sent[len(victimConn.sent)-1]
	if _, ok := last.(protocol.KickedPayload); !ok {
		t.Errorf("last payload to victim is %T, want KickedPayload", last)
	}
	if s.metrics.KickCount.Load() != 1 {
		t.Error("kick not counted")
	}
	if _, ok := p1.sess.User("victim"); ok {
		t.Error("victim still in session")
	}
}

func TestDispatchUndoConflictUnicast(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	p1, conn1 := joinPeer(t, s, "abc", "u1", "user")
	p2, conn2 := joinPeer(t, s, "abc", "u2", "user")

	s.handleMessage(p1, []byte(`{"type":"elementGrab","userId":"u1","elementId":1}`))
	s.handleMessage(p1, []byte(`{"type":"elementMove","userId":"u1","elementId":1,"x":9,"y":9}`))
	s.handleMessage(p1, []byte(`{"type":"elementRelease","userId":"u1","elementId":1}`))
	s.handleMessage(p2, []byte(`{"type":"elementGrab","userId":"u2","elementId":1}`))
	conn1.reset()
	conn2.reset()

	s.handleMessage(p1, []byte(`{"type":"undo","userId":"u1"}`))

	if len(conn1.sent) != 1 {
		t.Fatalf("requester got %d payloads, want 1", len(conn1.sent))
	}
	failed, ok := conn1.sent[0].(protocol.UndoRedoFailedPayload)
	if !ok {
		t.Fatalf("payload is %T, want UndoRedoFailedPayload", conn1.sent[0])
	}
	if failed.Reason == "" {
		t.Error("failure reason empty")
	}
	if len(conn2.sent) != 0 {
		t.Errorf("conflict leaked to other members: %d payloads", len(conn2.sent))
	}
	if s.metrics.UndoRedoBlocked.Load() != 1 {
		t.Error("blocked undo not counted")
	}
}

func TestDispatchEmptyUndoIsSilent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	p1, conn1 := joinPeer(t, s, "abc", "u1", "user")
	s.handleMessage(p1, []byte(`{"type":"undo","userId":"u1"}`))
	if len(conn1.sent) != 0 {
		t.Errorf("empty undo produced %d sends", len(conn1.sent))
	}
}

func TestDispatchChatBroadcast(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	p1, conn1 := joinPeer(t, s, "abc", "u1", "user")
	_, conn2 := joinPeer(t, s, "abc", "u2", "user")
	conn1.reset()
	conn2.reset()

	s.handleMessage(p1, []byte(`{"type":"chat","userId":"u1","text":"hello"}`))

	for i, conn := range []*fakeConn{conn1, conn2} {
		if len(conn.sent) != 1 {
			t.Fatalf("conn%d got %d payloads, want 1", i+1, len(conn.sent))
		}
		msg, ok := conn.sent[0].(protocol.ChatMessagePayload)
		if !ok || msg.Message.Text != "hello" {
			t.Errorf("conn%d payload: %#v", i+1, conn.sent[0])
		}
	}
}

func TestDispatchChatReplayOnJoin(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	p1, _ := joinPeer(t, s, "abc", "u1", "user")
	s.handleMessage(p1, []byte(`{"type":"chat","userId":"u1","text":"first"}`))

	conn := &fakeConn{}
	p := &peer{conn: conn}
	s.handleMessage(p, []byte(`{"type":"join","userId":"u2","sessionCode":"abc","name":"","userRole":"user"}`))

	last := conn.sent[len(conn.sent)-1]
	msg, ok := last.(protocol.ChatMessagePayload)
	if !ok || msg.Message.Text != "first" {
		t.Errorf("late joiner did not get chat replay, last = %#v", last)
	}
}

func TestDispatchUpgradeRewritesPeer(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	p1, conn1 := joinPeer(t, s, "abc", "anon1", "user")
	s.handleMessage(p1, []byte(`{"type":"upgradeIdentity","oldUserId":"anon1","newUserId":"user_7","newName":"alice","newIsAdmin":false}`))

	if p1.userID != "user_7" {
		t.Errorf("peer user id = %q, want user_7", p1.userID)
	}
	_, users := lastStatePair(t, conn1)
	if len(users.Users) != 1 || users.Users[0].UserID != "user_7" {
		t.Errorf("broadcast user list: %+v", users.Users)
	}
	if s.metrics.IdentityUpgrades.Load() != 1 {
		t.Error("upgrade not counted")
	}
}

func TestDispatchCursorUpdate(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	p1, conn1 := joinPeer(t, s, "abc", "u1", "user")
	s.handleMessage(p1, []byte(`{"type":"cursorUpdate","userId":"u1","x":5,"y":6}`))

	if len(conn1.sent) != 1 {
		t.Fatalf("cursor update produced %d sends, want 1", len(conn1.sent))
	}
	cur, ok := conn1.sent[0].(protocol.CursorUpdatePayload)
	if !ok || cur.X != 5 || cur.Y != 6 {
		t.Errorf("payload: %#v", conn1.sent[0])
	}
}

func TestDispatchMalformedIsDropped(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	p1, conn1 := joinPeer(t, s, "abc", "u1", "user")
	s.handleMessage(p1, []byte(`{"type":"elementGrab",`))
	s.handleMessage(p1, []byte(`{"type":"teleport","userId":"u1"}`))
	if len(conn1.sent) != 0 {
		t.Errorf("bad input produced %d sends", len(conn1.sent))
	}
	if _, ok := p1.sess.User("u1"); !ok {
		t.Error("user lost after bad input")
	}
}

func TestDisconnectRemovesSessionWhenEmpty(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	p1, _ := joinPeer(t, s, "abc", "u1", "user")
	p2, conn2 := joinPeer(t, s, "abc", "u2", "user")
	conn2.reset()

	s.disconnect(p1, "test")
	if _, ok := s.registry.Get("abc"); !ok {
		t.Fatal("session removed while users remain")
	}
	// Remaining members see the updated user list.
	_, users := lastStatePair(t, conn2)
	if len(users.Users) != 1 || users.Users[0].UserID != "u2" {
		t.Errorf("user list after leave: %+v", users.Users)
	}
	if users.Users[0].SessionRole != "owner" {
		t.Errorf("ownership not passed on leave: %+v", users.Users[0])
	}

	s.disconnect(p2, "test")
	if _, ok := s.registry.Get("abc"); ok {
		t.Error("empty session not removed")
	}
	if s.metrics.SessionsRemoved.Load() != 1 {
		t.Error("session removal not counted")
	}
}

func TestBroadcastSurvivesSendFailure(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	p1, conn1 := joinPeer(t, s, "abc", "u1", "user")
	_, conn2 := joinPeer(t, s, "abc", "u2", "user")
	conn1.fail = true
	conn2.reset()

	s.handleMessage(p1, []byte(`{"type":"elementGrab","userId":"u1","elementId":1}`))

	// The healthy member still receives the full broadcast.
	state, _ := lastStatePair(t, conn2)
	if state.Elements[0].LockedBy != "u1" {
		t.Errorf("mutation lost after a send failure: %+v", state.Elements[0])
	}
}

func TestShutdownClosesConnections(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	live := &fakeConn{}
	gone := &fakeConn{}
	s.trackConn(live)
	s.trackConn(gone)
	s.untrackConn(gone)

	s.Shutdown()

	if !live.closed {
		t.Error("tracked connection not closed on shutdown")
	}
	if gone.closed {
		t.Error("untracked connection closed on shutdown")
	}
}

var _ model.Conn = (*fakeConn)(nil)
