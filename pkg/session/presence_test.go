package session_test

import (
	"testing"

	"github.com/boardsync/boardsync/pkg/model"
	"github.com/boardsync/boardsync/pkg/session"
)

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	return session.NewRegistry(nil).GetOrCreate("test")
}

func mustUser(t *testing.T, s *session.Session, userID string) model.User {
	t.Helper()
	u, ok := s.User(userID)
	if !ok {
		t.Fatalf("user %q not present", userID)
	}
	return u
}

func TestJoinFirstUserBecomesOwner(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	first := s.Join("u1", "Alice", false, nil)
	if first.SessionRole != model.RoleOwner {
		t.Fatalf("first joiner role = %v, want owner", first.SessionRole)
	}
	second := s.Join("u2", "Bob", false, nil)
	if second.SessionRole != model.RoleViewer {
		t.Errorf("second joiner role = %v, want viewer", second.SessionRole)
	}
	if first.JoinOrder >= second.JoinOrder {
		t.Errorf("join orders not increasing: %d then %d", first.JoinOrder, second.JoinOrder)
	}
}

func TestJoinDefaults(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	u := s.Join("u1", "", false, nil)
	if u.Name != model.DefaultName {
		t.Errorf("empty name should default to %q, got %q", model.DefaultName, u.Name)
	}
	if u.Color != model.ColorFromUserID("u1") {
		t.Errorf("color not derived from user id: %q", u.Color)
	}
	if s.Join("", "ghost", false, nil) != nil {
		t.Error("empty user id must be rejected")
	}
}

func TestJoinReconnectKeepsRoles(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	s.Join("u1", "Alice", false, nil)
	s.Join("u2", "Bob", false, nil)
	s.MakeEditor("u1", "u2")

	// Reconnect under the same id: name refreshes, roles and join order stay.
	before := mustUser(t, s, "u2")
	again := s.Join("u2", "Bobby", false, nil)
	if again.SessionRole != model.RoleEditor {
		t.Errorf("reconnect changed session role to %v", again.SessionRole)
	}
	if again.JoinOrder != before.JoinOrder {
		t.Errorf("reconnect changed join order %d -> %d", before.JoinOrder, again.JoinOrder)
	}
	if again.Name != "Bobby" {
		t.Errorf("reconnect should refresh name, got %q", again.Name)
	}
	if s.UserCount() != 2 {
		t.Errorf("reconnect duplicated the user: count = %d", s.UserCount())
	}
}

func TestJoinAdminElevatesNeverDemotes(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	u := s.Join("u1", "Alice", true, nil)
	if u.GlobalRole != model.GlobalAdmin {
		t.Fatal("admin join should set the global admin role")
	}
	// A later join without the admin flag keeps the elevated role.
	u = s.Join("u1", "Alice", false, nil)
	if u.GlobalRole != model.GlobalAdmin {
		t.Error("re-join without admin flag must not demote")
	}
}

func TestRemoveOwnerSuccession(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	s.Join("u1", "Alice", false, nil)
	s.Join("u2", "Bob", false, nil)
	s.Join("u3", "Cara", false, nil)

	if removed := s.Remove("u1"); removed == nil {
		t.Fatal("remove returned nil for a present user")
	}
	// Earliest remaining joiner inherits ownership.
	if got := mustUser(t, s, "u2").SessionRole; got != model.RoleOwner {
		t.Errorf("u2 role = %v, want owner", got)
	}
	if got := mustUser(t, s, "u3").SessionRole; got != model.RoleViewer {
		t.Errorf("u3 role = %v, want viewer", got)
	}

	if s.Remove("ghost") != nil {
		t.Error("removing an absent user must return nil")
	}
}

func TestRemoveReleasesLocks(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	s.Join("u1", "", false, nil)
	s.Join("u2", "", false, nil)
	if !s.Grab("u1", 1) {
		t.Fatal("grab failed")
	}

	s.Remove("u1")
	el, _ := s.Element(1)
	if el.LockedBy != "" {
		t.Errorf("lock survived its holder: %q", el.LockedBy)
	}
	if !s.Grab("u2", 1) {
		t.Error("element should be grabbable after holder left")
	}
}

func TestUpgradeCarriesStateForward(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	anon := s.Join("anon1", "Alice", false, nil)
	s.Join("u2", "Bob", false, nil)
	if !s.Grab("anon1", 1) {
		t.Fatal("grab failed")
	}

	up := s.Upgrade("anon1", "user_7", "alice", false, nil)
	if up == nil {
		t.Fatal("upgrade returned nil")
	}
	if up.UserID != "user_7" || up.Name != "alice" {
		t.Errorf("identity not rewritten: %+v", up)
	}
	if up.JoinOrder != anon.JoinOrder {
		t.Errorf("join order changed %d -> %d", anon.JoinOrder, up.JoinOrder)
	}
	if up.SessionRole != model.RoleOwner {
		t.Errorf("session role not carried: %v", up.SessionRole)
	}
	if _, ok := s.User("anon1"); ok {
		t.Error("old identity still present")
	}
	el, _ := s.Element(1)
	if el.LockedBy != "user_7" {
		t.Errorf("lock not transferred: %q", el.LockedBy)
	}
}

func TestUpgradeRestoresEditorGrant(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	s.Join("owner", "", false, nil)
	s.Join("user_9", "Dana", false, nil)
	s.MakeEditor("owner", "user_9")

	// Dana drops to anonymous, then re-authenticates later.
	s.Downgrade("user_9", "anonX", nil)
	if got := mustUser(t, s, "anonX").SessionRole; got != model.RoleViewer {
		t.Fatalf("downgraded role = %v, want viewer", got)
	}

	back := s.Upgrade("anonX", "user_9", "Dana", false, nil)
	if back.SessionRole != model.RoleEditor {
		t.Errorf("remembered editor grant not restored: %v", back.SessionRole)
	}
}

func TestDowngradeForcesAnonymousViewer(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	s.Join("user_1", "Alice", true, nil)
	s.Join("u2", "Bob", false, nil)
	if !s.Grab("user_1", 2) {
		t.Fatal("grab failed")
	}

	down := s.Downgrade("user_1", "anon9", nil)
	if down == nil {
		t.Fatal("downgrade returned nil")
	}
	if down.Name != model.DefaultName || down.GlobalRole != model.GlobalUser || down.SessionRole != model.RoleViewer {
		t.Errorf("downgrade left privileged state: %+v", down)
	}
	el, _ := s.Element(2)
	if el.LockedBy != "anon9" {
		t.Errorf("lock not transferred on downgrade: %q", el.LockedBy)
	}
	// Ownership passed on, excluding the downgraded identity.
	if got := mustUser(t, s, "u2").SessionRole; got != model.RoleOwner {
		t.Errorf("u2 role = %v, want owner", got)
	}
}

func TestDowngradeSoleOwnerLeavesNoOwner(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	s.Join("user_1", "Alice", false, nil)
	down := s.Downgrade("user_1", "anon1", nil)

	// Succession excludes the downgraded id, so a sole owner leaves the
	// session momentarily ownerless. The next join claims ownership.
	if down.SessionRole != model.RoleViewer {
		t.Fatalf("downgraded role = %v, want viewer", down.SessionRole)
	}
	next := s.Join("u2", "Bob", false, nil)
	if next.SessionRole != model.RoleOwner {
		t.Errorf("next joiner role = %v, want owner", next.SessionRole)
	}
}

func TestKick(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	s.Join("owner", "", false, nil)
	s.Join("victim", "", false, nil)
	s.Join("bystander", "", false, nil)
	if !s.Grab("victim", 1) {
		t.Fatal("grab failed")
	}

	t.Run("viewer_cannot_kick", func(t *testing.T) {
		if s.Kick("bystander", "victim") != nil {
			t.Error("viewer kick must be refused")
		}
	})

	t.Run("owner_untouchable", func(t *testing.T) {
		if s.Kick("owner", "owner") != nil {
			t.Error("owner must not be kickable")
		}
	})

	t.Run("owner_kicks_viewer", func(t *testing.T) {
		target := s.Kick("owner", "victim")
		if target == nil {
			t.Fatal("kick returned nil")
		}
		if _, ok := s.User("victim"); ok {
			t.Error("kicked user still present")
		}
		el, _ := s.Element(1)
		if el.LockedBy != "" {
			t.Errorf("kicked user's lock not released: %q", el.LockedBy)
		}
	})
}

func TestMakeAndRemoveEditor(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	s.Join("owner", "", false, nil)
	s.Join("u2", "", false, nil)
	admin := s.Join("u3", "", true, nil)

	if s.MakeEditor("u2", "u2") {
		t.Error("non-manager granted a role")
	}
	if !s.MakeEditor("owner", "u2") {
		t.Fatal("owner could not grant editor")
	}
	if got := mustUser(t, s, "u2").SessionRole; got != model.RoleEditor {
		t.Errorf("u2 role = %v, want editor", got)
	}

	// Owners and admins are never re-ranked.
	if s.MakeEditor("owner", "owner") || s.MakeEditor("owner", "u3") {
		t.Error("owner/admin must not be re-ranked")
	}
	if admin.SessionRole == model.RoleEditor {
		t.Error("admin session role mutated")
	}

	if !s.RemoveEditor("owner", "u2") {
		t.Fatal("owner could not revoke editor")
	}
	if got := mustUser(t, s, "u2").SessionRole; got != model.RoleViewer {
		t.Errorf("u2 role = %v, want viewer", got)
	}
	// Revoking a non-editor is a no-op.
	if s.RemoveEditor("owner", "u2") {
		t.Error("revoking a viewer should report no change")
	}
}

func TestRevokedGrantRemembered(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	s.Join("owner", "", false, nil)
	s.Join("user_5", "", false, nil)
	s.MakeEditor("owner", "user_5")
	s.RemoveEditor("owner", "user_5")

	// The revocation is what the side table remembers now.
	s.Remove("user_5")
	back := s.Join("user_5", "", false, nil)
	if back.SessionRole != model.RoleViewer {
		t.Errorf("revoked grant not remembered, role = %v", back.SessionRole)
	}
}

func TestUsersSnapshotSortedByJoinOrder(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	s.Join("c", "", false, nil)
	s.Join("a", "", false, nil)
	s.Join("b", "", false, nil)
	s.Remove("a")
	s.Join("d", "", false, nil)

	users := s.UsersSnapshot()
	for i := 1; i < len(users); i++ {
		if users[i-1].JoinOrder > users[i].JoinOrder {
			t.Fatalf("snapshot not sorted by join order: %+v", users)
		}
	}
	if users[0].UserID != "c" {
		t.Errorf("first user = %q, want %q", users[0].UserID, "c")
	}
}

func TestRename(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)

	s.Join("owner", "", false, nil)
	s.Join("viewer", "", false, nil)

	if s.Rename("viewer", "Stolen") {
		t.Error("viewer renamed the session")
	}
	if s.Rename("owner", "") {
		t.Error("empty name accepted")
	}
	if !s.Rename("owner", "Q3 Roadmap") {
		t.Fatal("owner rename refused")
	}
	if got := s.ProjectName(); got != "Q3 Roadmap" {
		t.Errorf("project name = %q", got)
	}
}

func TestChat(t *testing.T) {
	t.Parallel()
	s := newTestSession(t)
	s.Join("u1", "", false, nil)

	if _, ok := s.AppendChat("ghost", "hi"); ok {
		t.Error("chat from an absent user accepted")
	}
	if _, ok := s.AppendChat("u1", ""); ok {
		t.Error("empty chat accepted")
	}
	msg, ok := s.AppendChat("u1", "hello")
	if !ok || msg.UserID != "u1" || msg.Text != "hello" || msg.Timestamp == 0 {
		t.Fatalf("unexpected message: %+v ok=%v", msg, ok)
	}
	if history := s.ChatHistory(); len(history) != 1 || history[0] != msg {
		t.Errorf("history mismatch: %+v", history)
	}
}
