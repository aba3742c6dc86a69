package protocol

import "github.com/boardsync/boardsync/pkg/model"

// Outbound payload types.
const (
	TypeElementState   = "elementState"
	TypeSessionUsers   = "sessionUsers"
	TypeUndoRedoFailed = "undoRedoFailed"
	TypeKicked         = "kicked"
	TypeChatMessage    = "chatMessage"
)

// ElementStatePayload is the first canonical broadcast: the full element
// sequence (z-order preserved) plus the project name.
type ElementStatePayload struct {
	Type        string          `json:"type"`
	Elements    []model.Element `json:"elements"`
	ProjectName string          `json:"projectName"`
}

func NewElementState(elements []model.Element, projectName string) ElementStatePayload {
	if elements == nil {
		elements = []model.Element{}
	}
	return ElementStatePayload{Type: TypeElementState, Elements: elements, ProjectName: projectName}
}

// UserInfo is one entry of the canonical user-list broadcast.
type UserInfo struct {
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	SessionRole string `json:"sessionRole"`
	GlobalRole  string `json:"globalRole"`
}

// SessionUsersPayload is the second canonical broadcast: all users sorted by
// join order.
type SessionUsersPayload struct {
	Type  string     `json:"type"`
	Users []UserInfo `json:"users"`
}

// NewSessionUsers builds the user-list payload from an already join-order
// sorted snapshot.
func NewSessionUsers(users []model.User) SessionUsersPayload {
	infos := make([]UserInfo, len(users))
	for i, u := range users {
		infos[i] = UserInfo{
			UserID:      u.UserID,
			Name:        u.Name,
			Color:       u.Color,
			SessionRole: u.SessionRole.String(),
			GlobalRole:  u.GlobalRole.String(),
		}
	}
	return SessionUsersPayload{Type: TypeSessionUsers, Users: infos}
}

// CursorUpdatePayload rebroadcasts one user's ephemeral cursor position.
type CursorUpdatePayload struct {
	Type   string  `json:"type"`
	UserID string  `json:"userId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

func NewCursorUpdate(userID string, x, y float64) CursorUpdatePayload {
	return CursorUpdatePayload{Type: TypeCursorUpdate, UserID: userID, X: x, Y: y}
}

// UndoRedoFailedPayload is unicast to the requester when an undo or redo is
// blocked by a foreign lock.
type UndoRedoFailedPayload struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func NewUndoRedoFailed(reason string) UndoRedoFailedPayload {
	return UndoRedoFailedPayload{Type: TypeUndoRedoFailed, Reason: reason}
}

// KickedPayload is unicast to a kicked user just before their connection is
// closed.
type KickedPayload struct {
	Type string `json:"type"`
}

func NewKicked() KickedPayload {
	return KickedPayload{Type: TypeKicked}
}

// ChatMessagePayload echoes a chat message to every session member.
type ChatMessagePayload struct {
	Type    string            `json:"type"`
	Message model.ChatMessage `json:"message"`
}

func NewChatMessage(msg model.ChatMessage) ChatMessagePayload {
	return ChatMessagePayload{Type: TypeChatMessage, Message: msg}
}
