// Package protocol defines the JSON wire format: inbound typed events
// (discriminated by a "type" field) and the outbound payloads.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound event types.
const (
	TypeJoin              = "join"
	TypeUpgradeIdentity   = "upgradeIdentity"
	TypeDowngradeIdentity = "downgradeIdentity"
	TypeCursorUpdate      = "cursorUpdate"
	TypeElementGrab       = "elementGrab"
	TypeElementMove       = "elementMove"
	TypeElementRelease    = "elementRelease"
	TypeElementDeselect   = "elementDeselect"
	TypeElementCreate     = "elementCreate"
	TypeElementDelete     = "elementDelete"
	TypeElementResize     = "elementResize"
	TypeElementResizeEnd  = "elementResizeEnd"
	TypeMakeEditor        = "makeEditor"
	TypeRemoveEditor      = "removeEditor"
	TypeKickUser          = "kickUser"
	TypeRenameSession     = "renameSession"
	TypeUndo              = "undo"
	TypeRedo              = "redo"
	TypeChat              = "chat"
)

// ErrUnknownType marks an envelope whose type the dispatcher does not
// recognise. Such messages are dropped silently; the connection stays open.
var ErrUnknownType = errors.New("protocol: unknown message type")

type JoinEvent struct {
	UserID      string `json:"userId"`
	SessionCode string `json:"sessionCode"`
	Name        string `json:"name"`
	UserRole    string `json:"userRole"`
}

type UpgradeIdentityEvent struct {
	OldUserID  string `json:"oldUserId"`
	NewUserID  string `json:"newUserId"`
	NewName    string `json:"newName"`
	NewIsAdmin bool   `json:"newIsAdmin"`
}

type DowngradeIdentityEvent struct {
	OldUserID string `json:"oldUserId"`
	NewUserID string `json:"newUserId"`
}

type CursorUpdateEvent struct {
	UserID string  `json:"userId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type ElementGrabEvent struct {
	UserID    string `json:"userId"`
	ElementID int64  `json:"elementId"`
}

type ElementMoveEvent struct {
	UserID    string  `json:"userId"`
	ElementID int64   `json:"elementId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

type ElementReleaseEvent struct {
	UserID    string `json:"userId"`
	ElementID int64  `json:"elementId"`
}

type ElementDeselectEvent struct {
	UserID     string  `json:"userId"`
	ElementIDs []int64 `json:"elementIds"`
}

type ElementCreateEvent struct {
	UserID string  `json:"userId"`
	Shape  string  `json:"shape"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	W      float64 `json:"w"`
	H      float64 `json:"h"`
}

type ElementDeleteEvent struct {
	UserID     string  `json:"userId"`
	ElementIDs []int64 `json:"elementIds"`
}

type ElementResizeEvent struct {
	UserID    string  `json:"userId"`
	ElementID int64   `json:"elementId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	W         float64 `json:"w"`
	H         float64 `json:"h"`
}

type ElementResizeEndEvent struct {
	UserID     string  `json:"userId"`
	ElementIDs []int64 `json:"elementIds"`
}

type MakeEditorEvent struct {
	UserID       string `json:"userId"`
	TargetUserID string `json:"targetUserId"`
}

type RemoveEditorEvent struct {
	UserID       string `json:"userId"`
	TargetUserID string `json:"targetUserId"`
}

type KickUserEvent struct {
	UserID       string `json:"userId"`
	TargetUserID string `json:"targetUserId"`
}

type RenameSessionEvent struct {
	UserID  string `json:"userId"`
	NewName string `json:"newName"`
}

type UndoEvent struct {
	UserID string `json:"userId"`
}

type RedoEvent struct {
	UserID string `json:"userId"`
}

type ChatEvent struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

// ParseEvent decodes a raw inbound message into its typed event. It returns
// ErrUnknownType for unrecognised discriminants and a wrapped decode error
// for malformed JSON; both are the caller's cue to drop the message.
func ParseEvent(data []byte) (any, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("protocol: decode envelope: %w", err)
	}

	var ev any
	switch env.Type {
	case TypeJoin:
		ev = &JoinEvent{}
	case TypeUpgradeIdentity:
		ev = &UpgradeIdentityEvent{}
	case TypeDowngradeIdentity:
		ev = &DowngradeIdentityEvent{}
	case TypeCursorUpdate:
		ev = &CursorUpdateEvent{}
	case TypeElementGrab:
		ev = &ElementGrabEvent{}
	case TypeElementMove:
		ev = &ElementMoveEvent{}
	case TypeElementRelease:
		ev = &ElementReleaseEvent{}
	case TypeElementDeselect:
		ev = &ElementDeselectEvent{}
	case TypeElementCreate:
		ev = &ElementCreateEvent{}
	case TypeElementDelete:
		ev = &ElementDeleteEvent{}
	case TypeElementResize:
		ev = &ElementResizeEvent{}
	case TypeElementResizeEnd:
		ev = &ElementResizeEndEvent{}
	case TypeMakeEditor:
		ev = &MakeEditorEvent{}
	case TypeRemoveEditor:
		ev = &RemoveEditorEvent{}
	case TypeKickUser:
		ev = &KickUserEvent{}
	case TypeRenameSession:
		ev = &RenameSessionEvent{}
	case TypeUndo:
		ev = &UndoEvent{}
	case TypeRedo:
		ev = &RedoEvent{}
	case TypeChat:
		ev = &ChatEvent{}
	default:
		return nil, ErrUnknownType
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("protocol: decode %s: %w", env.Type, err)
	}
	return ev, nil
}
