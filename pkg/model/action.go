package model

// ActionType identifies what an undo/redo action did. Unrecognised types are
// tolerated: they travel between the stacks like any other action but their
// diffs are never interpreted.
type ActionType string

const (
	ActionMove   ActionType = "move"
	ActionResize ActionType = "resize"
	ActionCreate ActionType = "create"
	ActionDelete ActionType = "delete"
)

// Diff records one element's before/after state within an action.
// From is unused for create actions, To is unused for delete actions.
type Diff struct {
	ElementID int64           `json:"elementId"`
	From      ElementSnapshot `json:"from"`
	To        ElementSnapshot `json:"to"`
}

// Action is the unit of undo/redo: one invertible, possibly multi-element
// state change.
type Action struct {
	Type  ActionType `json:"type"`
	Diffs []Diff     `json:"diffs"`
}

// Known reports whether the action's type is one the engine interprets.
func (a Action) Known() bool {
	switch a.Type {
	case ActionMove, ActionResize, ActionCreate, ActionDelete:
		return true
	default:
		return false
	}
}
