package session

import (
	"errors"

	"github.com/boardsync/boardsync/pkg/model"
)

// ErrNothingToUndo (or redo) means the relevant stack was empty; callers
// drop the request silently.
var ErrNothingToUndo = errors.New("session: nothing to undo")
var ErrNothingToRedo = errors.New("session: nothing to redo")

// ErrElementLocked means an element referenced by the action is locked by
// someone else; the action was not applied and both stacks are unchanged.
// Callers unicast an undo/redo failure with LockConflictReason.
var ErrElementLocked = errors.New("session: element locked by another user")

// LockConflictReason is the human-readable reason sent to the requesting
// client when an undo or redo is blocked by a foreign lock.
const LockConflictReason = "Element locked by another user or concurrency issue."

// PushAction appends an action to the undo stack, unconditionally clearing
// the redo stack (linear history). The stack is capped; the oldest entry is
// dropped on overflow.
func (s *Session) PushAction(a model.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushActionLocked(a)
}

func (s *Session) pushActionLocked(a model.Action) {
	s.redoStack = nil
	s.undoStack = append(s.undoStack, a)
	if len(s.undoStack) > maxUndoDepth {
		s.undoStack = s.undoStack[1:]
	}
}

// Undo reverts the most recent action on behalf of userID. The caller's
// pending moves and resizes are finalized first so the drag in progress is
// what gets undone. The whole action is checked against current locks before
// anything reverts: one foreign lock aborts it atomically.
func (s *Session) Undo(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finalizeMovesLocked(userID)
	s.finalizeResizesLocked(userID)

	if len(s.undoStack) == 0 {
		return ErrNothingToUndo
	}
	a := s.undoStack[len(s.undoStack)-1]
	if !s.canApplyActionLocked(a, userID) {
		return ErrElementLocked
	}
	s.undoStack = s.undoStack[:len(s.undoStack)-1]
	s.revertActionLocked(a)
	s.redoStack = append(s.redoStack, a)
	return nil
}

// Redo re-applies the most recently undone action, symmetric to Undo.
func (s *Session) Redo(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finalizeMovesLocked(userID)
	s.finalizeResizesLocked(userID)

	if len(s.redoStack) == 0 {
		return ErrNothingToRedo
	}
	a := s.redoStack[len(s.redoStack)-1]
	if !s.canApplyActionLocked(a, userID) {
		return ErrElementLocked
	}
	s.redoStack = s.redoStack[:len(s.redoStack)-1]
	s.applyActionLocked(a)
	s.undoStack = append(s.undoStack, a)
	return nil
}

// ClearHistory empties both stacks, e.g. on an external board reset.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.undoStack = nil
	s.redoStack = nil
}

// HistoryDepth returns the current undo and redo stack sizes.
func (s *Session) HistoryDepth() (undo, redo int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undoStack), len(s.redoStack)
}

// canApplyActionLocked requires every element referenced by a known action
// type to be unlocked or locked by userID. Unrecognised action types pass:
// their diffs are never interpreted, so no lock can conflict.
func (s *Session) canApplyActionLocked(a model.Action, userID string) bool {
	if !a.Known() {
		return true
	}
	for _, d := range a.Diffs {
		el := s.findElementLocked(d.ElementID)
		if el == nil {
			continue
		}
		if el.LockedBy != "" && el.LockedBy != userID {
			return false
		}
	}
	return true
}

// applyActionLocked replays an action forward (the redo direction).
func (s *Session) applyActionLocked(a model.Action) {
	switch a.Type {
	case model.ActionMove:
		for _, d := range a.Diffs {
			if el := s.findElementLocked(d.ElementID); el != nil {
				el.X, el.Y = d.To.X, d.To.Y
			}
		}
	case model.ActionResize:
		for _, d := range a.Diffs {
			if el := s.findElementLocked(d.ElementID); el != nil {
				el.X, el.Y, el.W, el.H = d.To.X, d.To.Y, d.To.W, d.To.H
			}
		}
	case model.ActionCreate:
		for _, d := range a.Diffs {
			if s.findElementLocked(d.ElementID) == nil {
				s.elements = append(s.elements, d.To.Restore(d.ElementID))
			}
		}
	case model.ActionDelete:
		for _, d := range a.Diffs {
			s.removeElementLocked(d.ElementID)
		}
	}
}

// revertActionLocked replays an action backward (the undo direction).
func (s *Session) revertActionLocked(a model.Action) {
	switch a.Type {
	case model.ActionMove:
		for _, d := range a.Diffs {
			if el := s.findElementLocked(d.ElementID); el != nil {
				el.X, el.Y = d.From.X, d.From.Y
			}
		}
	case model.ActionResize:
		for _, d := range a.Diffs {
			if el := s.findElementLocked(d.ElementID); el != nil {
				el.X, el.Y, el.W, el.H = d.From.X, d.From.Y, d.From.W, d.From.H
			}
		}
	case model.ActionCreate:
		for _, d := range a.Diffs {
			s.removeElementLocked(d.ElementID)
		}
	case model.ActionDelete:
		for _, d := range a.Diffs {
			if s.findElementLocked(d.ElementID) == nil {
				s.elements = append(s.elements, d.From.Restore(d.ElementID))
			}
		}
	}
}
