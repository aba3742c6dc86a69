package session

import (
	"sort"

	"github.com/boardsync/boardsync/pkg/model"
)

// Grab locks an element for userID if it is free or already theirs. First
// successful grab wins; there is no queueing. The element's current position
// is remembered so the eventual release collapses the drag into one undo
// diff. Returns true if the caller should broadcast.
func (s *Session) Grab(userID string, elementID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el := s.findElementLocked(elementID)
	if el == nil {
		return false
	}
	if el.LockedBy != "" && el.LockedBy != userID {
		return false
	}
	el.LockedBy = userID
	if pm, ok := s.pendingMoves[elementID]; !ok || pm.userID != userID {
		s.pendingMoves[elementID] = pendingMove{userID: userID, x: el.X, y: el.Y}
	}
	return true
}

// Move repositions an element, applied only while userID holds its lock.
func (s *Session) Move(userID string, elementID int64, x, y float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el := s.findElementLocked(elementID)
	if el == nil || el.LockedBy != userID {
		return false
	}
	el.X, el.Y = x, y
	return true
}

// Release unlocks an element held by userID and finalizes any pending move
// into an undo action.
func (s *Session) Release(userID string, elementID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el := s.findElementLocked(elementID)
	if el == nil || el.LockedBy != userID {
		return false
	}
	el.LockedBy = ""
	s.finalizeMoveLocked(userID, elementID)
	return true
}

// Deselect unlocks every listed element currently held by userID, finalizing
// their pending moves. Elements locked by others are untouched.
func (s *Session) Deselect(userID string, elementIDs []int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, id := range elementIDs {
		el := s.findElementLocked(id)
		if el == nil || el.LockedBy != userID {
			continue
		}
		el.LockedBy = ""
		s.finalizeMoveLocked(userID, id)
		changed = true
	}
	return changed
}

// Create appends a new element locked by its creator and records an
// invertible create action.
func (s *Session) Create(userID, shape string, x, y, w, h float64) *model.Element {
	s.mu.Lock()
	defer s.mu.Unlock()

	el := &model.Element{
		ID:       s.nextElementID,
		Shape:    shape,
		X:        x,
		Y:        y,
		W:        w,
		H:        h,
		LockedBy: userID,
	}
	s.nextElementID++
	s.elements = append(s.elements, el)

	s.pushActionLocked(model.Action{
		Type:  model.ActionCreate,
		Diffs: []model.Diff{{ElementID: el.ID, To: el.Snapshot()}},
	})
	return el
}

// Delete removes the subset of the listed elements that userID currently
// holds, recording an invertible delete action capturing each removed
// element's full prior state. Returns the number of elements removed, which
// may be fewer than requested.
func (s *Session) Delete(userID string, elementIDs []int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var diffs []model.Diff
	for _, id := range elementIDs {
		el := s.findElementLocked(id)
		if el == nil || el.LockedBy != userID {
			continue
		}
		diffs = append(diffs, model.Diff{ElementID: id, From: el.Snapshot()})
		s.removeElementLocked(id)
		delete(s.pendingMoves, id)
	}
	if len(diffs) == 0 {
		return 0
	}
	s.pushActionLocked(model.Action{Type: model.ActionDelete, Diffs: diffs})
	return len(diffs)
}

// Resize applies new geometry to an element. A free element is auto-locked
// by the resizing user; an element held by someone else is untouched. The
// first resize per user and element remembers the original geometry for the
// eventual undo diff.
func (s *Session) Resize(userID string, elementID int64, x, y, w, h float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el := s.findElementLocked(elementID)
	if el == nil {
		return false
	}
	if el.LockedBy != "" && el.LockedBy != userID {
		return false
	}
	el.LockedBy = userID

	userMap := s.pendingResizes[userID]
	if userMap == nil {
		userMap = make(map[int64]model.ElementSnapshot)
		s.pendingResizes[userID] = userMap
	}
	if _, ok := userMap[elementID]; !ok {
		userMap[elementID] = el.Snapshot()
	}

	el.X, el.Y, el.W, el.H = x, y, w, h
	return true
}

// ResizeEnd finalizes all of userID's pending resizes into a single undo
// action. Locks stay in place until the client deselects.
func (s *Session) ResizeEnd(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalizeResizesLocked(userID)
}

func (s *Session) removeElementLocked(id int64) {
	for i, el := range s.elements {
		if el.ID == id {
			s.elements = append(s.elements[:i], s.elements[i+1:]...)
			return
		}
	}
}

// finalizeMoveLocked turns the pending move for one element into a move
// action, if the element actually went anywhere.
func (s *Session) finalizeMoveLocked(userID string, elementID int64) {
	pm, ok := s.pendingMoves[elementID]
	if !ok || pm.userID != userID {
		return
	}
	el := s.findElementLocked(elementID)
	delete(s.pendingMoves, elementID)
	if el == nil {
		return
	}
	if pm.x == el.X && pm.y == el.Y {
		return
	}
	s.pushActionLocked(model.Action{
		Type: model.ActionMove,
		Diffs: []model.Diff{{
			ElementID: elementID,
			From:      model.ElementSnapshot{X: pm.x, Y: pm.y},
			To:        model.ElementSnapshot{X: el.X, Y: el.Y},
		}},
	})
}

// finalizeMovesLocked finalizes every pending move owned by userID.
func (s *Session) finalizeMovesLocked(userID string) {
	var ids []int64
	for id, pm := range s.pendingMoves {
		if pm.userID == userID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		s.finalizeMoveLocked(userID, id)
	}
}

// finalizeResizesLocked collapses userID's pending resizes into one resize
// action covering every element whose geometry actually changed.
func (s *Session) finalizeResizesLocked(userID string) bool {
	userMap := s.pendingResizes[userID]
	if userMap == nil {
		return false
	}
	delete(s.pendingResizes, userID)

	ids := make([]int64, 0, len(userMap))
	for id := range userMap {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var diffs []model.Diff
	for _, id := range ids {
		original := userMap[id]
		el := s.findElementLocked(id)
		if el == nil {
			continue
		}
		current := el.Snapshot()
		if original == current {
			continue
		}
		diffs = append(diffs, model.Diff{ElementID: id, From: original, To: current})
	}
	if len(diffs) == 0 {
		return false
	}
	s.pushActionLocked(model.Action{Type: model.ActionResize, Diffs: diffs})
	return true
}
