package model

// Element is a shared, lockable visual object. Slice order inside a session
// is z-order (creation order) and is preserved by every operation.
type Element struct {
	ID       int64   `json:"id"`
	Shape    string  `json:"shape,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	W        float64 `json:"w"`
	H        float64 `json:"h"`
	LockedBy string  `json:"lockedBy,omitempty"` // userId holding the lock, empty if unlocked
}

// ElementSnapshot is the minimal state needed to invert or replay an
// operation on one element: geometry for move/resize, the full visual state
// for create/delete.
type ElementSnapshot struct {
	Shape string  `json:"shape,omitempty"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
}

// Snapshot captures the element's current visual state (lock excluded).
func (e *Element) Snapshot() ElementSnapshot {
	return ElementSnapshot{Shape: e.Shape, X: e.X, Y: e.Y, W: e.W, H: e.H}
}

// Restore reinstates a snapshot as a fresh, unlocked element.
func (s ElementSnapshot) Restore(id int64) *Element {
	return &Element{ID: id, Shape: s.Shape, X: s.X, Y: s.Y, W: s.W, H: s.H}
}
