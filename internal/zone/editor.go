package zone

import (
	"errors"
	"image"
)

// ErrZoneIncomplete is returned by Confirm while the polygon has fewer than
// MinPoints points. The editor stays in the editing phase.
var ErrZoneIncomplete = errors.New("zone needs at least 4 points")

// Phase is the editor's position in the edit/detect lifecycle.
type Phase int

const (
	// PhaseEditing accepts point additions and resets.
	PhaseEditing Phase = iota
	// PhaseDetecting means the polygon was confirmed and is frozen.
	PhaseDetecting
)

// String returns a string representation of the Phase.
func (p Phase) String() string {
	switch p {
	case PhaseEditing:
		return "EDITING"
	case PhaseDetecting:
		return "DETECTING"
	default:
		return "UNKNOWN"
	}
}

// PointerAction is what an operator pointer event asks the editor to do.
type PointerAction int

const (
	// PointerAdd appends the event position to the polygon.
	PointerAdd PointerAction = iota + 1
	// PointerReset clears the polygon.
	PointerReset
)

// Pointer is a single operator pointer event in frame coordinates.
type Pointer struct {
	Action PointerAction
	X, Y   int
}

// Editor captures the zone polygon from operator input. It is a two-phase
// state machine: points may be added or cleared while editing, and Confirm
// moves it to detecting once the polygon is ready. Edits after a successful
// confirm are ignored.
type Editor struct {
	points Polygon
	phase  Phase
}

// NewEditor returns an editor in the editing phase with an empty polygon.
func NewEditor() *Editor {
	return &Editor{phase: PhaseEditing}
}

// AddPoint appends (x, y) to the polygon. It reports whether the point was
// accepted.
func (e *Editor) AddPoint(x, y int) bool {
	if e.phase != PhaseEditing {
		return false
	}
	e.points = append(e.points, image.Pt(x, y))
	return true
}

// Reset clears the polygon. It reports whether the editor was still editing.
func (e *Editor) Reset() bool {
	if e.phase != PhaseEditing {
		return false
	}
	e.points = nil
	return true
}

// HandlePointer applies one pointer event and reports whether it changed the
// polygon.
func (e *Editor) HandlePointer(p Pointer) bool {
	switch p.Action {
	case PointerAdd:
		return e.AddPoint(p.X, p.Y)
	case PointerReset:
		return e.Reset()
	default:
		return false
	}
}

// IsReady reports whether the polygon has at least MinPoints points.
func (e *Editor) IsReady() bool {
	return e.points.Ready()
}

// Confirm ends the editing phase. It fails with ErrZoneIncomplete while the
// polygon is not ready. Confirming twice is a no-op.
func (e *Editor) Confirm() error {
	if e.phase == PhaseDetecting {
		return nil
	}
	if !e.IsReady() {
		return ErrZoneIncomplete
	}
	e.phase = PhaseDetecting
	return nil
}

// Phase returns the current phase.
func (e *Editor) Phase() Phase {
	return e.phase
}

// Points returns a copy of the points entered so far.
func (e *Editor) Points() Polygon {
	return e.points.Clone()
}

// Polygon returns the confirmed zone, or nil while still editing.
func (e *Editor) Polygon() Polygon {
	if e.phase != PhaseDetecting {
		return nil
	}
	return e.points.Clone()
}
