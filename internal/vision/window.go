package vision

import (
	"github.com/clalos/zoneguard/internal/zone"
	"gocv.io/x/gocv"
)

// OpenCV mouse event codes delivered to the window's mouse handler.
const (
	mouseLeftButtonDown  = 1
	mouseRightButtonDown = 2
)

// NoKey is what PollKey returns when no key was pressed.
const NoKey = -1

// Window is the operator's view: an OpenCV HighGUI window that shows frames,
// reports key presses and forwards mouse clicks as zone pointer events.
type Window struct {
	win *gocv.Window
}

// NewWindow opens a window titled name.
func NewWindow(name string) *Window {
	return &Window{win: gocv.NewWindow(name)}
}

// Show displays img.
func (w *Window) Show(img gocv.Mat) {
	w.win.IMShow(img)
}

// PollKey waits one millisecond for a key press and returns its low byte,
// or NoKey.
func (w *Window) PollKey() int {
	key := w.win.WaitKey(1)
	if key < 0 {
		return NoKey
	}
	return key & 0xFF
}

// OnPointer registers fn for mouse input: a left click adds a point, a
// right click resets the zone. Other mouse events are ignored.
func (w *Window) OnPointer(fn func(zone.Pointer)) {
	w.win.SetMouseHandler(func(event, x, y, flags int, _ interface{}) {
		if p, ok := pointerFromMouse(event, x, y); ok {
			fn(p)
		}
	}, nil)
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.win.Close()
}

func pointerFromMouse(event, x, y int) (zone.Pointer, bool) {
	switch event {
	case mouseLeftButtonDown:
		return zone.Pointer{Action: zone.PointerAdd, X: x, Y: y}, true
	case mouseRightButtonDown:
		return zone.Pointer{Action: zone.PointerReset, X: x, Y: y}, true
	default:
		return zone.Pointer{}, false
	}
}

// NullDisplay is used for headless runs. Frames are discarded, no key is
// ever pressed and no pointer input arrives.
type NullDisplay struct{}

func (NullDisplay) Show(gocv.Mat) {}
func (NullDisplay) PollKey() int { return NoKey }
func (NullDisplay) OnPointer(func(zone.Pointer)) {}
func (NullDisplay) Close() error { return nil }
