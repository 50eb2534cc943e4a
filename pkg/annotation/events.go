package annotation

import (
	"fmt"
	"image"
)

// EventKind identifies an input event.
type EventKind int

const (
	EventPointerDown EventKind = iota + 1
	EventPointerMove
	EventPointerUp
	EventReset
	EventQuit
)

func (k EventKind) String() string {
	switch k {
	case EventPointerDown:
		return "pointer-down"
	case EventPointerMove:
		return "pointer-move"
	case EventPointerUp:
		return "pointer-up"
	case EventReset:
		return "reset"
	case EventQuit:
		return "quit"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is an input event in image coordinates. Point is ignored for Reset
// and Quit.
type Event struct {
	Kind  EventKind
	Point image.Point
}

// Handle applies ev and reports whether it asks to end the session.
func (a *Annotator) Handle(ev Event) (quit bool) {
	switch ev.Kind {
	case EventPointerDown:
		a.PointerDown(ev.Point)
	case EventPointerMove:
		a.PointerMove(ev.Point)
	case EventPointerUp:
		a.PointerUp(ev.Point)
	case EventReset:
		a.Reset()
	case EventQuit:
		return true
	}
	return false
}
