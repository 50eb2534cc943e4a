package annotation

import (
	"fmt"
	"image"
)

// EventSource delivers input events one at a time. NextEvent blocks until an
// event is available and returns false once the source is closed, for
// example when the host window goes away.
type EventSource interface {
	NextEvent() (Event, bool)
}

// Presenter shows a frame to the user.
type Presenter interface {
	Present(frame image.Image) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(frame image.Image) error

// Present calls f(frame).
func (f PresenterFunc) Present(frame image.Image) error { return f(frame) }

// ChanSource is an EventSource reading from a channel. Closing the channel
// closes the source.
type ChanSource <-chan Event

// NextEvent receives the next event from the channel.
func (c ChanSource) NextEvent() (Event, bool) {
	ev, ok := <-c
	return ev, ok
}

// Run feeds events from src to a until a Quit event arrives or src closes,
// presenting the frame after the initial state and after every event.
// Run does not end the session; callers decide whether to persist.
func Run(a *Annotator, src EventSource, p Presenter) error {
	if err := p.Present(a.Frame()); err != nil {
		return fmt.Errorf("presenting initial frame: %w", err)
	}
	for {
		ev, ok := src.NextEvent()
		if !ok {
			a.log.Debug("event source closed")
			return nil
		}
		if a.Handle(ev) {
			a.log.Debug("quit requested")
			return nil
		}
		if err := p.Present(a.Frame()); err != nil {
			return fmt.Errorf("presenting frame after %s: %w", ev.Kind, err)
		}
	}
}
