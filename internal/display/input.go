package display

import (
	"image"

	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/mouse"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"microvol/pkg/annotation"
)

// action tells the host what a window event means.
type action int

const (
	actionNone action = iota
	actionDeliver
	actionRepaint
	actionResize
	actionClose
)

// input tracks pointer state across window events.
type input struct {
	layout   layout
	dragging bool
}

// translate maps a window event to an annotation event.
func (in *input) translate(e interface{}) (annotation.Event, action) {
	switch e := e.(type) {
	case lifecycle.Event:
		if e.To == lifecycle.StageDead {
			return annotation.Event{}, actionClose
		}
	case size.Event:
		in.layout.window = image.Pt(e.WidthPx, e.HeightPx)
		return annotation.Event{}, actionResize
	case paint.Event:
		return annotation.Event{}, actionRepaint
	case mouse.Event:
		p := in.layout.toImage(e.X, e.Y)
		switch {
		case e.Button == mouse.ButtonLeft && e.Direction == mouse.DirPress:
			in.dragging = true
			return annotation.Event{Kind: annotation.EventPointerDown, Point: p}, actionDeliver
		case e.Button == mouse.ButtonLeft && e.Direction == mouse.DirRelease:
			if !in.dragging {
				return annotation.Event{}, actionNone
			}
			in.dragging = false
			return annotation.Event{Kind: annotation.EventPointerUp, Point: p}, actionDeliver
		case e.Direction == mouse.DirNone && in.dragging:
			return annotation.Event{Kind: annotation.EventPointerMove, Point: p}, actionDeliver
		}
	case key.Event:
		if e.Direction != key.DirPress {
			break
		}
		switch {
		case e.Code == key.CodeEscape || e.Rune == 'q' || e.Rune == 'Q':
			return annotation.Event{Kind: annotation.EventQuit}, actionDeliver
		case e.Rune == 'r' || e.Rune == 'R':
			in.dragging = false
			return annotation.Event{Kind: annotation.EventReset}, actionDeliver
		}
	}
	return annotation.Event{}, actionNone
}

// layout places a frame inside the window, scaled to fit and centred.
type layout struct {
	window image.Point
	frame  image.Point
}

// dest is the window rectangle the frame is drawn into.
func (l layout) dest() image.Rectangle {
	if l.frame.X <= 0 || l.frame.Y <= 0 || l.window.X <= 0 || l.window.Y <= 0 {
		return image.Rectangle{}
	}
	w, h := l.window.X, l.frame.Y*l.window.X/l.frame.X
	if h > l.window.Y {
		w, h = l.frame.X*l.window.Y/l.frame.Y, l.window.Y
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	origin := image.Pt((l.window.X-w)/2, (l.window.Y-h)/2)
	return image.Rectangle{Min: origin, Max: origin.Add(image.Pt(w, h))}
}

// toImage converts window coordinates to frame pixel coordinates. Points
// outside the frame map outside its bounds; the annotator clamps them.
func (l layout) toImage(x, y float32) image.Point {
	d := l.dest()
	if d.Empty() {
		return image.Pt(int(x), int(y))
	}
	fx := (float64(x) - float64(d.Min.X)) * float64(l.frame.X) / float64(d.Dx())
	fy := (float64(y) - float64(d.Min.Y)) * float64(l.frame.Y) / float64(d.Dy())
	return image.Pt(floor(fx), floor(fy))
}

func floor(v float64) int {
	i := int(v)
	if float64(i) > v {
		i--
	}
	return i
}
