package display

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/mouse"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"microvol/pkg/annotation"
)

func TestLayoutDest(t *testing.T) {
	tests := []struct {
		name   string
		window image.Point
		frame  image.Point
		want   image.Rectangle
	}{
		{"same size", image.Pt(100, 50), image.Pt(100, 50), image.Rect(0, 0, 100, 50)},
		{"letterboxed", image.Pt(200, 200), image.Pt(100, 50), image.Rect(0, 50, 200, 150)},
		{"pillarboxed", image.Pt(200, 100), image.Pt(50, 50), image.Rect(50, 0, 150, 100)},
		{"no window", image.Pt(0, 0), image.Pt(10, 10), image.Rectangle{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := layout{window: tt.window, frame: tt.frame}
			assert.Equal(t, tt.want, l.dest())
		})
	}
}

func TestLayoutToImage(t *testing.T) {
	l := layout{window: image.Pt(200, 200), frame: image.Pt(100, 50)}
	assert.Equal(t, image.Pt(0, 0), l.toImage(0, 50))
	assert.Equal(t, image.Pt(50, 25), l.toImage(100, 100))
	assert.Equal(t, image.Pt(99, 49), l.toImage(199.5, 149.5))
	assert.Equal(t, image.Pt(0, -1), l.toImage(0, 49))
}

func TestTranslateDrag(t *testing.T) {
	in := &input{layout: layout{window: image.Pt(100, 100), frame: image.Pt(100, 100)}}

	ev, act := in.translate(mouse.Event{X: 10, Y: 10, Direction: mouse.DirNone})
	assert.Equal(t, actionNone, act, "hover without a press is ignored")

	ev, act = in.translate(mouse.Event{X: 10, Y: 20, Button: mouse.ButtonLeft, Direction: mouse.DirPress})
	assert.Equal(t, actionDeliver, act)
	assert.Equal(t, annotation.Event{Kind: annotation.EventPointerDown, Point: image.Pt(10, 20)}, ev)

	ev, act = in.translate(mouse.Event{X: 30, Y: 40, Direction: mouse.DirNone})
	assert.Equal(t, actionDeliver, act)
	assert.Equal(t, annotation.EventPointerMove, ev.Kind)
	assert.Equal(t, image.Pt(30, 40), ev.Point)

	ev, act = in.translate(mouse.Event{X: 50, Y: 60, Button: mouse.ButtonLeft, Direction: mouse.DirRelease})
	assert.Equal(t, actionDeliver, act)
	assert.Equal(t, annotation.Event{Kind: annotation.EventPointerUp, Point: image.Pt(50, 60)}, ev)

	_, act = in.translate(mouse.Event{X: 50, Y: 60, Button: mouse.ButtonLeft, Direction: mouse.DirRelease})
	assert.Equal(t, actionNone, act, "release without a press is ignored")

	_, act = in.translate(mouse.Event{X: 50, Y: 60, Button: mouse.ButtonRight, Direction: mouse.DirPress})
	assert.Equal(t, actionNone, act)
}

func TestTranslateKeys(t *testing.T) {
	in := &input{}
	tests := []struct {
		name string
		ev   key.Event
		want annotation.EventKind
		act  action
	}{
		{"reset", key.Event{Rune: 'r', Direction: key.DirPress}, annotation.EventReset, actionDeliver},
		{"quit", key.Event{Rune: 'q', Direction: key.DirPress}, annotation.EventQuit, actionDeliver},
		{"escape", key.Event{Rune: -1, Code: key.CodeEscape, Direction: key.DirPress}, annotation.EventQuit, actionDeliver},
		{"release ignored", key.Event{Rune: 'r', Direction: key.DirRelease}, 0, actionNone},
		{"other key", key.Event{Rune: 'x', Direction: key.DirPress}, 0, actionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, act := in.translate(tt.ev)
			assert.Equal(t, tt.act, act)
			assert.Equal(t, tt.want, ev.Kind)
		})
	}
}

func TestTranslateWindowEvents(t *testing.T) {
	in := &input{}

	_, act := in.translate(size.Event{WidthPx: 640, HeightPx: 480})
	assert.Equal(t, actionResize, act)
	assert.Equal(t, image.Pt(640, 480), in.layout.window)

	_, act = in.translate(paint.Event{})
	assert.Equal(t, actionRepaint, act)

	_, act = in.translate(lifecycle.Event{To: lifecycle.StageDead})
	assert.Equal(t, actionClose, act)

	_, act = in.translate(lifecycle.Event{To: lifecycle.StageFocused})
	assert.Equal(t, actionNone, act)
}
