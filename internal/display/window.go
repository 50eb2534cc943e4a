// Package display hosts an annotation session in a native window.
package display

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"go.uber.org/zap"
	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	xdraw "golang.org/x/image/draw"

	"microvol/internal/logger"
	"microvol/pkg/annotation"
)

var background = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}

// Options configures the window.
type Options struct {
	Title         string
	Width, Height int
	Logger        *zap.Logger
}

// Run opens a window and feeds its input to a until the user quits or closes
// the window. It must be called from the main goroutine.
func Run(a *annotation.Annotator, opts Options) error {
	var runErr error
	driver.Main(func(s screen.Screen) {
		runErr = run(s, a, opts)
	})
	return runErr
}

func run(s screen.Screen, a *annotation.Annotator, opts Options) error {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = a.Bounds().Dx(), a.Bounds().Dy()
	}
	w, err := s.NewWindow(&screen.NewWindowOptions{Width: opts.Width, Height: opts.Height, Title: opts.Title})
	if err != nil {
		return fmt.Errorf("failed to open window: %w", err)
	}
	defer w.Release()

	h := &host{
		s:   s,
		w:   w,
		log: logger.OrNop(opts.Logger),
		in: input{layout: layout{
			window: image.Pt(opts.Width, opts.Height),
			frame:  a.Bounds().Size(),
		}},
	}
	defer h.releaseBuffer()
	h.log.Debug("window opened", zap.Int("width", opts.Width), zap.Int("height", opts.Height))
	return annotation.Run(a, h, h)
}

// host adapts a shiny window to annotation.EventSource and Presenter.
type host struct {
	s   screen.Screen
	w   screen.Window
	log *zap.Logger

	in    input
	frame image.Image
	buf   screen.Buffer
}

// NextEvent blocks until a window event maps to an annotation event.
// Resize and paint requests are served here.
func (h *host) NextEvent() (annotation.Event, bool) {
	for {
		ev, act := h.in.translate(h.w.NextEvent())
		switch act {
		case actionDeliver:
			return ev, true
		case actionClose:
			return annotation.Event{}, false
		case actionResize, actionRepaint:
			if err := h.paint(); err != nil {
				h.log.Warn("repaint failed", zap.Error(err))
			}
		}
	}
}

// Present draws frame into the window.
func (h *host) Present(frame image.Image) error {
	h.frame = frame
	h.in.layout.frame = frame.Bounds().Size()
	return h.paint()
}

func (h *host) paint() error {
	if h.frame == nil {
		return nil
	}
	size := h.in.layout.window
	if size.X <= 0 || size.Y <= 0 {
		return nil
	}
	if h.buf == nil || h.buf.Size() != size {
		h.releaseBuffer()
		buf, err := h.s.NewBuffer(size)
		if err != nil {
			return fmt.Errorf("failed to allocate buffer: %w", err)
		}
		h.buf = buf
	}

	dst := h.buf.RGBA()
	draw.Draw(dst, dst.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	xdraw.NearestNeighbor.Scale(dst, h.in.layout.dest(), h.frame, h.frame.Bounds(), xdraw.Src, nil)

	h.w.Upload(image.Point{}, h.buf, h.buf.Bounds())
	h.w.Publish()
	return nil
}

func (h *host) releaseBuffer() {
	if h.buf != nil {
		h.buf.Release()
		h.buf = nil
	}
}
