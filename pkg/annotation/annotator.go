// Package annotation implements interactive line annotation of a 2D image.
//
// An Annotator keeps three rasters: the original image, the committed image
// with every finished segment burned in, and the preview shown while a
// segment is being dragged. Pointer events move it between the Idle and
// Drawing states; finished segments are recorded in order and can be saved
// together with the committed image.
package annotation

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"microvol/internal/logger"
	"microvol/internal/models"
	"microvol/pkg/config"
)

// State is the interaction state of an Annotator.
type State int

const (
	// Idle waits for a pointer press.
	Idle State = iota
	// Drawing follows the pointer from the anchor until release.
	Drawing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Default output names.
const (
	DefaultImageName    = "annotated_image.png"
	DefaultSegmentsName = "annotations.yaml"
)

// Options configures an Annotator.
type Options struct {
	// Color and Width of drawn segments.
	Color color.RGBA
	Width int

	// OutputDir receives ImageName and SegmentsName when a session is saved.
	OutputDir    string
	ImageName    string
	SegmentsName string

	Logger *zap.Logger
}

// DefaultOptions draws red two-pixel lines and saves to the working directory.
func DefaultOptions() Options {
	return Options{
		Color:        color.RGBA{R: 255, A: 255},
		Width:        2,
		OutputDir:    ".",
		ImageName:    DefaultImageName,
		SegmentsName: DefaultSegmentsName,
	}
}

// OptionsFromConfig builds annotator options from the annotation section of cfg.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	col, err := config.ParseColor(cfg.Annotation.LineColor)
	if err != nil {
		return Options{}, err
	}
	opts := DefaultOptions()
	opts.Color = col
	if cfg.Annotation.LineWidth > 0 {
		opts.Width = cfg.Annotation.LineWidth
	}
	if cfg.Annotation.OutputDir != "" {
		opts.OutputDir = cfg.Annotation.OutputDir
	}
	if cfg.Annotation.ImageName != "" {
		opts.ImageName = cfg.Annotation.ImageName
	}
	if cfg.Annotation.SegmentsName != "" {
		opts.SegmentsName = cfg.Annotation.SegmentsName
	}
	return opts, nil
}

// Annotator is a single annotation session over one image. It is not safe
// for concurrent use; events are expected one at a time from a single loop.
type Annotator struct {
	id   uuid.UUID
	opts Options
	log  *zap.Logger

	original  *image.RGBA
	committed *image.RGBA
	preview   *image.RGBA

	// dirty is the part of preview that differs from committed.
	dirty image.Rectangle

	segments []models.LineSegment
	state    State
	anchor   image.Point
	ended    bool
}

// New starts a session over img. img is copied; the caller may reuse it.
func New(img image.Image, opts Options) *Annotator {
	if opts.Width < 1 {
		opts.Width = 1
	}
	if opts.ImageName == "" {
		opts.ImageName = DefaultImageName
	}
	if opts.SegmentsName == "" {
		opts.SegmentsName = DefaultSegmentsName
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}

	id := uuid.New()
	a := &Annotator{
		id:        id,
		opts:      opts,
		log:       logger.OrNop(opts.Logger).With(zap.String("session", id.String())),
		original:  toRGBA(img),
		committed: toRGBA(img),
		preview:   toRGBA(img),
	}
	a.log.Debug("annotation session started",
		zap.Int("width", a.original.Bounds().Dx()),
		zap.Int("height", a.original.Bounds().Dy()))
	return a
}

// Open decodes the image at path and starts a session over it.
func Open(path string, opts Options) (*Annotator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	a := New(img, opts)
	a.log.Info("image loaded", zap.String("path", path), zap.String("format", format))
	return a, nil
}

// toRGBA copies img into a new RGBA raster whose bounds start at the origin.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// ID identifies the session in logs.
func (a *Annotator) ID() uuid.UUID { return a.id }

// State returns the interaction state.
func (a *Annotator) State() State { return a.state }

// Anchor returns the start of the segment being drawn.
func (a *Annotator) Anchor() image.Point { return a.anchor }

// Ended reports whether EndSession has been called.
func (a *Annotator) Ended() bool { return a.ended }

// Bounds returns the image bounds, which always start at the origin.
func (a *Annotator) Bounds() image.Rectangle { return a.original.Bounds() }

// Segments returns a copy of the committed segments in drawing order.
func (a *Annotator) Segments() []models.LineSegment {
	out := make([]models.LineSegment, len(a.segments))
	copy(out, a.segments)
	return out
}

// Frame returns the raster to display. It is owned by the Annotator and
// changes with the next event.
func (a *Annotator) Frame() *image.RGBA { return a.preview }

// Committed returns the raster with every finished segment burned in.
func (a *Annotator) Committed() *image.RGBA { return a.committed }

// Original returns the unmodified input raster.
func (a *Annotator) Original() *image.RGBA { return a.original }

// clamp moves p inside the image.
func (a *Annotator) clamp(p image.Point) image.Point {
	b := a.original.Bounds()
	if p.X < b.Min.X {
		p.X = b.Min.X
	}
	if p.X >= b.Max.X {
		p.X = b.Max.X - 1
	}
	if p.Y < b.Min.Y {
		p.Y = b.Min.Y
	}
	if p.Y >= b.Max.Y {
		p.Y = b.Max.Y - 1
	}
	return p
}

// restorePreview copies the dirty region back from committed.
func (a *Annotator) restorePreview() {
	if a.dirty.Empty() {
		return
	}
	draw.Draw(a.preview, a.dirty, a.committed, a.dirty.Min, draw.Src)
	a.dirty = image.Rectangle{}
}

// PointerDown anchors a new segment at p. Pressing again while drawing
// discards the pending segment and restarts it from p.
func (a *Annotator) PointerDown(p image.Point) {
	if a.ended {
		return
	}
	p = a.clamp(p)
	if a.state == Drawing {
		a.restorePreview()
		a.log.Debug("segment restarted", zap.Stringer("from", a.anchor), zap.Stringer("to", p))
	}
	a.anchor = p
	a.state = Drawing
}

// PointerMove shows the segment from the anchor to p on the preview.
func (a *Annotator) PointerMove(p image.Point) {
	if a.ended || a.state != Drawing {
		return
	}
	p = a.clamp(p)
	a.restorePreview()
	drawLine(a.preview, a.anchor, p, a.opts.Color, a.opts.Width)
	a.dirty = lineBounds(a.anchor, p, a.opts.Width, a.preview.Bounds())
}

// PointerUp commits the segment from the anchor to p.
func (a *Annotator) PointerUp(p image.Point) {
	if a.ended || a.state != Drawing {
		return
	}
	p = a.clamp(p)
	a.restorePreview()
	drawLine(a.committed, a.anchor, p, a.opts.Color, a.opts.Width)
	r := lineBounds(a.anchor, p, a.opts.Width, a.committed.Bounds())
	draw.Draw(a.preview, r, a.committed, r.Min, draw.Src)

	seg := models.LineSegment{Start: a.anchor, End: p}
	a.segments = append(a.segments, seg)
	a.state = Idle
	a.log.Debug("segment committed", zap.Ints("segment", tupleSlice(seg)), zap.Int("count", len(a.segments)))
}

// Reset discards every segment and restores the original image.
func (a *Annotator) Reset() {
	if a.ended {
		return
	}
	draw.Draw(a.committed, a.committed.Bounds(), a.original, image.Point{}, draw.Src)
	draw.Draw(a.preview, a.preview.Bounds(), a.original, image.Point{}, draw.Src)
	a.dirty = image.Rectangle{}
	a.segments = nil
	a.state = Idle
	a.log.Debug("annotations reset")
}

// OutputPaths returns where EndSession(true) writes the image and segments.
func (a *Annotator) OutputPaths() (imagePath, segmentsPath string) {
	return filepath.Join(a.opts.OutputDir, a.opts.ImageName),
		filepath.Join(a.opts.OutputDir, a.opts.SegmentsName)
}

// EndSession stops accepting events. With persist it writes the committed
// image as PNG and the segments as YAML into the output directory.
func (a *Annotator) EndSession(persist bool) error {
	if a.state == Drawing {
		a.restorePreview()
		a.state = Idle
	}
	if !a.ended {
		a.ended = true
		a.log.Debug("annotation session ended", zap.Int("segments", len(a.segments)))
	}
	if !persist {
		return nil
	}

	imagePath, segmentsPath := a.OutputPaths()
	if err := os.MkdirAll(a.opts.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := SavePNG(imagePath, a.committed); err != nil {
		return err
	}
	if err := SaveSegments(segmentsPath, a.segments); err != nil {
		return err
	}
	a.log.Info("annotations saved",
		zap.String("image", imagePath),
		zap.String("segments", segmentsPath),
		zap.Int("count", len(a.segments)))
	return nil
}

func tupleSlice(s models.LineSegment) []int {
	t := s.Tuple()
	return t[:]
}
