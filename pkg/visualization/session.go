package visualization

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"microvol/internal/logger"
	"microvol/internal/models"
)

// StatusSelectPath is shown whenever no volume could be loaded.
const StatusSelectPath = "Select a path to a tiff image"

var (
	// ErrNoSelection is returned by Load when no file is selected.
	ErrNoSelection = errors.New("no volume selected")

	// ErrNotLoaded is returned when a view is requested before a volume loads.
	ErrNotLoaded = errors.New("no volume loaded")
)

// Loader produces a normalized volume for a path. *preprocess.Pipeline
// implements it.
type Loader interface {
	LoadAndPreprocess(path string) (*models.Volume, models.Spacing, error)
}

// ListVolumes returns the names of the TIFF files in dir, sorted.
func ListVolumes(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".tif", ".tiff":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Session is the state of one viewing session: the working directory, the
// selected file and the volume loaded from it.
type Session struct {
	id     uuid.UUID
	loader Loader
	log    *zap.Logger

	dir      string
	files    []string
	selected string
	viewer   *Viewer
	status   string
}

// NewSession starts a session that loads volumes through loader.
func NewSession(loader Loader, log *zap.Logger) *Session {
	id := uuid.New()
	s := &Session{
		id:     id,
		loader: loader,
		log:    logger.OrNop(log).With(zap.String("session", id.String())),
		status: StatusSelectPath,
	}
	s.log.Debug("viewer session started")
	return s
}

// ID identifies the session.
func (s *Session) ID() uuid.UUID { return s.id }

// Status is the message to show the user.
func (s *Session) Status() string { return s.status }

// Directory returns the working directory.
func (s *Session) Directory() string { return s.dir }

// Files returns the TIFF files found in the working directory.
func (s *Session) Files() []string {
	out := make([]string, len(s.files))
	copy(out, s.files)
	return out
}

// SetDirectory changes the working directory and lists its TIFF files.
// The previous selection is cleared.
func (s *Session) SetDirectory(dir string) error {
	files, err := ListVolumes(dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	s.dir = dir
	s.files = files
	s.selected = ""
	s.log.Debug("directory set", zap.String("dir", dir), zap.Int("files", len(files)))
	return nil
}

// Select chooses name from the listed files.
func (s *Session) Select(name string) error {
	for _, f := range s.files {
		if f == name {
			s.selected = name
			return nil
		}
	}
	return fmt.Errorf("%s is not a TIFF file in %s", name, s.dir)
}

// SelectedPath returns the path of the selected file, or "" if none is.
func (s *Session) SelectedPath() string {
	if s.selected == "" {
		return ""
	}
	return filepath.Join(s.dir, s.selected)
}

// Load preprocesses the selected file. On failure the previously loaded
// volume is dropped and the status asks for a new path; the session stays
// usable.
func (s *Session) Load() error {
	path := s.SelectedPath()
	if path == "" {
		s.unload()
		return ErrNoSelection
	}
	vol, spacing, err := s.loader.LoadAndPreprocess(path)
	if err != nil {
		s.unload()
		s.log.Warn("failed to load volume", zap.String("path", path), zap.Error(err))
		return err
	}
	s.viewer = NewViewer(vol, spacing)
	s.status = path
	s.log.Info("volume loaded", zap.String("path", path), zap.Stringer("spacing", spacing))
	return nil
}

func (s *Session) unload() {
	s.viewer = nil
	s.status = StatusSelectPath
}

// Loaded reports whether a volume is available.
func (s *Session) Loaded() bool { return s.viewer != nil }

// Viewer returns the viewer of the loaded volume, or nil.
func (s *Session) Viewer() *Viewer { return s.viewer }

// PlaneCount returns the number of planes of the loaded volume.
func (s *Session) PlaneCount() int {
	if s.viewer == nil {
		return 0
	}
	return s.viewer.SliceCount(models.AxisPlane)
}

// DefaultPlane is the plane shown first: the middle one.
func (s *Session) DefaultPlane() int {
	return s.PlaneCount() / 2
}

// Slice extracts a view of the loaded volume.
func (s *Session) Slice(axis, index int) (*image.Gray16, error) {
	if s.viewer == nil {
		return nil, ErrNotLoaded
	}
	return s.viewer.ExtractSlice(axis, index)
}

// Close ends the session and drops its state.
func (s *Session) Close() {
	s.dir = ""
	s.files = nil
	s.selected = ""
	s.unload()
	s.log.Debug("viewer session closed")
}
