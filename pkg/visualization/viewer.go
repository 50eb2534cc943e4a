package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"microvol/internal/models"
)

// ParseAxis maps a view name to a volume axis. "plane" (or "z") is the xy
// view, "row" (or "y") the xz view and "column" (or "x") the yz view.
func ParseAxis(name string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "plane", "z", "xy", "":
		return models.AxisPlane, nil
	case "row", "y", "xz":
		return models.AxisRow, nil
	case "column", "col", "x", "yz":
		return models.AxisColumn, nil
	default:
		return 0, fmt.Errorf("invalid axis: %s (must be plane, row or column)", name)
	}
}

// AxisName returns the view name of axis.
func AxisName(axis int) string {
	switch axis {
	case models.AxisPlane:
		return "plane"
	case models.AxisRow:
		return "row"
	case models.AxisColumn:
		return "column"
	default:
		return fmt.Sprintf("axis%d", axis)
	}
}

// Viewer extracts 2D views from a normalized volume.
type Viewer struct {
	volume  *models.Volume
	spacing models.Spacing
}

// NewViewer creates a viewer over vol, whose samples are expected in [0, 1].
func NewViewer(vol *models.Volume, spacing models.Spacing) *Viewer {
	return &Viewer{volume: vol, spacing: spacing}
}

// Spacing returns the voxel spacing of the viewed volume.
func (v *Viewer) Spacing() models.Spacing { return v.spacing }

// SliceCount returns the number of slices along axis.
func (v *Viewer) SliceCount(axis int) int {
	switch axis {
	case models.AxisPlane:
		return v.volume.Depth
	case models.AxisRow:
		return v.volume.Height
	case models.AxisColumn:
		return v.volume.Width
	default:
		return 0
	}
}

func toGray16(s float64) color.Gray16 {
	return color.Gray16{Y: uint16(math.Round(math.Max(0, math.Min(1, s)) * 65535))}
}

// ExtractSlice extracts the 2D view at position along axis.
//
// A plane view is width x height. A row view is width x depth with planes
// running down. A column view is depth x height, so planes run across.
func (v *Viewer) ExtractSlice(axis, position int) (*image.Gray16, error) {
	n := v.SliceCount(axis)
	if axis < models.AxisPlane || axis > models.AxisColumn {
		return nil, fmt.Errorf("invalid axis: %d", axis)
	}
	if position < 0 || position >= n {
		return nil, fmt.Errorf("%s position %d out of range [0, %d)", AxisName(axis), position, n)
	}

	vol := v.volume
	var img *image.Gray16
	switch axis {
	case models.AxisPlane:
		img = image.NewGray16(image.Rect(0, 0, vol.Width, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				img.SetGray16(x, y, toGray16(vol.At(position, y, x)))
			}
		}

	case models.AxisRow:
		img = image.NewGray16(image.Rect(0, 0, vol.Width, vol.Depth))
		for z := 0; z < vol.Depth; z++ {
			for x := 0; x < vol.Width; x++ {
				img.SetGray16(x, z, toGray16(vol.At(z, position, x)))
			}
		}

	case models.AxisColumn:
		img = image.NewGray16(image.Rect(0, 0, vol.Depth, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for z := 0; z < vol.Depth; z++ {
				img.SetGray16(z, y, toGray16(vol.At(z, y, position)))
			}
		}
	}
	return img, nil
}

// SaveSlice saves an extracted slice as a PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// SaveSliceSequence extracts and saves every slice along axis into outputDir
// and returns the number of files written.
func (v *Viewer) SaveSliceSequence(axis int, outputDir string) (int, error) {
	if axis < models.AxisPlane || axis > models.AxisColumn {
		return 0, fmt.Errorf("invalid axis: %d", axis)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	name := AxisName(axis)
	n := v.SliceCount(axis)
	for pos := 0; pos < n; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return pos, err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", name, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return pos, err
		}
	}
	return n, nil
}
