package visualization

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"microvol/internal/models"
)

// patternVolume fills each voxel with a value encoding its coordinates
func patternVolume(width, height, depth int) *models.Volume {
	vol := models.NewVolume(depth, height, width)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				vol.Set(z, y, x, float64(x+y+z)/float64(width+height+depth))
			}
		}
	}
	return vol
}

func TestParseAxis(t *testing.T) {
	tests := map[string]int{
		"plane":  models.AxisPlane,
		"Z":      models.AxisPlane,
		"":       models.AxisPlane,
		"row":    models.AxisRow,
		"xz":     models.AxisRow,
		"column": models.AxisColumn,
		"x":      models.AxisColumn,
	}
	for name, want := range tests {
		got, err := ParseAxis(name)
		if err != nil {
			t.Fatalf("ParseAxis(%q) failed: %v", name, err)
		}
		if got != want {
			t.Errorf("ParseAxis(%q) = %d, want %d", name, got, want)
		}
	}
	if _, err := ParseAxis("diagonal"); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}

// TestExtractSlice verifies the geometry and contents of the three views
func TestExtractSlice(t *testing.T) {
	width, height, depth := 6, 4, 3
	vol := models.NewVolume(depth, height, width)
	// Each plane has a unique value
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				vol.Set(z, y, x, float64(z)/float64(depth-1))
			}
		}
	}
	viewer := NewViewer(vol, models.Spacing{1, 1, 1})

	plane, err := viewer.ExtractSlice(models.AxisPlane, 1)
	if err != nil {
		t.Fatalf("Failed to extract plane: %v", err)
	}
	if b := plane.Bounds(); b.Dx() != width || b.Dy() != height {
		t.Errorf("Plane view is %dx%d, want %dx%d", b.Dx(), b.Dy(), width, height)
	}
	if got := plane.Gray16At(3, 2).Y; got != 32768 {
		t.Errorf("Plane 1 value = %d, want 32768", got)
	}

	row, err := viewer.ExtractSlice(models.AxisRow, 2)
	if err != nil {
		t.Fatalf("Failed to extract row: %v", err)
	}
	if b := row.Bounds(); b.Dx() != width || b.Dy() != depth {
		t.Errorf("Row view is %dx%d, want %dx%d", b.Dx(), b.Dy(), width, depth)
	}
	if got := row.Gray16At(0, 2).Y; got != 65535 {
		t.Errorf("Row view bottom line = %d, want 65535", got)
	}

	col, err := viewer.ExtractSlice(models.AxisColumn, 5)
	if err != nil {
		t.Fatalf("Failed to extract column: %v", err)
	}
	if b := col.Bounds(); b.Dx() != depth || b.Dy() != height {
		t.Errorf("Column view is %dx%d, want %dx%d", b.Dx(), b.Dy(), depth, height)
	}
	for z := 0; z < depth; z++ {
		want := toGray16(float64(z) / float64(depth-1)).Y
		if got := col.Gray16At(z, 1).Y; got != want {
			t.Errorf("Column view at plane %d = %d, want %d", z, got, want)
		}
	}
}

func TestExtractSliceMatchesVolume(t *testing.T) {
	vol := patternVolume(5, 4, 3)
	viewer := NewViewer(vol, models.Spacing{1, 1, 1})

	col, err := viewer.ExtractSlice(models.AxisColumn, 2)
	if err != nil {
		t.Fatalf("Failed to extract column: %v", err)
	}
	for y := 0; y < 4; y++ {
		for z := 0; z < 3; z++ {
			if got, want := col.Gray16At(z, y), toGray16(vol.At(z, y, 2)); got != want {
				t.Errorf("Column view (%d,%d) = %v, want %v", z, y, got, want)
			}
		}
	}
}

func TestExtractSliceOutOfRange(t *testing.T) {
	viewer := NewViewer(patternVolume(5, 4, 3), models.Spacing{1, 1, 1})

	cases := []struct {
		axis, position int
	}{
		{models.AxisPlane, 3},
		{models.AxisRow, 4},
		{models.AxisColumn, 5},
		{models.AxisPlane, -1},
		{7, 0},
	}
	for _, c := range cases {
		if _, err := viewer.ExtractSlice(c.axis, c.position); err == nil {
			t.Errorf("Expected error for axis %d position %d, got nil", c.axis, c.position)
		}
	}
}

// TestSaveSlice verifies that slices can be saved to disk
func TestSaveSlice(t *testing.T) {
	viewer := NewViewer(patternVolume(10, 10, 5), models.Spacing{1, 1, 1})

	img, err := viewer.ExtractSlice(models.AxisPlane, 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}

	filename := filepath.Join(t.TempDir(), "test_slice.png")
	if err := viewer.SaveSlice(img, filename); err != nil {
		t.Fatalf("Failed to save slice: %v", err)
	}

	f, err := os.Open(filename)
	if err != nil {
		t.Fatalf("Saved file does not exist: %v", err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Saved file is not a PNG: %v", err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Errorf("Decoded bounds %v, want %v", decoded.Bounds(), img.Bounds())
	}
}

// TestSaveSliceSequence verifies that a sequence of slices can be saved
func TestSaveSliceSequence(t *testing.T) {
	width, height, depth := 5, 5, 3
	viewer := NewViewer(patternVolume(width, height, depth), models.Spacing{1, 1, 1})

	outputDir := filepath.Join(t.TempDir(), "slices")
	n, err := viewer.SaveSliceSequence(models.AxisPlane, outputDir)
	if err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}
	if n != depth {
		t.Errorf("Saved %d slices, want %d", n, depth)
	}

	for z := 0; z < depth; z++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_plane_%03d.png", z))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}

	if _, err := viewer.SaveSliceSequence(9, outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}
