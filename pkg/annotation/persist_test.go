package annotation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microvol/internal/models"
)

func TestMarshalSegmentsFormat(t *testing.T) {
	data, err := MarshalSegments([]models.LineSegment{seg(0, 0, 10, 10), seg(5, 5, 15, 0)})
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "segments:")
	assert.Contains(t, text, "- [0, 0, 10, 10]")
	assert.Contains(t, text, "- [5, 5, 15, 0]")
}

func TestSegmentsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotations.yaml")
	want := []models.LineSegment{seg(0, 0, 10, 10), seg(5, 5, 15, 0)}

	require.NoError(t, SaveSegments(path, want))
	got, err := LoadSegments(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUnmarshalSegmentsRejectsShortTuple(t *testing.T) {
	_, err := UnmarshalSegments([]byte("segments:\n  - [1, 2, 3]\n"))
	assert.Error(t, err)
}

func TestLoadSegmentsMissingFile(t *testing.T) {
	_, err := LoadSegments(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteFileAtomicLeavesNoTemporaryFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")
	require.NoError(t, SavePNG(path, gradient(3, 3)))
	require.NoError(t, SavePNG(path, gradient(4, 4)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.png", entries[0].Name())
}

func TestSaveIntoMissingDirectoryFails(t *testing.T) {
	err := SaveSegments(filepath.Join(t.TempDir(), "absent", "a.yaml"), nil)
	assert.Error(t, err)
}
