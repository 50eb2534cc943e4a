package preprocess

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"microvol/internal/models"
	"microvol/pkg/tiffio"
)

// rampVolume returns a volume whose samples rise linearly from 0 to 1.
func rampVolume(depth, height, width int) *models.Volume {
	v := models.NewVolume(depth, height, width)
	for i := range v.Data {
		v.Data[i] = float64(i) / float64(len(v.Data)-1)
	}
	return v
}

// writeStack writes v as a TIFF stack with the given row and column spacing
// in millimeters. Zero spacing writes no resolution tags.
func writeStack(t *testing.T, dir, name string, v *models.Volume, rowMM, colMM float64) string {
	t.Helper()
	var res tiffio.Resolution
	if rowMM > 0 && colMM > 0 {
		var err error
		res, err = tiffio.ResolutionFromSpacing(rowMM, colMM)
		require.NoError(t, err)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, tiffio.WriteStackFile(path, v.Data, v.Width, v.Height, v.Depth, res))
	return path
}

// writeHeaderOnly writes a valid TIFF header with no image directories.
func writeHeaderOnly(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte{'I', 'I', 42, 0, 0, 0, 0, 0}, 0644))
	return path
}
