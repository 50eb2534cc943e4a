package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, [3]float64{1, 1, 1}, cfg.Preprocess.TargetSpacing)
	assert.Equal(t, 0.5, cfg.Preprocess.PercentileLow)
	assert.Equal(t, 99.5, cfg.Preprocess.PercentileHigh)
	assert.Equal(t, 2, cfg.Annotation.LineWidth)
	assert.Equal(t, "annotated_image.png", cfg.Annotation.ImageName)
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Annotation, cfg.Annotation)
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "microvol.yaml")
	cfg := DefaultConfig()
	cfg.Preprocess.TargetSpacing = [3]float64{2, 0.5, 0.5}
	cfg.Preprocess.Interpolation = "linear"
	cfg.Annotation.LineColor = "blue"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Preprocess.TargetSpacing, loaded.Preprocess.TargetSpacing)
	assert.Equal(t, "linear", loaded.Preprocess.Interpolation)
	assert.Equal(t, "blue", loaded.Annotation.LineColor)
}

func TestLoadConfigPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "microvol.yaml")
	require.NoError(t, os.WriteFile(path, []byte("annotation:\n  lineWidth: 4\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Annotation.LineWidth)
	assert.Equal(t, 99.5, cfg.Preprocess.PercentileHigh)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "microvol.yaml")
	body := "preprocess:\n  percentileLow: 90\n  percentileHigh: 10\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "percentiles")
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#FF0000", color.RGBA{R: 255, A: 255}, false},
		{"00ff0080", color.RGBA{G: 255, A: 128}, false},
		{"Red", color.RGBA{R: 255, A: 255}, false},
		{"#12345", color.RGBA{}, true},
		{"not-a-colour", color.RGBA{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
