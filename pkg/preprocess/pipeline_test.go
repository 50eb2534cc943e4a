package preprocess

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microvol/internal/models"
	"microvol/pkg/config"
)

func newTestPipeline(t *testing.T, params Params, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(params, opts...)
	require.NoError(t, err)
	return p
}

func TestLoadAndPreprocess(t *testing.T) {
	path := writeStack(t, t.TempDir(), "vol.tif", rampVolume(4, 20, 20), 0.5, 0.5)
	p := newTestPipeline(t, DefaultParams())

	vol, spacing, err := p.LoadAndPreprocess(path)
	require.NoError(t, err)
	assert.Equal(t, [3]int{4, 10, 10}, vol.Shape())
	for axis := 0; axis < 3; axis++ {
		assert.InDelta(t, 1.0, spacing[axis], 1e-9)
	}
	for i, s := range vol.Data {
		require.GreaterOrEqual(t, s, 0.0, "sample %d", i)
		require.LessOrEqual(t, s, 1.0, "sample %d", i)
	}
}

func TestLoadAndPreprocessMemoizes(t *testing.T) {
	dir := t.TempDir()
	path := writeStack(t, dir, "vol.tif", rampVolume(2, 8, 8), 1, 1)
	reg := prometheus.NewRegistry()
	p := newTestPipeline(t, DefaultParams(), WithRegisterer(reg))

	v1, s1, err := p.LoadAndPreprocess(path)
	require.NoError(t, err)
	v2, s2, err := p.LoadAndPreprocess(dir + "/./vol.tif")
	require.NoError(t, err)

	assert.Same(t, v1, v2)
	assert.Equal(t, s1, s2)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics().Decodes))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics().CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics().CacheMisses))
	assert.True(t, p.Cached(path))

	count, err := testutil.GatherAndCount(reg, "microvol_preprocess_decodes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLoadAndPreprocessConcurrentCallersShareWork(t *testing.T) {
	path := writeStack(t, t.TempDir(), "vol.tif", rampVolume(3, 16, 16), 0.5, 0.5)
	p := newTestPipeline(t, DefaultParams())

	const callers = 8
	results := make([]*models.Volume, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := p.LoadAndPreprocess(path)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics().Decodes))
	for i := 1; i < callers; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestLoadAndPreprocessErrors(t *testing.T) {
	dir := t.TempDir()
	noTags := writeStack(t, dir, "notags.tif", rampVolume(1, 4, 4), 0, 0)
	empty := writeHeaderOnly(t, dir, "empty.tif")

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing file", filepath.Join(dir, "missing.tif"), ErrPath},
		{"missing resolution", noTags, ErrMetadata},
		{"no pages", empty, ErrEmptyVolume},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, DefaultParams())
			_, _, err := p.LoadAndPreprocess(tt.path)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, 0, p.Len())
			assert.False(t, p.Cached(tt.path))
			assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics().CacheMisses))
		})
	}
}

// flakySource fails its first read and succeeds afterwards.
type flakySource struct {
	reads atomic.Int32
}

func (s *flakySource) ReadVolume(path string) (*models.Volume, error) {
	if s.reads.Add(1) == 1 {
		return nil, fmt.Errorf("%w: %s: transient", ErrPath, path)
	}
	return rampVolume(2, 3, 3), nil
}

func (s *flakySource) ReadSpacing(string) (models.Spacing, error) {
	return models.Spacing{1, 1, 1}, nil
}

func TestLoadAndPreprocessDoesNotCacheErrors(t *testing.T) {
	src := &flakySource{}
	p := newTestPipeline(t, DefaultParams(), WithSource(src))

	_, _, err := p.LoadAndPreprocess("vol.tif")
	require.ErrorIs(t, err, ErrPath)

	vol, _, err := p.LoadAndPreprocess("vol.tif")
	require.NoError(t, err)
	assert.Equal(t, [3]int{2, 3, 3}, vol.Shape())
	assert.Equal(t, int32(2), src.reads.Load())
}

func TestPipelineEvictsLeastRecentlyUsed(t *testing.T) {
	dir := t.TempDir()
	params := DefaultParams()
	params.CacheSize = 2
	p := newTestPipeline(t, params)

	var paths []string
	for i := 0; i < 3; i++ {
		paths = append(paths, writeStack(t, dir, fmt.Sprintf("vol%d.tif", i), rampVolume(1, 4, 4), 1, 1))
	}
	for _, path := range paths {
		_, _, err := p.LoadAndPreprocess(path)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, p.Len())
	assert.False(t, p.Cached(paths[0]))
	assert.True(t, p.Cached(paths[1]))
	assert.True(t, p.Cached(paths[2]))
}

func TestPipelineClear(t *testing.T) {
	path := writeStack(t, t.TempDir(), "vol.tif", rampVolume(1, 4, 4), 1, 1)
	p := newTestPipeline(t, DefaultParams())

	_, _, err := p.LoadAndPreprocess(path)
	require.NoError(t, err)
	p.Clear()
	assert.Equal(t, 0, p.Len())

	_, _, err = p.LoadAndPreprocess(path)
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(p.Metrics().Decodes))
}

func TestNewPipelineFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Preprocess.PlaneSpacing = 2
	cfg.Preprocess.Interpolation = "linear"
	path := writeStack(t, t.TempDir(), "vol.tif", rampVolume(3, 4, 4), 1, 1)

	p, err := NewPipelineFromConfig(cfg)
	require.NoError(t, err)
	vol, spacing, err := p.LoadAndPreprocess(path)
	require.NoError(t, err)
	assert.Equal(t, [3]int{6, 4, 4}, vol.Shape())
	assert.InDelta(t, 1.0, spacing.Plane(), 1e-12)

	cfg.Preprocess.Interpolation = "sinc"
	_, err = NewPipelineFromConfig(cfg)
	assert.Error(t, err)
}

func TestNewPipelineRejectsInvalidParams(t *testing.T) {
	params := DefaultParams()
	params.Percentiles = Percentiles{Low: 90, High: 10}
	_, err := NewPipeline(params)
	assert.True(t, errors.Is(err, ErrInvalidPercentile))
}

func TestPackageLoadAndPreprocess(t *testing.T) {
	path := writeStack(t, t.TempDir(), "vol.tif", rampVolume(2, 4, 4), 1, 1)
	t.Cleanup(Clear)

	v1, _, err := LoadAndPreprocess(path)
	require.NoError(t, err)
	v2, _, err := LoadAndPreprocess(path)
	require.NoError(t, err)
	assert.Same(t, v1, v2)
}
