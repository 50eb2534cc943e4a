// Package preprocess turns a multi-page TIFF stack into a volume with
// isotropic spacing and intensities normalized to [0, 1].
//
// The pipeline runs in four stages:
//  1. Read the stack and reject volumes without samples
//  2. Extract the physical voxel spacing from the resolution tags
//  3. Resample to the target spacing with a separable spline
//  4. Rescale intensities between two percentiles
//
// Results are memoized by path in a bounded cache shared by all callers.
package preprocess

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"microvol/internal/logger"
	"microvol/internal/models"
	"microvol/pkg/config"
	"microvol/pkg/interpolation"
	"microvol/pkg/tiffio"
)

// Result is a preprocessed volume and the spacing it actually has.
// Results are shared between callers and must not be modified.
type Result struct {
	Volume  *models.Volume
	Spacing models.Spacing
}

// Source reads raw volumes and their spacing.
type Source interface {
	ReadVolume(path string) (*models.Volume, error)
	ReadSpacing(path string) (models.Spacing, error)
}

// TIFFSource reads volumes from multi-page TIFF files.
type TIFFSource struct {
	// PlaneSpacing is the spacing reported for the plane axis.
	PlaneSpacing float64
}

// ReadVolume decodes every page of the TIFF at path into a volume in the
// file's native intensity scale.
func (s TIFFSource) ReadVolume(path string) (*models.Volume, error) {
	stack, err := tiffio.ReadStack(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPath, path, err)
	}
	return &models.Volume{
		Data:   stack.Data,
		Width:  stack.Width,
		Height: stack.Height,
		Depth:  stack.Depth,
	}, nil
}

// ReadSpacing reads the voxel spacing of the TIFF at path.
func (s TIFFSource) ReadSpacing(path string) (models.Spacing, error) {
	plane := s.PlaneSpacing
	if !(plane > 0) {
		plane = DefaultPlaneSpacing
	}
	return ExtractSpacingWithPlane(path, plane)
}

// Params holds the pipeline parameters.
type Params struct {
	// TargetSpacing is the spacing volumes are resampled to.
	TargetSpacing models.Spacing

	// Percentiles bound the intensity rescale.
	Percentiles Percentiles

	// Method is the resampling kernel.
	Method interpolation.Method

	// NumCores bounds the goroutines used per resampling pass.
	NumCores int

	// CacheSize bounds the number of memoized results.
	CacheSize int
}

// DefaultParams returns the parameters used by LoadAndPreprocess.
func DefaultParams() Params {
	return Params{
		TargetSpacing: DefaultTargetSpacing,
		Percentiles:   DefaultPercentiles,
		Method:        interpolation.Cubic,
		CacheSize:     DefaultCacheSize,
	}
}

// ParamsFromConfig builds pipeline parameters from the preprocess section of
// cfg.
func ParamsFromConfig(cfg *config.Config) (Params, error) {
	method, err := interpolation.ParseMethod(cfg.Preprocess.Interpolation)
	if err != nil {
		return Params{}, err
	}
	p := Params{
		TargetSpacing: models.Spacing(cfg.Preprocess.TargetSpacing),
		Percentiles: Percentiles{
			Low:  cfg.Preprocess.PercentileLow,
			High: cfg.Preprocess.PercentileHigh,
		},
		Method:    method,
		NumCores:  cfg.Preprocess.NumCores,
		CacheSize: cfg.Preprocess.CacheSize,
	}
	return p, p.Validate()
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if !p.TargetSpacing.Valid() {
		return fmt.Errorf("target spacing %v must be positive", p.TargetSpacing)
	}
	return p.Percentiles.Validate()
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.log = logger.OrNop(l) }
}

// WithRegisterer registers the pipeline metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Pipeline) { p.reg = reg }
}

// WithSource replaces the TIFF reader.
func WithSource(s Source) Option {
	return func(p *Pipeline) { p.source = s }
}

// Pipeline loads and preprocesses volumes, memoizing results by path.
// It is safe for concurrent use.
type Pipeline struct {
	params    Params
	source    Source
	resampler *interpolation.Resampler
	cache     *resultCache
	log       *zap.Logger
	reg       prometheus.Registerer
	metrics   *Metrics
}

// NewPipeline creates a pipeline. Without WithRegisterer the metrics are
// registered on a private registry.
func NewPipeline(params Params, opts ...Option) (*Pipeline, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		params: params,
		source: TIFFSource{PlaneSpacing: DefaultPlaneSpacing},
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.reg == nil {
		p.reg = prometheus.NewRegistry()
	}
	p.metrics = NewMetrics(p.reg)
	p.resampler = interpolation.NewResampler(params.Method, params.NumCores)
	p.resampler.SetProgressCallback(func(completed, total int, message string) {
		p.log.Debug("resample progress",
			zap.Int("completed", completed),
			zap.Int("total", total),
			zap.String("step", message))
	})
	p.cache = newResultCache(params.CacheSize)
	return p, nil
}

// NewPipelineFromConfig creates a pipeline from the preprocess section of cfg.
func NewPipelineFromConfig(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	params, err := ParamsFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid preprocess configuration: %w", err)
	}
	src := TIFFSource{PlaneSpacing: cfg.Preprocess.PlaneSpacing}
	return NewPipeline(params, append([]Option{WithSource(src)}, opts...)...)
}

// Metrics returns the pipeline's collectors.
func (p *Pipeline) Metrics() *Metrics { return p.metrics }

// Params returns the pipeline parameters.
func (p *Pipeline) Params() Params { return p.params }

// LoadAndPreprocess returns the preprocessed volume at path and its spacing.
//
// Results are memoized by the cleaned path. Concurrent calls for a path that
// is not cached yet share one computation. Failures are returned to every
// waiting caller and are not cached, so a later call retries.
func (p *Pipeline) LoadAndPreprocess(path string) (*models.Volume, models.Spacing, error) {
	key := filepath.Clean(path)
	res, hit, err := p.cache.get(key, func() (*Result, error) {
		return p.run(key)
	})
	if hit {
		p.metrics.CacheHits.Inc()
	} else {
		p.metrics.CacheMisses.Inc()
	}
	if err != nil {
		return nil, models.Spacing{}, err
	}
	return res.Volume, res.Spacing, nil
}

// Cached reports whether a result for path is currently memoized.
func (p *Pipeline) Cached(path string) bool {
	return p.cache.contains(filepath.Clean(path))
}

// Len returns the number of memoized results.
func (p *Pipeline) Len() int { return p.cache.len() }

// Clear drops every memoized result.
func (p *Pipeline) Clear() {
	p.cache.purge()
	p.log.Debug("preprocess cache cleared")
}

// run executes the pipeline stages for path without consulting the cache.
func (p *Pipeline) run(path string) (*Result, error) {
	log := p.log.With(zap.String("path", path))
	start := time.Now()

	var raw *models.Volume
	err := p.stage("read", func() error {
		var err error
		raw, err = p.source.ReadVolume(path)
		return err
	})
	if err != nil {
		return nil, p.fail(log, "read", err)
	}
	p.metrics.Decodes.Inc()
	if raw == nil || raw.Len() == 0 {
		return nil, p.fail(log, "read", fmt.Errorf("%w: %s", ErrEmptyVolume, path))
	}
	rawShape := raw.Shape()
	log.Debug("volume decoded", zap.Ints("shape", rawShape[:]))

	var spacing models.Spacing
	err = p.stage("spacing", func() error {
		var err error
		spacing, err = p.source.ReadSpacing(path)
		return err
	})
	if err != nil {
		return nil, p.fail(log, "spacing", err)
	}

	var resampled *models.Volume
	var newSpacing models.Spacing
	err = p.stage("resample", func() error {
		var err error
		resampled, newSpacing, err = ResampleWith(p.resampler, raw, spacing, p.params.TargetSpacing)
		return err
	})
	if err != nil {
		return nil, p.fail(log, "resample", err)
	}

	var rescaled *models.Volume
	err = p.stage("rescale", func() error {
		var err error
		rescaled, err = RescaleIntensity(resampled, p.params.Percentiles)
		return err
	})
	if err != nil {
		return nil, p.fail(log, "rescale", err)
	}

	shape := rescaled.Shape()
	log.Info("volume preprocessed",
		zap.Ints("shape", shape[:]),
		zap.Stringer("spacing", spacing),
		zap.Stringer("resampledSpacing", newSpacing),
		zap.Duration("elapsed", time.Since(start)))
	return &Result{Volume: rescaled, Spacing: newSpacing}, nil
}

func (p *Pipeline) stage(name string, fn func() error) error {
	timer := prometheus.NewTimer(p.metrics.StageDuration.WithLabelValues(name))
	defer timer.ObserveDuration()
	return fn()
}

func (p *Pipeline) fail(log *zap.Logger, stage string, err error) error {
	p.metrics.Failures.WithLabelValues(errorKind(err)).Inc()
	log.Warn("preprocessing failed", zap.String("stage", stage), zap.Error(err))
	if stage == "read" || stage == "spacing" {
		return err
	}
	return fmt.Errorf("%s stage: %w", stage, err)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrPath):
		return "path"
	case errors.Is(err, ErrMetadata):
		return "metadata"
	case errors.Is(err, ErrEmptyVolume):
		return "empty"
	case errors.Is(err, ErrInvalidPercentile):
		return "percentile"
	default:
		return "other"
	}
}

var (
	defaultOnce     sync.Once
	defaultPipeline *Pipeline
)

// Default returns the process-wide pipeline used by LoadAndPreprocess.
func Default() *Pipeline {
	defaultOnce.Do(func() {
		// DefaultParams always validate.
		defaultPipeline, _ = NewPipeline(DefaultParams())
	})
	return defaultPipeline
}

// LoadAndPreprocess runs the default pipeline on path.
func LoadAndPreprocess(path string) (*models.Volume, models.Spacing, error) {
	return Default().LoadAndPreprocess(path)
}

// Clear empties the default pipeline's cache.
func Clear() {
	Default().Clear()
}
