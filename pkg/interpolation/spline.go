package interpolation

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/interp"
)

// Method selects the 1D kernel used along each axis.
type Method int

const (
	// Cubic fits a natural cubic spline through every line of samples.
	Cubic Method = iota
	// Linear interpolates piecewise linearly between neighbouring samples.
	Linear
	// Akima fits an Akima spline, which overshoots less than Cubic near steps.
	Akima
)

func (m Method) String() string {
	switch m {
	case Cubic:
		return "cubic"
	case Linear:
		return "linear"
	case Akima:
		return "akima"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod maps a configuration name onto a Method.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cubic", "spline", "3":
		return Cubic, nil
	case "linear", "1":
		return Linear, nil
	case "akima":
		return Akima, nil
	}
	return Cubic, fmt.Errorf("unknown interpolation method %q", name)
}

// ProgressCallback is a function that reports progress during resampling
type ProgressCallback func(completed, total int, message string)

// linesPerTask is how many 1D lines one worker task resamples.
const linesPerTask = 256

// Resampler resizes 3D arrays by separable 1D interpolation, one axis at a
// time. Output sample i along an axis of n_out samples is taken at input
// coordinate i*(n_in-1)/(n_out-1), so the first and last samples of every
// line map onto each other.
type Resampler struct {
	method   Method
	numCores int

	mu       sync.Mutex
	progress ProgressCallback
}

// NewResampler creates a resampler using method and at most numCores
// goroutines. numCores < 1 means all available cores.
func NewResampler(method Method, numCores int) *Resampler {
	if numCores < 1 {
		numCores = runtime.NumCPU()
	}
	return &Resampler{method: method, numCores: numCores}
}

// SetProgressCallback sets a callback function for progress reporting
func (r *Resampler) SetProgressCallback(callback ProgressCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = callback
}

func (r *Resampler) reportProgress(completed, total int, message string) {
	r.mu.Lock()
	cb := r.progress
	r.mu.Unlock()
	if cb != nil {
		cb(completed, total, message)
	}
}

// Resize resamples data of shape (plane, row, column) to newShape.
func (r *Resampler) Resize(data []float64, shape, newShape [3]int) ([]float64, error) {
	n := shape[0] * shape[1] * shape[2]
	if len(data) != n {
		return nil, fmt.Errorf("data has %d samples, shape %v needs %d", len(data), shape, n)
	}
	for axis := 0; axis < 3; axis++ {
		if shape[axis] < 1 || newShape[axis] < 1 {
			return nil, fmt.Errorf("axis %d: cannot resize %d samples to %d", axis, shape[axis], newShape[axis])
		}
	}

	cur := data
	curShape := shape
	for axis := 0; axis < 3; axis++ {
		if curShape[axis] == newShape[axis] {
			r.reportProgress(axis+1, 3, fmt.Sprintf("axis %d unchanged", axis))
			continue
		}
		next, err := r.resizeAxis(cur, curShape, axis, newShape[axis])
		if err != nil {
			return nil, fmt.Errorf("resampling axis %d: %w", axis, err)
		}
		cur = next
		curShape[axis] = newShape[axis]
		r.reportProgress(axis+1, 3, fmt.Sprintf("axis %d resampled to %d", axis, newShape[axis]))
	}

	if len(cur) > 0 && &cur[0] == &data[0] {
		out := make([]float64, len(cur))
		copy(out, cur)
		return out, nil
	}
	return cur, nil
}

// resizeAxis resamples every line along axis to n samples.
func (r *Resampler) resizeAxis(data []float64, shape [3]int, axis, n int) ([]float64, error) {
	outer, inner := 1, 1
	for a := 0; a < axis; a++ {
		outer *= shape[a]
	}
	for a := axis + 1; a < 3; a++ {
		inner *= shape[a]
	}
	in := shape[axis]
	out := make([]float64, outer*n*inner)

	xs := make([]float64, in)
	for i := range xs {
		xs[i] = float64(i)
	}
	coords := SampleCoordinates(in, n)

	lines := outer * inner
	var g errgroup.Group
	g.SetLimit(r.numCores)
	for start := 0; start < lines; start += linesPerTask {
		end := start + linesPerTask
		if end > lines {
			end = lines
		}
		start := start // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			ys := make([]float64, in)
			p := newPredictor(r.method, in)
			for l := start; l < end; l++ {
				o, i := l/inner, l%inner
				src := o*in*inner + i
				dst := o*n*inner + i
				for k := 0; k < in; k++ {
					ys[k] = data[src+k*inner]
				}
				if in == 1 {
					for k := 0; k < n; k++ {
						out[dst+k*inner] = ys[0]
					}
					continue
				}
				if err := p.Fit(xs, ys); err != nil {
					return err
				}
				for k, c := range coords {
					out[dst+k*inner] = p.Predict(c)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SampleCoordinates returns the input coordinates sampled when a line of in
// samples is resized to out samples.
func SampleCoordinates(in, out int) []float64 {
	coords := make([]float64, out)
	if out == 1 || in == 1 {
		return coords
	}
	last := float64(in - 1)
	for i := range coords {
		c := float64(i) * last / float64(out-1)
		if c > last {
			c = last
		}
		coords[i] = c
	}
	return coords
}

// newPredictor returns the kernel for a line of n samples. Splines need at
// least three knots, so shorter lines fall back to linear interpolation.
func newPredictor(m Method, n int) interp.FittablePredictor {
	if n < 3 {
		return &interp.PiecewiseLinear{}
	}
	switch m {
	case Linear:
		return &interp.PiecewiseLinear{}
	case Akima:
		return &interp.AkimaSpline{}
	default:
		return &interp.NaturalCubic{}
	}
}
