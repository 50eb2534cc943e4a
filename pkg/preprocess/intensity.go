package preprocess

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"microvol/internal/models"
)

// Percentiles are the (low, high) bounds of the intensity rescale, in percent.
type Percentiles struct {
	Low  float64
	High float64
}

// DefaultPercentiles clip the darkest and brightest 0.5% of samples.
var DefaultPercentiles = Percentiles{Low: 0.5, High: 99.5}

// Validate checks 0 <= Low < High <= 100.
func (p Percentiles) Validate() error {
	if p.Low < 0 || p.High > 100 || !(p.Low < p.High) {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidPercentile, p.Low, p.High)
	}
	return nil
}

// IntensityRange returns the sample values at the low and high percentiles.
func IntensityRange(data []float64, p Percentiles) (low, high float64, err error) {
	if err := p.Validate(); err != nil {
		return 0, 0, err
	}
	if len(data) == 0 {
		return 0, 0, ErrEmptyVolume
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	return percentile(sorted, p.Low), percentile(sorted, p.High), nil
}

// percentile interpolates linearly between the two closest ranks of sorted,
// placing rank 0 at 0% and rank n-1 at 100%.
func percentile(sorted []float64, pct float64) float64 {
	h := pct / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// RescaleIntensity stretches v so that the low percentile maps to 0 and the
// high percentile maps to 1, clamping samples outside that range. Unlike a
// min/max stretch, a few saturated voxels do not compress the contrast of the
// rest of the volume. A volume whose percentile range is empty (for example
// a constant volume) rescales to all zeros. v is not modified.
func RescaleIntensity(v *models.Volume, p Percentiles) (*models.Volume, error) {
	if v == nil || v.Len() == 0 {
		return nil, ErrEmptyVolume
	}
	low, high, err := IntensityRange(v.Data, p)
	if err != nil {
		return nil, err
	}

	out := &models.Volume{Width: v.Width, Height: v.Height, Depth: v.Depth}
	out.Data = make([]float64, len(v.Data))
	if !(high > low) {
		return out, nil
	}

	copy(out.Data, v.Data)
	floats.AddConst(-low, out.Data)
	floats.Scale(1/(high-low), out.Data)
	for i, s := range out.Data {
		switch {
		case s < 0:
			out.Data[i] = 0
		case s > 1:
			out.Data[i] = 1
		}
	}
	return out, nil
}
