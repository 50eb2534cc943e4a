package preprocess

import (
	"fmt"
	"math"

	"microvol/internal/models"
	"microvol/pkg/interpolation"
)

// DefaultTargetSpacing is the isotropic spacing volumes are resampled to.
var DefaultTargetSpacing = models.Spacing{1, 1, 1}

// ResampledGeometry computes the shape a volume takes when resampled from
// spacing to target, and the spacing it actually has at that shape.
//
// The requested resize factor spacing/target is applied and rounded to whole
// samples, ties to even. The achieved factor newShape/shape then differs
// slightly from the requested one, so the returned spacing is recomputed from
// it rather than copied from target.
func ResampledGeometry(shape [3]int, spacing, target models.Spacing) ([3]int, models.Spacing, error) {
	if !spacing.Valid() {
		return shape, spacing, fmt.Errorf("spacing %v must be positive", spacing)
	}
	if !target.Valid() {
		return shape, spacing, fmt.Errorf("target spacing %v must be positive", target)
	}

	var newShape [3]int
	var newSpacing models.Spacing
	for axis := 0; axis < 3; axis++ {
		if shape[axis] < 1 {
			return shape, spacing, fmt.Errorf("axis %d has %d samples: %w", axis, shape[axis], ErrEmptyVolume)
		}
		factor := spacing[axis] / target[axis]
		n := int(math.RoundToEven(float64(shape[axis]) * factor))
		if n < 1 {
			n = 1
		}
		actual := float64(n) / float64(shape[axis])
		newShape[axis] = n
		newSpacing[axis] = spacing[axis] / actual
	}
	return newShape, newSpacing, nil
}

// Resample interpolates v from spacing to (approximately) target with a
// natural cubic spline and returns the resampled volume and its spacing.
func Resample(v *models.Volume, spacing, target models.Spacing) (*models.Volume, models.Spacing, error) {
	return ResampleWith(interpolation.NewResampler(interpolation.Cubic, 0), v, spacing, target)
}

// ResampleWith is Resample using the given resampler.
func ResampleWith(r *interpolation.Resampler, v *models.Volume, spacing, target models.Spacing) (*models.Volume, models.Spacing, error) {
	if v == nil || v.Len() == 0 {
		return nil, spacing, ErrEmptyVolume
	}
	newShape, newSpacing, err := ResampledGeometry(v.Shape(), spacing, target)
	if err != nil {
		return nil, spacing, err
	}

	data, err := r.Resize(v.Data, v.Shape(), newShape)
	if err != nil {
		return nil, spacing, err
	}
	out := &models.Volume{
		Data:   data,
		Depth:  newShape[models.AxisPlane],
		Height: newShape[models.AxisRow],
		Width:  newShape[models.AxisColumn],
	}
	return out, newSpacing, nil
}
