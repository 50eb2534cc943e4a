package preprocess

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"microvol/internal/models"
)

// Summary describes the intensity distribution of a volume.
type Summary struct {
	Min, Max     float64
	Mean, StdDev float64
}

// Summarize computes the intensity summary of v.
func Summarize(v *models.Volume) (Summary, error) {
	if v == nil || v.Len() == 0 {
		return Summary{}, ErrEmptyVolume
	}
	mean, std := stat.MeanStdDev(v.Data, nil)
	return Summary{
		Min:    floats.Min(v.Data),
		Max:    floats.Max(v.Data),
		Mean:   mean,
		StdDev: std,
	}, nil
}
