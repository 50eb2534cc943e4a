package preprocess

import "errors"

var (
	// ErrPath reports a missing, unreadable or unsupported volume file.
	ErrPath = errors.New("cannot read volume")

	// ErrMetadata reports that the physical resolution tags are missing.
	ErrMetadata = errors.New("missing resolution metadata")

	// ErrEmptyVolume reports a decoded volume without samples.
	ErrEmptyVolume = errors.New("volume contains no samples")

	// ErrInvalidPercentile reports percentile bounds outside 0 <= low < high <= 100.
	ErrInvalidPercentile = errors.New("invalid percentile bounds")
)
