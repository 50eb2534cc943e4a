package preprocess

import (
	"errors"
	"fmt"

	"microvol/internal/models"
	"microvol/pkg/tiffio"
)

// DefaultPlaneSpacing is used for the plane axis, which TIFF resolution tags
// do not describe.
const DefaultPlaneSpacing = 1.0

// ExtractSpacing reads the physical voxel spacing of the TIFF at path.
//
// Row and column spacing come from the YResolution and XResolution tags of
// the first page, given in pixels per resolution unit, converted to
// millimeters per pixel. The plane spacing is DefaultPlaneSpacing.
func ExtractSpacing(path string) (models.Spacing, error) {
	return ExtractSpacingWithPlane(path, DefaultPlaneSpacing)
}

// ExtractSpacingWithPlane is ExtractSpacing with an explicit plane spacing.
func ExtractSpacingWithPlane(path string, planeSpacing float64) (models.Spacing, error) {
	res, err := tiffio.ReadResolution(path)
	if err != nil {
		if errors.Is(err, tiffio.ErrNoResolution) {
			return models.Spacing{}, fmt.Errorf("%w: %s: XResolution/YResolution tags absent", ErrMetadata, path)
		}
		return models.Spacing{}, fmt.Errorf("%w: %s: %w", ErrPath, path, err)
	}
	return SpacingFromResolution(res, planeSpacing, path)
}

// SpacingFromResolution converts pixels-per-unit resolution into spacing.
func SpacingFromResolution(res tiffio.Resolution, planeSpacing float64, source string) (models.Spacing, error) {
	if !(res.X > 0) || !(res.Y > 0) {
		return models.Spacing{}, fmt.Errorf("%w: %s: resolution must be positive, got x=%v y=%v",
			ErrMetadata, source, res.X, res.Y)
	}
	mm := tiffio.MillimetersPerUnit(res.Unit)
	return models.Spacing{planeSpacing, mm / res.Y, mm / res.X}, nil
}
