package models

import (
	"fmt"
	"image"
)

// Axis indices used by Shape and Spacing.
const (
	AxisPlane = iota
	AxisRow
	AxisColumn
)

// Spacing is the physical distance between adjacent samples along each axis
// in millimeters, ordered (plane, row, column).
type Spacing [3]float64

// Plane returns the spacing between consecutive planes.
func (s Spacing) Plane() float64 { return s[AxisPlane] }

// Row returns the spacing between consecutive rows.
func (s Spacing) Row() float64 { return s[AxisRow] }

// Column returns the spacing between consecutive columns.
func (s Spacing) Column() float64 { return s[AxisColumn] }

// Valid reports whether every component is a positive number.
func (s Spacing) Valid() bool {
	for _, v := range s {
		if !(v > 0) {
			return false
		}
	}
	return true
}

func (s Spacing) String() string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f) mm", s[0], s[1], s[2])
}

// Volume represents a 3D stack of image planes
type Volume struct {
	// Data holds the samples in plane-major, row-major order:
	// idx = z*Width*Height + y*Width + x
	Data []float64

	// Width is the number of columns
	Width int

	// Height is the number of rows
	Height int

	// Depth is the number of planes
	Depth int
}

// NewVolume allocates a zeroed volume of the given dimensions.
func NewVolume(depth, height, width int) *Volume {
	return &Volume{
		Data:   make([]float64, depth*height*width),
		Width:  width,
		Height: height,
		Depth:  depth,
	}
}

// Shape returns the dimensions ordered (plane, row, column).
func (v *Volume) Shape() [3]int {
	return [3]int{v.Depth, v.Height, v.Width}
}

// Len returns the number of samples.
func (v *Volume) Len() int {
	return len(v.Data)
}

// Index returns the flat index of the sample at (z, y, x).
func (v *Volume) Index(z, y, x int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// At returns the sample at (z, y, x).
func (v *Volume) At(z, y, x int) float64 {
	return v.Data[v.Index(z, y, x)]
}

// Set stores a sample at (z, y, x).
func (v *Volume) Set(z, y, x int, value float64) {
	v.Data[v.Index(z, y, x)] = value
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	out := &Volume{Width: v.Width, Height: v.Height, Depth: v.Depth}
	out.Data = make([]float64, len(v.Data))
	copy(out.Data, v.Data)
	return out
}

// LineSegment is a straight annotation line between two pixel coordinates.
type LineSegment struct {
	Start image.Point
	End   image.Point
}

// Tuple returns the segment as (start_x, start_y, end_x, end_y).
func (l LineSegment) Tuple() [4]int {
	return [4]int{l.Start.X, l.Start.Y, l.End.X, l.End.Y}
}

// SegmentFromTuple builds a segment from (start_x, start_y, end_x, end_y).
func SegmentFromTuple(t [4]int) LineSegment {
	return LineSegment{Start: image.Pt(t[0], t[1]), End: image.Pt(t[2], t[3])}
}
