// Package raster loads and represents dense 3D volumetric grids.
//
// A Volume is the in-memory form of one raster source: a dense grid of
// scalar cells addressed by integer coordinates (i, j, k), together with
// the physical voxel size per axis and the spatial origin offset. Volumes
// are treated as immutable by every downstream pipeline stage.
package raster

import (
	verrors "voxelpart/pkg/errors"
)

// Volume is a dense 3-dimensional grid of scalar values.
type Volume struct {
	// Shape is the per-axis cell count.
	Shape [3]int

	// VoxelSize is the physical size of one cell along each axis.
	VoxelSize [3]float64

	// Origin is the physical-space position of the minimum corner of
	// cell (0, 0, 0).
	Origin [3]float64

	// data holds the cell values with axis 0 fastest, matching the NRRD
	// on-disk layout: index = i + Shape[0]*(j + Shape[1]*k).
	data []float64
}

// NewVolume builds a volume from a value buffer laid out with axis 0
// fastest. The buffer length must equal the product of the shape.
func NewVolume(shape [3]int, voxelSize [3]float64, origin [3]float64, data []float64) (*Volume, error) {
	n := 1
	for axis, s := range shape {
		if s <= 0 {
			return nil, verrors.New(verrors.KindDimensionality,
				"volume shape has non-positive extent %d on axis %d", s, axis)
		}
		n *= s
	}
	if len(data) != n {
		return nil, verrors.New(verrors.KindSourceFormat,
			"volume data length %d does not match shape %v (%d cells)", len(data), shape, n)
	}
	for axis, vs := range voxelSize {
		if vs <= 0 {
			return nil, verrors.New(verrors.KindValidation,
				"voxel size must be positive, got %g on axis %d", vs, axis)
		}
	}
	return &Volume{
		Shape:     shape,
		VoxelSize: voxelSize,
		Origin:    origin,
		data:      data,
	}, nil
}

// At returns the cell value at grid coordinate (i, j, k). Coordinates are
// not bounds-checked beyond the slice access itself.
func (v *Volume) At(i, j, k int) float64 {
	return v.data[i+v.Shape[0]*(j+v.Shape[1]*k)]
}

// NumCells returns the total number of cells in the grid.
func (v *Volume) NumCells() int {
	return v.Shape[0] * v.Shape[1] * v.Shape[2]
}

// SameShape reports whether the other volume has an identical grid shape.
func (v *Volume) SameShape(other *Volume) bool {
	return v.Shape == other.Shape
}

// Data returns the underlying value buffer (axis 0 fastest). Callers must
// not modify it.
func (v *Volume) Data() []float64 {
	return v.data
}
