// Package mask derives and combines boolean voxel-selection masks.
//
// A Mask is always defined over the integer grid coordinates of the
// volume(s) it was derived from. Masks from differently-shaped grids are
// never combined; such combinations are rejected with a shape mismatch
// error instead of being silently re-gridded.
package mask

import (
	verrors "voxelpart/pkg/errors"
	"voxelpart/pkg/raster"
)

// Mask is a boolean selection over a 3D grid.
type Mask struct {
	shape [3]int
	bits  []bool
	count int
}

// New returns an empty (all-false) mask over the given shape.
func New(shape [3]int) *Mask {
	n := shape[0] * shape[1] * shape[2]
	return &Mask{shape: shape, bits: make([]bool, n)}
}

// NonZero selects every cell of the volume whose value is not zero.
func NonZero(v *raster.Volume) *Mask {
	m := New(v.Shape)
	for idx, value := range v.Data() {
		if value != 0 {
			m.bits[idx] = true
			m.count++
		}
	}
	return m
}

// Equal selects every cell of the volume whose value equals the given
// scalar exactly.
func Equal(v *raster.Volume, value float64) *Mask {
	m := New(v.Shape)
	for idx, cell := range v.Data() {
		if cell == value {
			m.bits[idx] = true
			m.count++
		}
	}
	return m
}

// FromSet selects every cell of the volume whose integer value belongs to
// the given id set. Cell values are truncated toward zero before the
// membership test; annotation volumes carry integral ids.
func FromSet(v *raster.Volume, ids map[int64]struct{}) *Mask {
	m := New(v.Shape)
	for idx, cell := range v.Data() {
		if _, ok := ids[int64(cell)]; ok {
			m.bits[idx] = true
			m.count++
		}
	}
	return m
}

// Shape returns the grid shape the mask is defined over.
func (m *Mask) Shape() [3]int {
	return m.shape
}

// Count returns the number of selected cells.
func (m *Mask) Count() int {
	return m.count
}

// At reports whether grid coordinate (i, j, k) is selected.
func (m *Mask) At(i, j, k int) bool {
	return m.bits[i+m.shape[0]*(j+m.shape[1]*k)]
}

// Union merges the other mask into the receiver, selecting every cell
// selected by either. Fails if the shapes differ.
func (m *Mask) Union(other *Mask) error {
	if m.shape != other.shape {
		return verrors.New(verrors.KindShapeMismatch,
			"cannot combine masks over shapes %v and %v", m.shape, other.shape)
	}
	for idx, set := range other.bits {
		if set && !m.bits[idx] {
			m.bits[idx] = true
			m.count++
		}
	}
	return nil
}

// Intersect keeps only the cells selected by both the receiver and the
// other mask. Fails if the shapes differ.
func (m *Mask) Intersect(other *Mask) error {
	if m.shape != other.shape {
		return verrors.New(verrors.KindShapeMismatch,
			"cannot combine masks over shapes %v and %v", m.shape, other.shape)
	}
	for idx, set := range m.bits {
		if set && !other.bits[idx] {
			m.bits[idx] = false
			m.count--
		}
	}
	return nil
}

// CheckApplicable verifies that the mask can be applied to the volume,
// which requires identical grid shapes.
func (m *Mask) CheckApplicable(v *raster.Volume) error {
	if m.shape != v.Shape {
		return verrors.New(verrors.KindShapeMismatch,
			"mask over shape %v cannot be applied to volume of shape %v", m.shape, v.Shape)
	}
	return nil
}

// Coordinates enumerates the selected grid coordinates in deterministic
// row-major order: lexicographically ascending over (i, j, k) with the
// last axis fastest. Downstream consumers rely on this ordering being
// reproducible across runs for identical inputs.
func (m *Mask) Coordinates() [][3]int {
	coords := make([][3]int, 0, m.count)
	for i := 0; i < m.shape[0]; i++ {
		for j := 0; j < m.shape[1]; j++ {
			for k := 0; k < m.shape[2]; k++ {
				if m.bits[i+m.shape[0]*(j+m.shape[1]*k)] {
					coords = append(coords, [3]int{i, j, k})
				}
			}
		}
	}
	return coords
}
