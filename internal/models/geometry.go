package models

// Rhomboid is the axis-aligned physical-space box occupied by one voxel.
type Rhomboid struct {
	// Origin is the minimum corner of the box in physical coordinates.
	Origin [3]float64

	// Size is the physical extent of the box along each axis.
	Size [3]float64
}

// Max returns the maximum corner of the rhomboid.
func (r Rhomboid) Max() [3]float64 {
	return [3]float64{
		r.Origin[0] + r.Size[0],
		r.Origin[1] + r.Size[1],
		r.Origin[2] + r.Size[2],
	}
}

// Center returns the centroid of the rhomboid.
func (r Rhomboid) Center() [3]float64 {
	return [3]float64{
		r.Origin[0] + r.Size[0]/2,
		r.Origin[1] + r.Size[1]/2,
		r.Origin[2] + r.Size[2]/2,
	}
}

// Volume returns the physical volume of the rhomboid.
func (r Rhomboid) Volume() float64 {
	return r.Size[0] * r.Size[1] * r.Size[2]
}

// BoundingBox is an axis-aligned box accumulated over a set of rhomboids.
type BoundingBox struct {
	Min [3]float64
	Max [3]float64
}

// Extend grows the bounding box to cover the given rhomboid.
func (b *BoundingBox) Extend(r Rhomboid) {
	max := r.Max()
	for axis := 0; axis < 3; axis++ {
		if r.Origin[axis] < b.Min[axis] {
			b.Min[axis] = r.Origin[axis]
		}
		if max[axis] > b.Max[axis] {
			b.Max[axis] = max[axis]
		}
	}
}

// Size returns the per-axis extent of the bounding box.
func (b BoundingBox) Size() [3]float64 {
	return [3]float64{
		b.Max[0] - b.Min[0],
		b.Max[1] - b.Min[1],
		b.Max[2] - b.Min[2],
	}
}

// Contains reports whether the point lies inside the box (inclusive of the
// minimum corner, exclusive of the maximum).
func (b BoundingBox) Contains(p [3]float64) bool {
	for axis := 0; axis < 3; axis++ {
		if p[axis] < b.Min[axis] || p[axis] >= b.Max[axis] {
			return false
		}
	}
	return true
}
